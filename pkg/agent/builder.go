package agent

import (
	"fmt"

	"github.com/jcodybaker/wgsync/pkg/config"
	"github.com/jcodybaker/wgsync/pkg/model"
	"github.com/jcodybaker/wgsync/pkg/proto"
)

// Error describes one peer the builder rejected or partially merged.
// Important errors mean the peer (or part of its identity) was dropped;
// unimportant ones record a partial merge.
type Error struct {
	Source    string
	Peer      model.Key
	Important bool
	Reason    string
}

func (e *Error) Error() string {
	kind := "misconfigured peer"
	if e.Important {
		kind = "invalid peer"
	}
	return fmt.Sprintf("%s [%s]/[%s]: %s", kind, e.Source, e.Peer, e.Reason)
}

// contact holds the override-adjusted connection parameters for one peer.
type contact struct {
	psk       *model.Secret
	endpoint  *model.Endpoint
	keepalive uint32
}

// configBuilder merges the active views of all sources into a single peer
// map. Servers are added in a first pass and road-warriors in a second, so a
// road-warrior's base exists regardless of source order.
type configBuilder struct {
	c         *model.Config
	errs      []*Error
	publicKey model.Key
	global    *config.Global
}

func newConfigBuilder(publicKey model.Key, global *config.Global) *configBuilder {
	return &configBuilder{
		c:         model.NewConfig(),
		publicKey: publicKey,
		global:    global,
	}
}

func (b *configBuilder) build() (*model.Config, []*Error) {
	return b.c, b.errs
}

func (b *configBuilder) fail(reason string, src *config.Source, p *proto.Peer, important bool) {
	b.errs = append(b.errs, &Error{
		Source:    src.Name,
		Peer:      p.PublicKey,
		Important: important,
		Reason:    reason,
	})
}

// contact resolves psk, endpoint and keepalive for p: the source's defaults,
// adjusted by the operator's per-peer override. Returns false when the
// override forbids this source from publishing p.
func (b *configBuilder) contact(src *config.Source, p *proto.Peer, keepalive uint32, endpoint *model.Endpoint) (contact, bool) {
	ct := contact{psk: src.PSK, keepalive: keepalive}
	if ov, ok := b.global.Peers[p.PublicKey]; ok {
		if ov.Source != "" && ov.Source != src.Name {
			b.fail("peer source not allowed", src, p, true)
			return contact{}, false
		}
		if ov.PSK != nil {
			ct.psk = ov.PSK
		}
		if ov.Endpoint != nil {
			ct.endpoint = ov.Endpoint
		}
		if ov.Keepalive != nil {
			ct.keepalive = *ov.Keepalive
		}
	}
	if ct.endpoint == nil {
		ct.endpoint = endpoint
	}
	ct.keepalive = b.global.FixKeepalive(ct.keepalive)
	return ct, true
}

func (b *configBuilder) addServer(src *config.Source, srv *proto.Server) {
	endpoint := srv.Endpoint
	ct, ok := b.contact(src, &srv.Peer, srv.Keepalive, &endpoint)
	if !ok {
		return
	}

	if srv.PublicKey == b.publicKey {
		return
	}

	ent := b.insert(src, &srv.Peer, ct)
	b.mergeAllowedIPs(ent, src, &srv.Peer)
}

func (b *configBuilder) addRoadWarrior(src *config.Source, rw *proto.RoadWarrior) {
	ct, ok := b.contact(src, &rw.Peer, 0, nil)
	if !ok {
		return
	}

	if rw.PublicKey == b.publicKey {
		b.fail("the local peer cannot be a road warrior", src, &rw.Peer, true)
		return
	}

	var ent *model.Peer
	if rw.Base == b.publicKey {
		if !src.AllowRoadWarriors {
			b.fail("road warriors not allowed from this source", src, &rw.Peer, true)
			return
		}
		ent = b.insert(src, &rw.Peer, ct)
	} else if base, ok := b.c.Peers[rw.Base]; ok {
		ent = base
	} else {
		b.fail("unknown base peer", src, &rw.Peer, true)
		return
	}
	b.mergeAllowedIPs(ent, src, &rw.Peer)
}

// insert adds a peer entry. On a duplicate key the first entry is retained
// and an important error recorded; the caller still merges allowed IPs into
// the retained entry.
func (b *configBuilder) insert(src *config.Source, p *proto.Peer, ct contact) *model.Peer {
	if ent, ok := b.c.Peers[p.PublicKey]; ok {
		b.fail("duplicate public key", src, p, true)
		return ent
	}
	ent := &model.Peer{
		Endpoint:  ct.endpoint,
		PSK:       ct.psk,
		Keepalive: ct.keepalive,
	}
	b.c.Peers[p.PublicKey] = ent
	return ent
}

// mergeAllowedIPs copies p's prefixes into ent, keeping only those covered by
// the source's allowed sets.
func (b *configBuilder) mergeAllowedIPs(ent *model.Peer, src *config.Source, p *proto.Peer) {
	added, removed := false, false

	for _, n := range p.IPv4 {
		if src.IPv4.Contains(n) {
			ent.IPv4 = append(ent.IPv4, n)
			added = true
		} else {
			removed = true
		}
	}
	for _, n := range p.IPv6 {
		if src.IPv6.Contains(n) {
			ent.IPv6 = append(ent.IPv6, n)
			added = true
		} else {
			removed = true
		}
	}

	if removed {
		reason := "some IPs removed"
		if !added {
			reason = "all IPs removed"
		}
		b.fail(reason, src, p, !added)
	}
}
