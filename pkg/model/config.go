package model

import "slices"

// Peer is the effective, post-merge description of one peer to be programmed
// into the interface.
type Peer struct {
	Endpoint  *Endpoint `json:"endpoint,omitempty"`
	PSK       *Secret   `json:"psk,omitempty"`
	Keepalive uint32    `json:"keepalive"`
	IPv4      []Ipv4Net `json:"ipv4"`
	IPv6      []Ipv6Net `json:"ipv6"`
}

// Config is the desired interface state: the full peer map for one tick.
type Config struct {
	Peers map[Key]*Peer `json:"peers"`
}

// NewConfig returns an empty desired state.
func NewConfig() *Config {
	return &Config{Peers: make(map[Key]*Peer)}
}

func (p *Peer) Equal(other *Peer) bool {
	if p == nil || other == nil {
		return p == other
	}
	if (p.Endpoint == nil) != (other.Endpoint == nil) {
		return false
	}
	if p.Endpoint != nil && *p.Endpoint != *other.Endpoint {
		return false
	}
	if !p.PSK.Equal(other.PSK) {
		return false
	}
	return p.Keepalive == other.Keepalive &&
		slices.Equal(p.IPv4, other.IPv4) &&
		slices.Equal(p.IPv6, other.IPv6)
}

func (c *Config) Equal(other *Config) bool {
	if len(c.Peers) != len(other.Peers) {
		return false
	}
	for k, p := range c.Peers {
		if !p.Equal(other.Peers[k]) {
			return false
		}
	}
	return true
}
