package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jcodybaker/wgsync/pkg/model"
)

// FromArgs builds a Config from inline command-line words. The grammar is a
// flat list of key/value pairs; "source NAME URL" and "peer KEY" open a
// context whose keys apply to that source or peer until the next global key.
// Unlike the TOML form, psk values are given inline as base64 rather than as
// file paths.
func FromArgs(args []string) (*Config, error) {
	cfg := defaultConfig()

	type context int
	const (
		ctxNone context = iota
		ctxSource
		ctxPeer
	)
	cur := ctxNone
	var curSource *Source
	var curPeer model.Key

	i := 0
	next := func(key string) (string, error) {
		if i >= len(args) {
			return "", fmt.Errorf("%q needs a value", key)
		}
		v := args[i]
		i++
		return v, nil
	}

	for i < len(args) {
		key := args[i]
		i++

		if cur == ctxSource {
			switch key {
			case "psk":
				arg, err := next(key)
				if err != nil {
					return nil, err
				}
				k, err := model.ParseKey(arg)
				if err != nil {
					return nil, fmt.Errorf("source %q: %w", curSource.Name, err)
				}
				curSource.PSK = model.SecretFromKey(k)
				continue
			case "ipv4":
				arg, err := next(key)
				if err != nil {
					return nil, err
				}
				for _, s := range strings.Split(arg, ",") {
					net, err := model.ParseIpv4Net(s)
					if err != nil {
						return nil, fmt.Errorf("source %q: ipv4 %q: %w", curSource.Name, s, err)
					}
					curSource.IPv4.Insert(net)
				}
				continue
			case "ipv6":
				arg, err := next(key)
				if err != nil {
					return nil, err
				}
				for _, s := range strings.Split(arg, ",") {
					net, err := model.ParseIpv6Net(s)
					if err != nil {
						return nil, fmt.Errorf("source %q: ipv6 %q: %w", curSource.Name, s, err)
					}
					curSource.IPv6.Insert(net)
				}
				continue
			case "required":
				curSource.Required = true
				continue
			case "no_road_warriors":
				curSource.AllowRoadWarriors = false
				continue
			}
		} else if cur == ctxPeer {
			switch key {
			case "psk":
				arg, err := next(key)
				if err != nil {
					return nil, err
				}
				k, err := model.ParseKey(arg)
				if err != nil {
					return nil, fmt.Errorf("peer %s: %w", curPeer, err)
				}
				ov := cfg.Global.Peers[curPeer]
				ov.PSK = model.SecretFromKey(k)
				cfg.Global.Peers[curPeer] = ov
				continue
			case "source":
				arg, err := next(key)
				if err != nil {
					return nil, err
				}
				ov := cfg.Global.Peers[curPeer]
				ov.Source = arg
				cfg.Global.Peers[curPeer] = ov
				continue
			case "endpoint":
				arg, err := next(key)
				if err != nil {
					return nil, err
				}
				ep, err := model.ParseEndpoint(arg)
				if err != nil {
					return nil, fmt.Errorf("peer %s: %w", curPeer, err)
				}
				ov := cfg.Global.Peers[curPeer]
				ov.Endpoint = &ep
				cfg.Global.Peers[curPeer] = ov
				continue
			case "keepalive":
				arg, err := next(key)
				if err != nil {
					return nil, err
				}
				ka, err := parseU32(arg)
				if err != nil {
					return nil, fmt.Errorf("peer %s: keepalive: %w", curPeer, err)
				}
				ov := cfg.Global.Peers[curPeer]
				ov.Keepalive = &ka
				cfg.Global.Peers[curPeer] = ov
				continue
			}
		}
		cur = ctxNone

		switch key {
		case "min_keepalive", "max_keepalive", "refresh_sec":
			arg, err := next(key)
			if err != nil {
				return nil, err
			}
			v, err := parseU32(arg)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			switch key {
			case "min_keepalive":
				cfg.Global.MinKeepalive = v
			case "max_keepalive":
				cfg.Global.MaxKeepalive = v
			case "refresh_sec":
				cfg.RefreshSec = v
			}
		case "runtime_directory":
			arg, err := next(key)
			if err != nil {
				return nil, err
			}
			cfg.RuntimeDirectory = arg
		case "cache_directory":
			arg, err := next(key)
			if err != nil {
				return nil, err
			}
			cfg.CacheDirectory = arg
		case "source":
			name, err := next(key)
			if err != nil {
				return nil, err
			}
			url, err := next(key)
			if err != nil {
				return nil, err
			}
			curSource = nil
			for j := range cfg.Sources {
				if cfg.Sources[j].Name == name {
					curSource = &cfg.Sources[j]
					break
				}
			}
			if curSource == nil {
				cfg.Sources = append(cfg.Sources, Source{
					Name:              name,
					URL:               url,
					AllowRoadWarriors: true,
				})
				curSource = &cfg.Sources[len(cfg.Sources)-1]
			}
			cur = ctxSource
		case "peer":
			arg, err := next(key)
			if err != nil {
				return nil, err
			}
			k, err := model.ParseKey(arg)
			if err != nil {
				return nil, fmt.Errorf("peer: %w", err)
			}
			curPeer = k
			if _, ok := cfg.Global.Peers[curPeer]; !ok {
				cfg.Global.Peers[curPeer] = PeerOverride{}
			}
			cur = ctxPeer
		default:
			return nil, fmt.Errorf("unknown configuration key %q", key)
		}
	}

	return cfg, nil
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
