// Package config loads the operator-supplied daemon configuration, either
// from a TOML file or from command-line words.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml"

	"github.com/jcodybaker/wgsync/pkg/model"
)

const (
	defaultMinKeepalive = 10
	defaultMaxKeepalive = 0
	defaultRefreshSec   = 1200
)

// Source is the local policy for one remote source: where to fetch it and
// which prefixes its peers may claim.
type Source struct {
	Name              string
	URL               string
	PSK               *model.Secret
	IPv4              model.Ipv4Set
	IPv6              model.Ipv6Set
	Required          bool
	AllowRoadWarriors bool
}

// PeerOverride adjusts one peer regardless of which source published it.
type PeerOverride struct {
	// Source restricts which source may publish this peer. Empty means any.
	Source    string
	Endpoint  *model.Endpoint
	PSK       *model.Secret
	Keepalive *uint32
}

// Global holds the peer-policy settings shared by all sources.
type Global struct {
	MinKeepalive uint32
	MaxKeepalive uint32
	Peers        map[model.Key]PeerOverride
}

// FixKeepalive clamps a source-supplied keepalive to the operator's bounds.
// With a nonzero minimum even a zero (disabled) keepalive is raised to it.
func (g *Global) FixKeepalive(k uint32) uint32 {
	if g.MaxKeepalive != 0 && (k == 0 || k > g.MaxKeepalive) {
		k = g.MaxKeepalive
	}
	if k < g.MinKeepalive {
		k = g.MinKeepalive
	}
	return k
}

// Config is the complete operator configuration.
type Config struct {
	RuntimeDirectory string
	CacheDirectory   string
	RefreshSec       uint32
	Global           Global
	Sources          []Source
}

func defaultConfig() *Config {
	return &Config{
		RefreshSec: defaultRefreshSec,
		Global: Global{
			MinKeepalive: defaultMinKeepalive,
			MaxKeepalive: defaultMaxKeepalive,
			Peers:        make(map[model.Key]PeerOverride),
		},
	}
}

// Raw TOML shapes. Parsing happens in two steps: a strict decode into these,
// then conversion with key/prefix/secret validation.
type tomlConfig struct {
	RuntimeDirectory string              `toml:"runtime_directory"`
	CacheDirectory   string              `toml:"cache_directory"`
	MinKeepalive     *uint32             `toml:"min_keepalive"`
	MaxKeepalive     *uint32             `toml:"max_keepalive"`
	RefreshSec       *uint32             `toml:"refresh_sec"`
	Sources          []tomlSource        `toml:"source"`
	Peers            map[string]tomlPeer `toml:"peer"`
}

type tomlSource struct {
	Name              string   `toml:"name"`
	URL               string   `toml:"url"`
	PSK               string   `toml:"psk"`
	IPv4              []string `toml:"ipv4"`
	IPv6              []string `toml:"ipv6"`
	Required          *bool    `toml:"required"`
	AllowRoadWarriors *bool    `toml:"allow_road_warriors"`
}

type tomlPeer struct {
	Source    string  `toml:"source"`
	Endpoint  string  `toml:"endpoint"`
	PSK       string  `toml:"psk"`
	Keepalive *uint32 `toml:"keepalive"`
}

// LoadFile parses the TOML configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses a TOML configuration. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var raw tomlConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.Strict(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg := defaultConfig()
	cfg.RuntimeDirectory = raw.RuntimeDirectory
	cfg.CacheDirectory = raw.CacheDirectory
	if raw.MinKeepalive != nil {
		cfg.Global.MinKeepalive = *raw.MinKeepalive
	}
	if raw.MaxKeepalive != nil {
		cfg.Global.MaxKeepalive = *raw.MaxKeepalive
	}
	if raw.RefreshSec != nil {
		cfg.RefreshSec = *raw.RefreshSec
	}

	seen := make(map[string]bool)
	for _, rs := range raw.Sources {
		src, err := rs.convert()
		if err != nil {
			return nil, err
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("duplicate source %q", src.Name)
		}
		seen[src.Name] = true
		cfg.Sources = append(cfg.Sources, *src)
	}

	for keyText, rp := range raw.Peers {
		key, err := model.ParseKey(keyText)
		if err != nil {
			return nil, fmt.Errorf("peer table: %w", err)
		}
		ov, err := rp.convert(keyText)
		if err != nil {
			return nil, err
		}
		cfg.Global.Peers[key] = *ov
	}

	return cfg, nil
}

func (rs tomlSource) convert() (*Source, error) {
	if rs.Name == "" {
		return nil, fmt.Errorf("source with url %q has no name", rs.URL)
	}
	if rs.URL == "" {
		return nil, fmt.Errorf("source %q has no url", rs.Name)
	}

	src := &Source{
		Name:              rs.Name,
		URL:               rs.URL,
		AllowRoadWarriors: true,
	}
	if rs.Required != nil {
		src.Required = *rs.Required
	}
	if rs.AllowRoadWarriors != nil {
		src.AllowRoadWarriors = *rs.AllowRoadWarriors
	}
	if rs.PSK != "" {
		psk, err := model.LoadSecret(rs.PSK)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", rs.Name, err)
		}
		src.PSK = psk
	}
	for _, s := range rs.IPv4 {
		net, err := model.ParseIpv4Net(s)
		if err != nil {
			return nil, fmt.Errorf("source %q: ipv4 %q: %w", rs.Name, s, err)
		}
		src.IPv4.Insert(net)
	}
	for _, s := range rs.IPv6 {
		net, err := model.ParseIpv6Net(s)
		if err != nil {
			return nil, fmt.Errorf("source %q: ipv6 %q: %w", rs.Name, s, err)
		}
		src.IPv6.Insert(net)
	}
	return src, nil
}

func (rp tomlPeer) convert(keyText string) (*PeerOverride, error) {
	ov := &PeerOverride{
		Source:    rp.Source,
		Keepalive: rp.Keepalive,
	}
	if rp.Endpoint != "" {
		ep, err := model.ParseEndpoint(rp.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("peer %q: %w", keyText, err)
		}
		ov.Endpoint = &ep
	}
	if rp.PSK != "" {
		psk, err := model.LoadSecret(rp.PSK)
		if err != nil {
			return nil, fmt.Errorf("peer %q: %w", keyText, err)
		}
		ov.PSK = psk
	}
	return ov, nil
}
