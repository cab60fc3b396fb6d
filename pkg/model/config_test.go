package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPeer(t *testing.T) *Peer {
	ep, err := ParseEndpoint("203.0.113.1:51820")
	require.NoError(t, err)
	return &Peer{
		Endpoint:  &ep,
		PSK:       SecretFromKey(testKey(3)),
		Keepalive: 25,
		IPv4:      []Ipv4Net{v4(t, "10.0.0.1/32")},
		IPv6:      []Ipv6Net{v6(t, "2001:db8::1/128")},
	}
}

func TestConfigJSONRoundTrip(t *testing.T) {
	c := NewConfig()
	c.Peers[testKey(1)] = testPeer(t)
	c.Peers[testKey(2)] = &Peer{Keepalive: 10}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	back := NewConfig()
	require.NoError(t, json.Unmarshal(data, back))
	assert.True(t, c.Equal(back))
}

func TestPeerEqual(t *testing.T) {
	base := testPeer(t)

	tcs := []struct {
		name   string
		mutate func(*Peer)
		want   bool
	}{
		{name: "identical", mutate: func(p *Peer) {}, want: true},
		{name: "nil endpoint", mutate: func(p *Peer) { p.Endpoint = nil }, want: false},
		{name: "different keepalive", mutate: func(p *Peer) { p.Keepalive = 30 }, want: false},
		{name: "different psk", mutate: func(p *Peer) { p.PSK = SecretFromKey(testKey(4)) }, want: false},
		{name: "cleared psk", mutate: func(p *Peer) { p.PSK = nil }, want: false},
		{name: "extra ip", mutate: func(p *Peer) { p.IPv4 = append(p.IPv4, v4(t, "10.0.0.2/32")) }, want: false},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			other := testPeer(t)
			tc.mutate(other)
			assert.Equal(t, tc.want, base.Equal(other))
		})
	}

	assert.False(t, base.Equal(nil))
}

func TestConfigEqual(t *testing.T) {
	a := NewConfig()
	a.Peers[testKey(1)] = testPeer(t)

	b := NewConfig()
	b.Peers[testKey(1)] = testPeer(t)
	assert.True(t, a.Equal(b))

	b.Peers[testKey(2)] = &Peer{}
	assert.False(t, a.Equal(b))

	assert.True(t, NewConfig().Equal(NewConfig()))
}

func TestConfigJSONRedactionBoundary(t *testing.T) {
	// The state file must carry the real PSK so restarts can diff against it;
	// redaction applies to fmt output only.
	c := NewConfig()
	c.Peers[testKey(1)] = testPeer(t)
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), SecretFromKey(testKey(3)).Reveal())
}
