package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v4(t *testing.T, s string) Ipv4Net {
	t.Helper()
	n, err := ParseIpv4Net(s)
	require.NoError(t, err)
	return n
}

func v6(t *testing.T, s string) Ipv6Net {
	t.Helper()
	n, err := ParseIpv6Net(s)
	require.NoError(t, err)
	return n
}

func TestParseIpv4Net(t *testing.T) {
	tcs := []struct {
		in      string
		wantErr bool
	}{
		{in: "10.0.0.0/24"},
		{in: "10.0.0.1/32"},
		{in: "0.0.0.0/0"},
		{in: "10.0.0.1/24", wantErr: true}, // host bits set
		{in: "10.0.0.0/33", wantErr: true},
		{in: "10.0.0.0", wantErr: true},
		{in: "2001:db8::/64", wantErr: true}, // wrong family
		{in: "", wantErr: true},
	}
	for _, tc := range tcs {
		t.Run(tc.in, func(t *testing.T) {
			n, err := ParseIpv4Net(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrBadPrefix)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.in, n.String())
		})
	}
}

func TestParseIpv6Net(t *testing.T) {
	tcs := []struct {
		in      string
		wantErr bool
	}{
		{in: "2001:db8::/64"},
		{in: "::/0"},
		{in: "2001:db8::1/128"},
		{in: "2001:db8::1/64", wantErr: true}, // host bits set
		{in: "2001:db8::/129", wantErr: true},
		{in: "10.0.0.0/8", wantErr: true}, // wrong family
	}
	for _, tc := range tcs {
		t.Run(tc.in, func(t *testing.T) {
			n, err := ParseIpv6Net(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrBadPrefix)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.in, n.String())
		})
	}
}

func TestIpv4NetContains(t *testing.T) {
	tcs := []struct {
		outer, inner string
		want         bool
	}{
		{"10.0.0.0/24", "10.0.0.1/32", true},
		{"10.0.0.0/24", "10.0.0.0/24", true},
		{"10.0.0.0/24", "10.0.1.0/24", false},
		{"10.0.0.1/32", "10.0.0.0/24", false},
		{"0.0.0.0/0", "192.0.2.0/24", true},
	}
	for _, tc := range tcs {
		t.Run(tc.outer+"_"+tc.inner, func(t *testing.T) {
			assert.Equal(t, tc.want, v4(t, tc.outer).Contains(v4(t, tc.inner)))
		})
	}
}

func TestIpv4NetBinaryRoundTrip(t *testing.T) {
	n := v4(t, "192.0.2.128/25")
	data, err := n.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{192, 0, 2, 128, 25}, data)

	var back Ipv4Net
	require.NoError(t, back.UnmarshalBinary(data))
	assert.Equal(t, n, back)

	var bad Ipv4Net
	assert.Error(t, bad.UnmarshalBinary([]byte{192, 0, 2, 1, 24})) // host bits
}

func TestIpv6NetBinaryRoundTrip(t *testing.T) {
	n := v6(t, "2001:db8::/48")
	data, err := n.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 17)
	require.EqualValues(t, 48, data[16])

	var back Ipv6Net
	require.NoError(t, back.UnmarshalBinary(data))
	assert.Equal(t, n, back)
}
