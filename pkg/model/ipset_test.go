package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireCanonicalV4 asserts the set is strictly sorted with no element
// containing another and no uncombined sibling pair.
func requireCanonicalV4(t *testing.T, s Ipv4Set) {
	t.Helper()
	nets := s.Prefixes()
	for i := 1; i < len(nets); i++ {
		require.True(t, nets[i-1].Compare(nets[i]) < 0, "set not strictly sorted: %v", nets)
		require.False(t, nets[i-1].Contains(nets[i]), "element %v contains %v", nets[i-1], nets[i])
		require.False(t, siblingPrefixes(nets[i-1].prefix, nets[i].prefix),
			"uncombined siblings %v, %v", nets[i-1], nets[i])
	}
}

func TestIpv4SetInsert(t *testing.T) {
	tcs := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "siblings coalesce",
			in:   []string{"10.0.0.0/32", "10.0.0.1/32"},
			want: []string{"10.0.0.0/31"},
		},
		{
			name: "cascade to /29",
			in: []string{
				"10.0.0.0/32", "10.0.0.1/32", "10.0.0.2/32", "10.0.0.3/32",
				"10.0.0.4/32", "10.0.0.5/32", "10.0.0.6/32", "10.0.0.7/32",
			},
			want: []string{"10.0.0.0/29"},
		},
		{
			name: "default route absorbs",
			in:   []string{"10.0.0.0/24", "192.0.2.0/24", "0.0.0.0/0"},
			want: []string{"0.0.0.0/0"},
		},
		{
			name: "contained insert is a no-op",
			in:   []string{"10.0.0.0/24", "10.0.0.128/25"},
			want: []string{"10.0.0.0/24"},
		},
		{
			name: "disjoint stay separate",
			in:   []string{"192.0.2.0/24", "10.0.0.0/24"},
			want: []string{"10.0.0.0/24", "192.0.2.0/24"},
		},
		{
			name: "duplicate insert",
			in:   []string{"10.0.0.0/24", "10.0.0.0/24"},
			want: []string{"10.0.0.0/24"},
		},
		{
			name: "absorbs dominated elements",
			in:   []string{"10.0.0.0/32", "10.0.0.64/32", "10.0.0.0/24"},
			want: []string{"10.0.0.0/24"},
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			var s Ipv4Set
			for _, in := range tc.in {
				s.Insert(v4(t, in))
			}
			requireCanonicalV4(t, s)

			var got []string
			for _, n := range s.Prefixes() {
				got = append(got, n.String())
			}
			assert.Equal(t, tc.want, got)

			// Bulk construction and incremental insertion agree.
			var nets []Ipv4Net
			for _, in := range tc.in {
				nets = append(nets, v4(t, in))
			}
			assert.True(t, s.Equal(Ipv4SetOf(nets...)))
		})
	}
}

func TestIpv4SetContains(t *testing.T) {
	s := Ipv4SetOf(v4(t, "10.0.0.0/24"), v4(t, "192.0.2.0/25"))

	for _, n := range s.Prefixes() {
		assert.True(t, s.Contains(n))
	}
	assert.True(t, s.Contains(v4(t, "10.0.0.7/32")))
	assert.True(t, s.Contains(v4(t, "192.0.2.0/26")))
	assert.False(t, s.Contains(v4(t, "10.0.1.0/24")))
	assert.False(t, s.Contains(v4(t, "10.0.0.0/23")))
	assert.False(t, s.Contains(v4(t, "192.0.2.128/25")))
	assert.False(t, s.Contains(v4(t, "0.0.0.0/0")))
}

func TestIpv6SetInsert(t *testing.T) {
	var s Ipv6Set
	s.Insert(v6(t, "2001:db8::/48"))
	s.Insert(v6(t, "2001:db8:1::/48"))
	require.Equal(t, []Ipv6Net{v6(t, "2001:db8::/47")}, s.Prefixes())

	// Sibling bit above the /64 boundary.
	s = Ipv6Set{}
	s.Insert(v6(t, "::/1"))
	s.Insert(v6(t, "8000::/1"))
	require.Equal(t, []Ipv6Net{v6(t, "::/0")}, s.Prefixes())

	assert.True(t, s.Contains(v6(t, "2001:db8::1/128")))
}

func TestIpv4SetJSON(t *testing.T) {
	s := Ipv4SetOf(v4(t, "192.0.2.0/24"), v4(t, "10.0.0.0/8"))
	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `["10.0.0.0/8","192.0.2.0/24"]`, string(data))

	var back Ipv4Set
	require.NoError(t, back.UnmarshalJSON(data))
	assert.True(t, s.Equal(back))
}

func TestIpv4SetOfCanonicalizes(t *testing.T) {
	// An arbitrary, unsorted, overlapping list collapses to canonical form.
	var nets []Ipv4Net
	for i := 7; i >= 0; i-- {
		nets = append(nets, v4(t, fmt.Sprintf("10.0.0.%d/32", i)))
	}
	nets = append(nets, v4(t, "10.0.0.0/30"))
	s := Ipv4SetOf(nets...)
	requireCanonicalV4(t, s)
	assert.Equal(t, []Ipv4Net{v4(t, "10.0.0.0/29")}, s.Prefixes())
}
