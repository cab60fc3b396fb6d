package model

import (
	"encoding/json"
	"net/netip"
	"slices"
)

// prefixSet is the family-agnostic core of Ipv4Set and Ipv6Set: a sorted
// vector of non-overlapping prefixes in canonical form. Canonical means no
// element contains another and no two same-length siblings remain uncombined.
type prefixSet []netip.Prefix

func (s *prefixSet) insert(net netip.Prefix) {
	nets := *s
	i, ok := slices.BinarySearchFunc(nets, net, comparePrefixes)
	if ok {
		return
	}
	j := i
	if i > 0 && prefixContains(nets[i-1], net) {
		net = nets[i-1]
		i--
	}
	for j < len(nets) && prefixContains(net, nets[j]) {
		j++
	}
	for {
		if j < len(nets) && siblingPrefixes(net, nets[j]) {
			j++
		} else if i > 0 && siblingPrefixes(nets[i-1], net) {
			net = nets[i-1]
			i--
		} else {
			break
		}
		net = shortenPrefix(net)
	}
	*s = slices.Replace(nets, i, j, net)
}

func (s prefixSet) contains(net netip.Prefix) bool {
	i, ok := slices.BinarySearchFunc(s, net, comparePrefixes)
	if ok {
		return true
	}
	return i > 0 && prefixContains(s[i-1], net)
}

// canonicalize sorts nets in place and collapses them to canonical form in a
// single left-to-right pass.
func canonicalize(nets []netip.Prefix) prefixSet {
	if len(nets) == 0 {
		return nets
	}
	slices.SortFunc(nets, comparePrefixes)
	i := 1
	for j := 1; j < len(nets); j++ {
		net := nets[j]
		if prefixContains(nets[i-1], net) {
			net = nets[i-1]
			i--
		}
		for i > 0 && siblingPrefixes(nets[i-1], net) {
			net = shortenPrefix(nets[i-1])
			i--
		}
		nets[i] = net
		i++
	}
	return nets[:i]
}

// Ipv4Set is a canonical set of IPv4 networks.
type Ipv4Set struct {
	nets prefixSet
}

// Ipv6Set is a canonical set of IPv6 networks.
type Ipv6Set struct {
	nets prefixSet
}

// Ipv4SetOf builds a set from an arbitrary list of networks.
func Ipv4SetOf(nets ...Ipv4Net) Ipv4Set {
	raw := make([]netip.Prefix, len(nets))
	for i, n := range nets {
		raw[i] = n.prefix
	}
	return Ipv4Set{nets: canonicalize(raw)}
}

// Ipv6SetOf builds a set from an arbitrary list of networks.
func Ipv6SetOf(nets ...Ipv6Net) Ipv6Set {
	raw := make([]netip.Prefix, len(nets))
	for i, n := range nets {
		raw[i] = n.prefix
	}
	return Ipv6Set{nets: canonicalize(raw)}
}

// Insert adds net, absorbing covered elements and coalescing siblings.
func (s *Ipv4Set) Insert(net Ipv4Net) {
	s.nets.insert(net.prefix)
}

// Insert adds net, absorbing covered elements and coalescing siblings.
func (s *Ipv6Set) Insert(net Ipv6Net) {
	s.nets.insert(net.prefix)
}

// Contains reports whether net is covered by the set.
func (s Ipv4Set) Contains(net Ipv4Net) bool {
	return s.nets.contains(net.prefix)
}

// Contains reports whether net is covered by the set.
func (s Ipv6Set) Contains(net Ipv6Net) bool {
	return s.nets.contains(net.prefix)
}

func (s Ipv4Set) Len() int { return len(s.nets) }
func (s Ipv6Set) Len() int { return len(s.nets) }

// Prefixes returns the elements in sorted order.
func (s Ipv4Set) Prefixes() []Ipv4Net {
	out := make([]Ipv4Net, len(s.nets))
	for i, p := range s.nets {
		out[i] = Ipv4Net{prefix: p}
	}
	return out
}

// Prefixes returns the elements in sorted order.
func (s Ipv6Set) Prefixes() []Ipv6Net {
	out := make([]Ipv6Net, len(s.nets))
	for i, p := range s.nets {
		out[i] = Ipv6Net{prefix: p}
	}
	return out
}

func (s Ipv4Set) Equal(other Ipv4Set) bool {
	return slices.Equal(s.nets, other.nets)
}

func (s Ipv6Set) Equal(other Ipv6Set) bool {
	return slices.Equal(s.nets, other.nets)
}

func (s Ipv4Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Prefixes())
}

func (s *Ipv4Set) UnmarshalJSON(data []byte) error {
	var nets []Ipv4Net
	if err := json.Unmarshal(data, &nets); err != nil {
		return err
	}
	*s = Ipv4SetOf(nets...)
	return nil
}

func (s Ipv6Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Prefixes())
}

func (s *Ipv6Set) UnmarshalJSON(data []byte) error {
	var nets []Ipv6Net
	if err := json.Unmarshal(data, &nets); err != nil {
		return err
	}
	*s = Ipv6SetOf(nets...)
	return nil
}
