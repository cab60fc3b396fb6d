package model

import (
	"encoding/binary"
	"errors"
	"net/netip"
)

// ErrBadPrefix is returned for IP networks whose prefix length exceeds the
// address width or whose host bits are not zero.
var ErrBadPrefix = errors.New("invalid IP network")

// Ipv4Net is an IPv4 network in canonical form: the address has no bits set
// beyond the prefix length.
type Ipv4Net struct {
	prefix netip.Prefix
}

// Ipv6Net is an IPv6 network in canonical form.
type Ipv6Net struct {
	prefix netip.Prefix
}

// ParseIpv4Net parses "A.B.C.D/N".
func ParseIpv4Net(s string) (Ipv4Net, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil || !p.Addr().Is4() || p != p.Masked() {
		return Ipv4Net{}, ErrBadPrefix
	}
	return Ipv4Net{prefix: p}, nil
}

// ParseIpv6Net parses "hhhh:.../N".
func ParseIpv6Net(s string) (Ipv6Net, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil || p.Addr().Is4() || p != p.Masked() {
		return Ipv6Net{}, ErrBadPrefix
	}
	return Ipv6Net{prefix: p}, nil
}

// Ipv4NetFrom builds a network from an address and prefix length.
func Ipv4NetFrom(addr netip.Addr, bits int) (Ipv4Net, error) {
	p := netip.PrefixFrom(addr, bits)
	if !addr.Is4() || !p.IsValid() || p != p.Masked() {
		return Ipv4Net{}, ErrBadPrefix
	}
	return Ipv4Net{prefix: p}, nil
}

// Ipv6NetFrom builds a network from an address and prefix length.
func Ipv6NetFrom(addr netip.Addr, bits int) (Ipv6Net, error) {
	p := netip.PrefixFrom(addr, bits)
	if addr.Is4() || !p.IsValid() || p != p.Masked() {
		return Ipv6Net{}, ErrBadPrefix
	}
	return Ipv6Net{prefix: p}, nil
}

func (n Ipv4Net) Addr() netip.Addr { return n.prefix.Addr() }
func (n Ipv4Net) Bits() int        { return n.prefix.Bits() }
func (n Ipv4Net) String() string   { return n.prefix.String() }

func (n Ipv6Net) Addr() netip.Addr { return n.prefix.Addr() }
func (n Ipv6Net) Bits() int        { return n.prefix.Bits() }
func (n Ipv6Net) String() string   { return n.prefix.String() }

// Contains reports whether every address of other is within n.
func (n Ipv4Net) Contains(other Ipv4Net) bool {
	return prefixContains(n.prefix, other.prefix)
}

// Contains reports whether every address of other is within n.
func (n Ipv6Net) Contains(other Ipv6Net) bool {
	return prefixContains(n.prefix, other.prefix)
}

// Compare orders networks lexicographically by (address, prefix length).
func (n Ipv4Net) Compare(other Ipv4Net) int {
	return comparePrefixes(n.prefix, other.prefix)
}

// Compare orders networks lexicographically by (address, prefix length).
func (n Ipv6Net) Compare(other Ipv6Net) int {
	return comparePrefixes(n.prefix, other.prefix)
}

func (n Ipv4Net) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *Ipv4Net) UnmarshalText(text []byte) error {
	v, err := ParseIpv4Net(string(text))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

func (n Ipv6Net) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *Ipv6Net) UnmarshalText(text []byte) error {
	v, err := ParseIpv6Net(string(text))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// MarshalBinary returns the address octets followed by one prefix-length byte.
func (n Ipv4Net) MarshalBinary() ([]byte, error) {
	a4 := n.prefix.Addr().As4()
	return append(a4[:], byte(n.prefix.Bits())), nil
}

func (n *Ipv4Net) UnmarshalBinary(data []byte) error {
	if len(data) != 5 {
		return ErrBadPrefix
	}
	var a4 [4]byte
	copy(a4[:], data)
	v, err := Ipv4NetFrom(netip.AddrFrom4(a4), int(data[4]))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// MarshalBinary returns the address octets followed by one prefix-length byte.
func (n Ipv6Net) MarshalBinary() ([]byte, error) {
	a16 := n.prefix.Addr().As16()
	return append(a16[:], byte(n.prefix.Bits())), nil
}

func (n *Ipv6Net) UnmarshalBinary(data []byte) error {
	if len(data) != 17 {
		return ErrBadPrefix
	}
	var a16 [16]byte
	copy(a16[:], data)
	v, err := Ipv6NetFrom(netip.AddrFrom16(a16), int(data[16]))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

func comparePrefixes(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	return a.Bits() - b.Bits()
}

func prefixContains(a, b netip.Prefix) bool {
	return a.Bits() <= b.Bits() && a.Contains(b.Addr())
}

// addr128 views an address as a 128-bit integer. IPv4 addresses occupy the low
// 32 bits of their IPv4-mapped form, so bit positions counted from the LSB
// agree with the 32-bit view.
func addr128(a netip.Addr) (hi, lo uint64) {
	b := a.As16()
	return binary.BigEndian.Uint64(b[:8]), binary.BigEndian.Uint64(b[8:])
}

func addrWidth(a netip.Addr) int {
	if a.Is4() {
		return 32
	}
	return 128
}

// siblingPrefixes reports whether a and b have the same nonzero prefix length
// and differ in exactly the last significant bit.
func siblingPrefixes(a, b netip.Prefix) bool {
	bits := a.Bits()
	if b.Bits() != bits || bits == 0 {
		return false
	}
	pos := uint(addrWidth(a.Addr()) - bits)
	ah, al := addr128(a.Addr())
	bh, bl := addr128(b.Addr())
	if pos < 64 {
		return ah == bh && al^bl == 1<<pos
	}
	return al == bl && ah^bh == 1<<(pos-64)
}

// shortenPrefix drops the last significant bit. The caller guarantees the
// address is the lower of a sibling pair, so the result stays canonical.
func shortenPrefix(p netip.Prefix) netip.Prefix {
	return netip.PrefixFrom(p.Addr(), p.Bits()-1)
}
