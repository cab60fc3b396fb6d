package model

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Endpoint is a peer's remote address: an IPv6 address and a port. IPv4
// endpoints are held in IPv4-mapped IPv6 form.
type Endpoint struct {
	addr netip.Addr
	port uint16
}

// ParseEndpoint parses "A.B.C.D:P" or "[v6]:P".
func ParseEndpoint(s string) (Endpoint, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parsing endpoint: %w", err)
	}
	addr := ap.Addr()
	if addr.Is4() {
		addr = netip.AddrFrom16(addr.As16())
	}
	return Endpoint{addr: addr, port: ap.Port()}, nil
}

// Addr returns the IPv6 form of the address.
func (e Endpoint) Addr() netip.Addr {
	return e.addr
}

func (e Endpoint) Port() uint16 {
	return e.port
}

func (e Endpoint) String() string {
	if e.addr.Is4In6() {
		return fmt.Sprintf("%s:%d", e.addr.Unmap(), e.port)
	}
	return fmt.Sprintf("[%s]:%d", e.addr, e.port)
}

func (e Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Endpoint) UnmarshalText(text []byte) error {
	v, err := ParseEndpoint(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// MarshalBinary returns the 18-byte form: 16 address octets followed by the
// big-endian port.
func (e Endpoint) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 18)
	a16 := e.addr.As16()
	copy(buf, a16[:])
	binary.BigEndian.PutUint16(buf[16:], e.port)
	return buf, nil
}

func (e *Endpoint) UnmarshalBinary(data []byte) error {
	if len(data) != 18 {
		return fmt.Errorf("endpoint must be 18 bytes, got %d", len(data))
	}
	var a16 [16]byte
	copy(a16[:], data[:16])
	e.addr = netip.AddrFrom16(a16)
	e.port = binary.BigEndian.Uint16(data[16:])
	return nil
}
