// Package proto defines the JSON document each source publishes: the current
// peer set, and optionally a staged next set with its activation time.
package proto

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jcodybaker/wgsync/pkg/model"
)

// Peer is the part common to servers and road-warriors.
type Peer struct {
	PublicKey model.Key       `json:"public_key"`
	IPv4      []model.Ipv4Net `json:"ipv4"`
	IPv6      []model.Ipv6Net `json:"ipv6"`
}

// Server is a peer with a fixed endpoint.
type Server struct {
	Peer
	Endpoint  model.Endpoint `json:"endpoint"`
	Keepalive uint32         `json:"keepalive"`
}

// RoadWarrior is a peer without an endpoint, attached to a base server.
type RoadWarrior struct {
	Peer
	Base model.Key `json:"base"`
}

// SourceView is one complete peer listing from a source.
type SourceView struct {
	Servers      []Server      `json:"servers"`
	RoadWarriors []RoadWarrior `json:"road_warriors"`
}

// Next is a staged view that becomes active once UpdateAt passes.
type Next struct {
	UpdateAt Timestamp `json:"update_at"`
	SourceView
}

// Source is the full document: the current view plus an optional staged one.
type Source struct {
	SourceView
	Next *Next `json:"next,omitempty"`
}

// Empty returns a document with no peers.
func Empty() *Source {
	return &Source{}
}

// Parse decodes a source document, rejecting unknown fields.
func Parse(data []byte) (*Source, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var s Source
	if err := dec.Decode(&s); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after source document")
	}
	return &s, nil
}

// Timestamp is a wall-clock instant. Text form is RFC3339 with nanoseconds;
// binary form is 12 bytes: big-endian seconds and nanoseconds.
type Timestamp struct {
	time.Time
}

const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(timestampFormat))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	t.Time = v
	return nil
}

func (t Timestamp) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf, uint64(t.Unix()))
	binary.BigEndian.PutUint32(buf[8:], uint32(t.Nanosecond()))
	return buf, nil
}

func (t *Timestamp) UnmarshalBinary(data []byte) error {
	if len(data) != 12 {
		return fmt.Errorf("timestamp must be 12 bytes, got %d", len(data))
	}
	secs := int64(binary.BigEndian.Uint64(data))
	nanos := binary.BigEndian.Uint32(data[8:])
	t.Time = time.Unix(secs, int64(nanos)).UTC()
	return nil
}
