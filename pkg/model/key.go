package model

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/jcodybaker/wgsync/pkg/fileutil"
)

// Key is a WireGuard public key. Its canonical text form is standard base64:
// 44 characters, '=' terminated.
type Key [32]byte

// keyFinalChars are the base64 digits allowed in position 43 of a key; the
// character there encodes only 2 meaningful bits.
const keyFinalChars = "048AEIMQUYcgkosw"

// ParseKey parses the base64 text form of a key.
func ParseKey(s string) (Key, error) {
	k, err := wgtypes.ParseKey(s)
	if err != nil {
		return Key{}, fmt.Errorf("parsing key: %w", err)
	}
	if len(s) != 44 || !strings.ContainsRune(keyFinalChars, rune(s[42])) {
		return Key{}, fmt.Errorf("key %q is not in canonical base64 form", s)
	}
	return Key(k), nil
}

func (k Key) String() string {
	return wgtypes.Key(k).String()
}

// Compare orders keys by their raw bytes.
func (k Key) Compare(other Key) int {
	return bytes.Compare(k[:], other[:])
}

// MarshalText implements encoding.TextMarshaler so keys can be used as JSON
// object keys.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	v, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// MarshalBinary returns the compact 32-byte form.
func (k Key) MarshalBinary() ([]byte, error) {
	out := make([]byte, len(k))
	copy(out, k[:])
	return out, nil
}

func (k *Key) UnmarshalBinary(data []byte) error {
	if len(data) != len(k) {
		return fmt.Errorf("key must be %d bytes, got %d", len(k), len(data))
	}
	copy(k[:], data)
	return nil
}

// Secret is a 32-byte key whose value must never reach logs. All fmt verbs
// print a redacted placeholder; the base64 form is available only through
// Reveal.
type Secret struct {
	key Key
}

// SecretFromKey wraps key material in a redacting Secret.
func SecretFromKey(k Key) *Secret {
	return &Secret{key: k}
}

// LoadSecret reads a secret from path. The file holds the base64 form with at
// most one trailing newline; an empty file means no secret and yields
// (nil, nil).
func LoadSecret(path string) (*Secret, error) {
	data, found, err := fileutil.Load(path)
	if err != nil {
		return nil, fmt.Errorf("reading secret %q: %w", path, err)
	}
	if !found {
		return nil, fmt.Errorf("reading secret %q: no such file", path)
	}
	data = bytes.TrimSuffix(data, []byte("\n"))
	if len(data) == 0 {
		return nil, nil
	}
	k, err := ParseKey(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing secret %q: %w", path, err)
	}
	return &Secret{key: k}, nil
}

// Reveal returns the base64 form. The only legitimate consumer is the device
// adapter feeding the control utility's stdin.
func (s *Secret) Reveal() string {
	return s.key.String()
}

func (s *Secret) Equal(other *Secret) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.key == other.key
}

func (s *Secret) String() string {
	return "<secret key>"
}

// Format redacts the secret for every fmt verb.
func (s *Secret) Format(f fmt.State, verb rune) {
	io.WriteString(f, "<secret key>")
}

// MarshalText emits the real key material. Secrets are serialized only into
// files the daemon itself writes with mode 0600.
func (s *Secret) MarshalText() ([]byte, error) {
	return s.key.MarshalText()
}

func (s *Secret) UnmarshalText(text []byte) error {
	return s.key.UnmarshalText(text)
}
