// Package interfaces drives a WireGuard network interface through the
// external control utility.
package interfaces

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/jcodybaker/wgsync/pkg/model"
)

// defaultControlCommand is used unless the WG environment variable names
// another utility (optionally with leading arguments).
const defaultControlCommand = "wg"

// Device is a handle on one WireGuard interface.
type Device struct {
	ifname string
	wg     []string
}

// OpenDevice returns a handle after querying the interface's public key,
// which probes both existence and access.
func OpenDevice(ifname string) (*Device, error) {
	wg, err := controlCommand()
	if err != nil {
		return nil, err
	}
	d := &Device{ifname: ifname, wg: wg}
	if _, err := d.GetPublicKey(); err != nil {
		return nil, fmt.Errorf("probing interface %q: %w", ifname, err)
	}
	return d, nil
}

func controlCommand() ([]string, error) {
	v := os.Getenv("WG")
	if v == "" {
		return []string{defaultControlCommand}, nil
	}
	words, err := shellquote.Split(v)
	if err != nil || len(words) == 0 {
		return nil, fmt.Errorf("invalid WG environment variable %q", v)
	}
	return words, nil
}

// GetPublicKey queries the interface's current public key.
func (d *Device) GetPublicKey() (model.Key, error) {
	cmd := d.command("show", d.ifname, "public-key")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return model.Key{}, fmt.Errorf("querying public key of %q: %w (%s)",
			d.ifname, err, strings.TrimSpace(stderr.String()))
	}
	k, err := model.ParseKey(strings.TrimSuffix(stdout.String(), "\n"))
	if err != nil {
		return model.Key{}, fmt.Errorf("interface %q returned a malformed public key: %w", d.ifname, err)
	}
	return k, nil
}

// ApplyDiff drives the interface from old to new with a single control
// utility invocation. Preshared key material is fed on stdin, one line per
// "preshared-key -" argument; it never appears in the argument vector. When
// old and new are identical the utility is not invoked at all.
func (d *Device) ApplyDiff(old, new *model.Config) error {
	var args []string
	var stdin bytes.Buffer

	for _, k := range sortedKeys(new.Peers) {
		newp := new.Peers[k]
		oldp := old.Peers[k]
		if newp.Equal(oldp) {
			continue
		}

		var oldEndpoint *model.Endpoint
		var oldPSK *model.Secret
		if oldp != nil {
			oldEndpoint = oldp.Endpoint
			oldPSK = oldp.PSK
		}

		args = append(args, "peer", k.String(),
			"persistent-keepalive", strconv.FormatUint(uint64(newp.Keepalive), 10))

		if !endpointEqual(oldEndpoint, newp.Endpoint) && newp.Endpoint != nil {
			args = append(args, "endpoint", newp.Endpoint.String())
		}

		if !newp.PSK.Equal(oldPSK) {
			args = append(args, "preshared-key", "-")
			if newp.PSK != nil {
				stdin.WriteString(newp.PSK.Reveal())
			}
			stdin.WriteByte('\n')
		}

		args = append(args, "allowed-ips", allowedIPs(newp))
	}

	for _, k := range sortedKeys(old.Peers) {
		if _, ok := new.Peers[k]; ok {
			continue
		}
		args = append(args, "peer", k.String(), "remove")
	}

	if len(args) == 0 {
		return nil
	}

	cmd := d.command(append([]string{"set", d.ifname}, args...)...)
	cmd.Stdin = &stdin
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("configuring %q: %w", d.ifname, err)
	}
	return nil
}

func (d *Device) command(args ...string) *exec.Cmd {
	full := append(append([]string{}, d.wg[1:]...), args...)
	return exec.Command(d.wg[0], full...)
}

func sortedKeys(peers map[model.Key]*model.Peer) []model.Key {
	keys := make([]model.Key, 0, len(peers))
	for k := range peers {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, model.Key.Compare)
	return keys
}

func endpointEqual(a, b *model.Endpoint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func allowedIPs(p *model.Peer) string {
	var sb strings.Builder
	for _, n := range p.IPv4 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(n.String())
	}
	for _, n := range p.IPv6 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(n.String())
	}
	return sb.String()
}
