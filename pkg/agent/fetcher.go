package agent

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/jcodybaker/wgsync/pkg/proto"
)

// defaultFetchCommand is used unless the CURL environment variable names
// another HTTP client (optionally with leading arguments).
const defaultFetchCommand = "curl"

// fetchSource retrieves and parses one source document. The transfer is
// bounded to 10 seconds and 1 MB by the client's own flags. On failure the
// client's stderr, newlines folded to "; ", becomes the error message.
func fetchSource(url string) (*proto.Source, error) {
	cmdline := []string{defaultFetchCommand}
	if v := os.Getenv("CURL"); v != "" {
		words, err := shellquote.Split(v)
		if err != nil || len(words) == 0 {
			return nil, fmt.Errorf("invalid CURL environment variable %q", v)
		}
		cmdline = words
	}

	args := append([]string{}, cmdline[1:]...)
	args = append(args,
		"-gsSfL",
		"--fail-early",
		"--max-time", "10",
		"--max-filesize", "1M",
		"--", url)

	cmd := exec.Command(cmdline[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSuffix(stderr.String(), "\n")
		msg = strings.ReplaceAll(msg, "\n", "; ")
		if msg == "" {
			return nil, fmt.Errorf("fetching %q: %w", url, err)
		}
		return nil, errors.New(msg)
	}

	return proto.Parse(stdout.Bytes())
}

// LoadSourceFile parses a source document from disk. Used by --check-source.
func LoadSourceFile(path string) (*proto.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return proto.Parse(data)
}
