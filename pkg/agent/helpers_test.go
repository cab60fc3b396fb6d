package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeScript installs an executable shell script for use as a CURL or WG
// stand-in.
func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

// useCatCURL points CURL at a script that ignores the client flags and
// serves the file named by the final argument, so tests can use file paths
// as source URLs.
func useCatCURL(t *testing.T) {
	t.Helper()
	t.Setenv("CURL", writeScript(t, `#!/bin/sh
for a in "$@"; do url="$a"; done
cat "$url"
`))
}

// useFailingCURL points CURL at a script that fails with the given stderr.
func useFailingCURL(t *testing.T, stderr string) {
	t.Helper()
	t.Setenv("CURL", writeScript(t, fmt.Sprintf(`#!/bin/sh
printf '%%b\n' %q >&2
exit 22
`, stderr)))
}

// sourceDocument renders a minimal document with one server.
func sourceDocument(key fmt.Stringer, endpoint string, keepalive uint32, ipv4 ...string) string {
	nets := ""
	for i, n := range ipv4 {
		if i > 0 {
			nets += ","
		}
		nets += fmt.Sprintf("%q", n)
	}
	return fmt.Sprintf(`{"servers":[{"public_key":%q,"ipv4":[%s],"ipv6":[],"endpoint":%q,"keepalive":%d}],"road_warriors":[]}`,
		key.String(), nets, endpoint, keepalive)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}
