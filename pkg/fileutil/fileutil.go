// Package fileutil provides atomic file replacement and tolerant reads for
// the daemon's cache and state files.
package fileutil

import (
	"fmt"
	"os"
)

// Update atomically replaces path with data. The data is written to a
// temporary file in the same directory, synced, and renamed over path. On
// failure the temporary file is removed best-effort.
func Update(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("creating %q: %w", tmp, err)
	}

	err = writeSync(f, data)
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

func writeSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// Load reads path in full. A missing file is not an error: it is reported via
// found=false.
func Load(path string) (data []byte, found bool, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}
