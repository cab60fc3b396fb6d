package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, Update(path, []byte("one")))
	data, found, err := Load(path)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "one", string(data))

	// Replacement is atomic: no temp file remains afterwards.
	require.NoError(t, Update(path, []byte("two")))
	data, found, err = Load(path)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "two", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestUpdateCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	// Renaming over a directory fails after the temp file was written.
	path := filepath.Join(dir, "target")
	require.NoError(t, os.Mkdir(path, 0o755))

	require.Error(t, Update(path, []byte("data")))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMissing(t *testing.T) {
	data, found, err := Load(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, data)
}

func TestLoadError(t *testing.T) {
	// A directory is readable as a path but not as a file.
	dir := t.TempDir()
	_, found, err := Load(dir)
	require.Error(t, err)
	assert.False(t, found)
}
