package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndLoadArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cached_index.html")
	content := []byte("<html>snapshot</html>")

	require.NoError(t, WriteArtifact(path, content))

	data, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, content, data, "artifact reads back byte-for-byte")
}

func TestWriteArtifact_LastWriterWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cached_index.html")

	require.NoError(t, WriteArtifact(path, []byte("first")))
	require.NoError(t, WriteArtifact(path, []byte("second")))

	data, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestWriteArtifact_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cached_index.html")

	require.NoError(t, WriteArtifact(path, []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cached_index.html", entries[0].Name())
}

func TestLoadArtifact_Missing(t *testing.T) {
	_, err := LoadArtifact(filepath.Join(t.TempDir(), "missing.html"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoArtifact))
}
