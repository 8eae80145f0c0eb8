package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoArtifact is returned when no persisted snapshot artifact exists yet.
// For the cached-serving mode this is a fatal startup condition.
var ErrNoArtifact = errors.New("no snapshot artifact present")

// WriteArtifact persists rendered snapshot bytes to path.
//
// The write goes through a temp file in the same directory followed by a
// rename, so readers never observe a half-written artifact. Concurrent
// generators are not coordinated; the last writer wins.
func WriteArtifact(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads the persisted artifact back byte-for-byte. Returns
// ErrNoArtifact when the file does not exist.
func LoadArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoArtifact, path)
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}
