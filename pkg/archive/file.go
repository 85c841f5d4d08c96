package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileArchive stores blobs under a local directory, named by content hash.
type FileArchive struct {
	dir string
}

var _ Archive = (*FileArchive)(nil)

func NewFileArchive(dir string) (*FileArchive, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileArchive{dir: dir}, nil
}

func (a *FileArchive) Store(_ context.Context, blob []byte) (string, error) {
	key := contentKey(blob)
	path := filepath.Join(a.dir, key+".json")
	if _, err := os.Stat(path); err == nil {
		return key, nil // already archived
	}

	// Write-then-rename so a crash never leaves a truncated blob.
	tmp, err := os.CreateTemp(a.dir, ".evidence-*")
	if err != nil {
		return "", fmt.Errorf("failed to stage evidence blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write evidence blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to commit evidence blob: %w", err)
	}
	return key, nil
}
