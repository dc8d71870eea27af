package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore reads and writes objects on the local filesystem.
type LocalStore struct{}

// NewLocalStore creates a LocalStore.
func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

// Get reads the file at uri.
func (s *LocalStore) Get(ctx context.Context, uri string) ([]byte, error) {
	loc, err := localLocation(uri)
	if err != nil {
		return nil, fmt.Errorf("LocalStore.Get: %w", err)
	}

	data, err := os.ReadFile(loc.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("LocalStore.Get: %s: %w", loc.Path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("LocalStore.Get: reading %s: %w", loc.Path, err)
	}
	return data, nil
}

// Put writes data to uri through a temporary file, creating parent directories.
func (s *LocalStore) Put(ctx context.Context, uri string, data []byte) error {
	loc, err := localLocation(uri)
	if err != nil {
		return fmt.Errorf("LocalStore.Put: %w", err)
	}

	dir := filepath.Dir(loc.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("LocalStore.Put: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(loc.Path)+"-*")
	if err != nil {
		return fmt.Errorf("LocalStore.Put: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("LocalStore.Put: writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("LocalStore.Put: closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), loc.Path); err != nil {
		return fmt.Errorf("LocalStore.Put: renaming into %s: %w", loc.Path, err)
	}
	return nil
}

func localLocation(uri string) (Location, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return Location{}, err
	}
	if loc.Scheme != SchemeFile {
		return Location{}, fmt.Errorf("not a local path %q: %w", uri, ErrInvalidURI)
	}
	return loc, nil
}
