package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidURI is returned for URIs no store understands.
	ErrInvalidURI = errors.New("invalid object URI")
	// ErrNotFound is returned when the object does not exist.
	ErrNotFound = errors.New("object not found")
)

// URI schemes understood by Router.
const (
	SchemeGCS  = "gs"
	SchemeFile = "file"
)

// ObjectStore reads and writes whole objects addressed by URI.
// This interface enables mocking and testing of storage functionality.
type ObjectStore interface {
	// Get downloads the object bytes at uri.
	Get(ctx context.Context, uri string) ([]byte, error)

	// Put replaces the object at uri with data.
	Put(ctx context.Context, uri string, data []byte) error
}

// Location is a parsed object URI.
type Location struct {
	Scheme string
	Bucket string
	Path   string
}

// String renders the location back as a URI.
func (l Location) String() string {
	if l.Scheme == SchemeGCS {
		return "gs://" + l.Bucket + "/" + l.Path
	}
	return "file://" + l.Path
}

// ParseURI parses gs://bucket/object, file:///path or a plain local path.
func ParseURI(uri string) (Location, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "":
		return Location{}, fmt.Errorf("ParseURI: empty uri: %w", ErrInvalidURI)

	case strings.HasPrefix(uri, "gs://"):
		parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return Location{}, fmt.Errorf("ParseURI: no object path in %q: %w", uri, ErrInvalidURI)
		}
		return Location{Scheme: SchemeGCS, Bucket: parts[0], Path: parts[1]}, nil

	case strings.HasPrefix(uri, "file://"):
		p := strings.TrimPrefix(uri, "file://")
		if p == "" {
			return Location{}, fmt.Errorf("ParseURI: no path in %q: %w", uri, ErrInvalidURI)
		}
		return Location{Scheme: SchemeFile, Path: filepath.Clean(p)}, nil

	case strings.Contains(uri, "://"):
		return Location{}, fmt.Errorf("ParseURI: unsupported scheme in %q: %w", uri, ErrInvalidURI)
	}

	return Location{Scheme: SchemeFile, Path: filepath.Clean(uri)}, nil
}

// Filename extracts the last path element of a URI.
// e.g., "gs://bucket/folder/extrato.parquet" → "extrato.parquet"
func Filename(uri string) string {
	loc, err := ParseURI(uri)
	if err != nil {
		return ""
	}
	return path.Base(filepath.ToSlash(loc.Path))
}

// Router dispatches to a store by URI scheme.
type Router struct {
	GCS   ObjectStore
	Local ObjectStore
}

// NewRouter creates a Router. A nil gcs store makes gs:// URIs fail with ErrInvalidURI.
func NewRouter(gcs, local ObjectStore) *Router {
	if local == nil {
		local = NewLocalStore()
	}
	return &Router{GCS: gcs, Local: local}
}

func (r *Router) storeFor(uri string) (ObjectStore, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if loc.Scheme == SchemeGCS {
		if r.GCS == nil {
			return nil, fmt.Errorf("no GCS store configured for %q: %w", uri, ErrInvalidURI)
		}
		return r.GCS, nil
	}
	return r.Local, nil
}

// Get downloads the object at uri from the matching store.
func (r *Router) Get(ctx context.Context, uri string) ([]byte, error) {
	s, err := r.storeFor(uri)
	if err != nil {
		return nil, fmt.Errorf("Router.Get: %w", err)
	}
	return s.Get(ctx, uri)
}

// Put writes the object at uri to the matching store.
func (r *Router) Put(ctx context.Context, uri string, data []byte) error {
	s, err := r.storeFor(uri)
	if err != nil {
		return fmt.Errorf("Router.Put: %w", err)
	}
	return s.Put(ctx, uri, data)
}
