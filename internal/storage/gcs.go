package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// uploadTimeout bounds a single object write.
const uploadTimeout = 2 * time.Minute

// GCSStore reads and writes objects in Google Cloud Storage. It holds one
// shared client for all operations.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore creates a store. Without options the client uses Application
// Default Credentials (gcloud auth application-default login).
func NewGCSStore(ctx context.Context, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStore: create storage client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// NewGCSStoreWithClient wraps an existing client.
func NewGCSStoreWithClient(client *storage.Client) *GCSStore {
	return &GCSStore{client: client}
}

// Close closes the storage client.
func (s *GCSStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Get downloads the object bytes from the given gs:// URI.
func (s *GCSStore) Get(ctx context.Context, uri string) ([]byte, error) {
	loc, err := gcsLocation(uri)
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Get: %w", err)
	}

	rc, err := s.client.Bucket(loc.Bucket).Object(loc.Path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("GCSStore.Get: %s: %w", uri, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Get: reading object %s/%s: %w", loc.Bucket, loc.Path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("GCSStore.Get: reading bytes: %w", err)
	}
	return data, nil
}

// Put uploads data to the given gs:// URI, replacing any existing object.
func (s *GCSStore) Put(ctx context.Context, uri string, data []byte) error {
	loc, err := gcsLocation(uri)
	if err != nil {
		return fmt.Errorf("GCSStore.Put: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(loc.Bucket).Object(loc.Path).NewWriter(ctx)
	w.ContentType = "application/vnd.apache.parquet"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("GCSStore.Put: write to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("GCSStore.Put: finalize upload: %w", err)
	}
	return nil
}

// UploadFile uploads a local file to the given gs:// URI.
func (s *GCSStore) UploadFile(ctx context.Context, filePath, uri string) error {
	loc, err := gcsLocation(uri)
	if err != nil {
		return fmt.Errorf("UploadFile: %w", err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(loc.Bucket).Object(loc.Path).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("UploadFile: copy file to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize upload: %w", err)
	}
	return nil
}

func gcsLocation(uri string) (Location, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return Location{}, err
	}
	if loc.Scheme != SchemeGCS {
		return Location{}, fmt.Errorf("not a gs:// uri %q: %w", uri, ErrInvalidURI)
	}
	return loc, nil
}
