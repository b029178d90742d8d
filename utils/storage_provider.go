package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderLocal = "local"
)

// FileStore keeps uploaded imports and rendered reports by object key.
type FileStore interface {
	Save(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var ErrorObjectNotFound = errors.New("object not found")

// GetStorageProvider defaults to gcs when a bucket is configured, local otherwise.
func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider != "" {
		return provider
	}
	if os.Getenv("GCS_BUCKET") != "" {
		return StorageProviderGCS
	}
	return StorageProviderLocal
}

func NewFileStore(ctx context.Context) (FileStore, error) {
	switch provider := GetStorageProvider(); provider {
	case StorageProviderGCS:
		return NewGCSStore(ctx, os.Getenv("GCS_BUCKET"))
	case StorageProviderLocal:
		dir := os.Getenv("LOCAL_STORAGE_DIR")
		if dir == "" {
			dir = "storage"
		}
		return NewLocalStore(dir)
	default:
		return nil, fmt.Errorf("unsupported STORAGE_PROVIDER %q", provider)
	}
}

// LocalStore writes objects below a root directory; keys map to relative paths.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) Save(ctx context.Context, key string, r io.Reader) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrorObjectNotFound
	}
	return f, err
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
