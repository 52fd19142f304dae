package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/you/mcmarket/domain"
)

// LocalStorage writes uploads below a directory on disk
type LocalStorage struct {
	root      string
	publicURL string
}

func NewLocalStorage(root, publicURL string) (*LocalStorage, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{root: root, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

func (s *LocalStorage) Save(ctx context.Context, prefix, fileName, contentType string, r io.Reader, size int64) (*domain.StoredObject, error) {
	key := objectName(prefix, fileName, time.Now())
	full := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("create object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(full)
		return nil, fmt.Errorf("write object: %w", err)
	}
	return &domain.StoredObject{Key: key, URL: s.publicURL + "/" + key}, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return fmt.Errorf("object key %q escapes storage root", key)
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
