package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes files below a directory served by the static handler
// at BASE_URL/public
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates a store rooted at root (MEDIA_ROOT)
func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// Path returns the filesystem path of a key
func (s *LocalStore) Path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Upload copies data to root/key
func (s *LocalStore) Upload(ctx context.Context, key string, data io.ReadSeeker, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return s.URL(key), nil
}

// Delete removes root/key, ignoring missing files
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URL returns BASE_URL/public/key
func (s *LocalStore) URL(key string) string {
	return fmt.Sprintf("%s/public/%s", s.baseURL, key)
}
