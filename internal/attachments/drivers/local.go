package drivers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalStore keeps attachment bytes on local disk, fanned out into two-level
// subdirectories so no single directory grows unbounded.
type LocalStore struct {
	BaseDir   string
	PublicURL string
}

// NewLocalStore creates a LocalStore rooted at baseDir. publicURL is the base
// path used when building download links (e.g. /api/attachments/files).
func NewLocalStore(baseDir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	return &LocalStore{BaseDir: baseDir, PublicURL: publicURL}, nil
}

func (s *LocalStore) fanout(key string) string {
	if len(key) < 4 {
		return key
	}
	return filepath.Join(key[0:2], key[2:4], key)
}

func (s *LocalStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	fullPath := filepath.Join(s.BaseDir, s.fanout(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create attachment subdirectory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create attachment file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		os.Remove(fullPath)
		return fmt.Errorf("failed to write attachment content: %w", err)
	}

	// Content type lives in a sidecar next to the content.
	if err := os.WriteFile(fullPath+".meta", []byte(contentType), 0644); err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("failed to write attachment metadata: %w", err)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	fullPath := filepath.Join(s.BaseDir, s.fanout(key))
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, "", err
	}

	contentType := "application/octet-stream"
	if meta, err := os.ReadFile(fullPath + ".meta"); err == nil {
		contentType = string(meta)
	}
	return f, contentType, nil
}

func (s *LocalStore) Remove(ctx context.Context, key string) error {
	fullPath := filepath.Join(s.BaseDir, s.fanout(key))
	os.Remove(fullPath + ".meta")
	err := os.Remove(fullPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *LocalStore) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if s.PublicURL == "" {
		return key, nil
	}
	return fmt.Sprintf("%s/%s", s.PublicURL, key), nil
}
