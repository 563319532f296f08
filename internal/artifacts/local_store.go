package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LocalStore stores artifacts on the local filesystem, organized by
// kind/YYYY/MM/DD to keep any one directory from growing unbounded. An
// index.json sidecar maps artifact IDs to their relative path so Get/Delete
// don't need to re-derive the date-bucketed path from the ID alone.
type LocalStore struct {
	mu        sync.RWMutex
	basePath  string
	indexPath string
	index     map[string]string // artifactID -> relative path
}

// NewLocalStore creates (if needed) basePath and loads its index.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("artifacts: create base dir: %w", err)
	}
	s := &LocalStore{
		basePath:  basePath,
		indexPath: filepath.Join(basePath, "index.json"),
		index:     make(map[string]string),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) Put(ctx context.Context, artifactID string, data io.Reader, opts PutOptions) (string, error) {
	kind := "unknown"
	if t, ok := opts.Metadata["kind"]; ok && t != "" {
		kind = t
	}

	now := time.Now()
	dir := filepath.Join(s.basePath, kind,
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: create date dir: %w", err)
	}

	ext := extensionForMime(opts.MimeType)
	relPath := filepath.Join(kind,
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()),
		artifactID+ext)
	target := filepath.Join(s.basePath, relPath)
	tmp := target + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("artifacts: create temp file: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("artifacts: write data: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("artifacts: close temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("artifacts: rename: %w", err)
	}

	s.mu.Lock()
	s.index[artifactID] = relPath
	err = s.persistIndexLocked()
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("file://%s", target), nil
}

func (s *LocalStore) Get(ctx context.Context, artifactID string) (io.ReadCloser, error) {
	s.mu.RLock()
	relPath, ok := s.index[artifactID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("artifacts: not found: %s", artifactID)
	}
	f, err := os.Open(filepath.Join(s.basePath, relPath))
	if err != nil {
		return nil, fmt.Errorf("artifacts: open: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	relPath, ok := s.index[artifactID]
	if !ok {
		return nil
	}
	if err := os.Remove(filepath.Join(s.basePath, relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("artifacts: delete: %w", err)
	}
	delete(s.index, artifactID)
	return s.persistIndexLocked()
}

func (s *LocalStore) Exists(ctx context.Context, artifactID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[artifactID]
	return ok, nil
}

func (s *LocalStore) Close() error {
	return nil
}

func (s *LocalStore) loadIndex() error {
	data, err := os.ReadFile(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("artifacts: read index: %w", err)
	}
	return json.Unmarshal(data, &s.index)
}

// persistIndexLocked must be called with s.mu held.
func (s *LocalStore) persistIndexLocked() error {
	data, err := json.Marshal(s.index)
	if err != nil {
		return fmt.Errorf("artifacts: marshal index: %w", err)
	}
	tmp := s.indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("artifacts: write index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("artifacts: rename index: %w", err)
	}
	return nil
}

func extensionForMime(mimeType string) string {
	switch mimeType {
	case "application/json":
		return ".json"
	case "text/plain":
		return ".txt"
	case "text/markdown":
		return ".md"
	case "text/html":
		return ".html"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
