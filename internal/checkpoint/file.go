package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/weaver-ai/weaver/pkg/models"
)

// FileStore persists checkpoints as one JSON file per (thread, seq) under a
// base directory, using a write-to-temp-then-rename so a crash mid-write
// never leaves a partially written checkpoint for Get/Latest to read.
type FileStore struct {
	mu   sync.Mutex
	base string
}

// NewFileStore creates (if needed) base and returns a FileStore rooted there.
func NewFileStore(base string) (*FileStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create base dir: %w", err)
	}
	return &FileStore{base: base}, nil
}

func (s *FileStore) threadDir(threadID string) string {
	return filepath.Join(s.base, sanitize(threadID))
}

func (s *FileStore) path(threadID string, seq int64) string {
	return filepath.Join(s.threadDir(threadID), fmt.Sprintf("%020d.json", seq))
}

func (s *FileStore) Save(ctx context.Context, cp *models.Checkpoint) error {
	if cp == nil || cp.ThreadID == "" {
		return fmt.Errorf("checkpoint: thread_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.threadDir(cp.ThreadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: create thread dir: %w", err)
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	target := s.path(cp.ThreadID, cp.Seq)
	if _, err := os.Stat(target); err == nil {
		return nil // append-only: a duplicate save is a no-op
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

func (s *FileStore) Latest(ctx context.Context, threadID string) (*models.Checkpoint, error) {
	seqs, err := s.listSeqs(threadID)
	if err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, threadID, seqs[len(seqs)-1])
}

func (s *FileStore) Get(ctx context.Context, threadID string, seq int64) (*models.Checkpoint, error) {
	data, err := os.ReadFile(s.path(threadID, seq))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}
	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal: %w", err)
	}
	return &cp, nil
}

func (s *FileStore) List(ctx context.Context, threadID string, limit int) ([]models.Checkpoint, error) {
	seqs, err := s.listSeqs(threadID)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.IntSlice(intsOf(seqs))))
	if limit > 0 && len(seqs) > limit {
		seqs = seqs[:limit]
	}
	result := make([]models.Checkpoint, 0, len(seqs))
	for _, seq := range seqs {
		cp, err := s.Get(ctx, threadID, seq)
		if err != nil {
			continue
		}
		cp.Snapshot = nil
		result = append(result, *cp)
	}
	return result, nil
}

func (s *FileStore) Prune(ctx context.Context, threadID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	seqs, err := s.listSeqs(threadID)
	if err != nil {
		return 0, err
	}
	if len(seqs) <= keep {
		return 0, nil
	}
	toRemove := seqs[:len(seqs)-keep]
	removed := 0
	for _, seq := range toRemove {
		if err := os.Remove(s.path(threadID, seq)); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *FileStore) listSeqs(threadID string) ([]int64, error) {
	entries, err := os.ReadDir(s.threadDir(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: list dir: %w", err)
	}
	var seqs []int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var seq int64
		name := e.Name()
		if len(name) < 20 {
			continue
		}
		if _, err := fmt.Sscanf(name, "%020d.json", &seq); err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

func intsOf(seqs []int64) []int {
	out := make([]int, len(seqs))
	for i, s := range seqs {
		out[i] = int(s)
	}
	return out
}

func sanitize(id string) string {
	replacer := func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}
	out := make([]rune, 0, len(id))
	for _, r := range id {
		out = append(out, replacer(r))
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}
