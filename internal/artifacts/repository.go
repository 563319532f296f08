package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/weaver-ai/weaver/pkg/models"
)

// Filter narrows ListArtifacts by thread, kind, or creation window.
type Filter struct {
	ThreadID      string
	Kind          models.ArtifactKind
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
}

// Repository tracks artifact metadata and routes payload storage between
// inline content (small artifacts) and an offload Store (large ones).
type Repository struct {
	mu     sync.RWMutex
	store  Store
	byID   map[string]*models.Artifact
	logger *slog.Logger
}

// NewRepository builds a Repository backed by store for anything over
// InlineThreshold bytes.
func NewRepository(store Store, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{store: store, byID: make(map[string]*models.Artifact), logger: logger}
}

// Put stores data as an artifact, generating an ID if art.ID is empty and
// choosing inline vs. offloaded storage by size.
func (r *Repository) Put(ctx context.Context, art *models.Artifact, data []byte) (*models.Artifact, error) {
	if art.ID == "" {
		art.ID = uuid.NewString()
	}
	if art.CreatedAt.IsZero() {
		art.CreatedAt = time.Now()
	}
	art.SizeBytes = int64(len(data))

	if art.SizeBytes <= InlineThreshold {
		art.Content = string(data)
		art.StorageURI = ""
	} else {
		opts := PutOptions{Metadata: map[string]string{"kind": string(art.Kind)}}
		ref, err := r.store.Put(ctx, art.ID, bytes.NewReader(data), opts)
		if err != nil {
			return nil, fmt.Errorf("artifacts: put: %w", err)
		}
		art.StorageURI = ref
		art.Content = ""
	}

	clone := *art
	r.mu.Lock()
	r.byID[art.ID] = &clone
	r.mu.Unlock()

	r.logger.Info("artifact stored", "id", art.ID, "kind", art.Kind, "size", art.SizeBytes, "offloaded", art.StorageURI != "")
	return art, nil
}

// Get returns an artifact's metadata and its content, fetching from the
// offload store when the payload wasn't kept inline.
func (r *Repository) Get(ctx context.Context, artifactID string) (*models.Artifact, io.ReadCloser, error) {
	r.mu.RLock()
	art, ok := r.byID[artifactID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("artifacts: not found: %s", artifactID)
	}

	if art.StorageURI == "" {
		return art, io.NopCloser(bytes.NewReader([]byte(art.Content))), nil
	}
	rc, err := r.store.Get(ctx, artifactID)
	if err != nil {
		return nil, nil, fmt.Errorf("artifacts: get: %w", err)
	}
	return art, rc, nil
}

// List returns artifacts matching filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) []*models.Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*models.Artifact
	for _, art := range r.byID {
		if filter.ThreadID != "" && art.ThreadID != filter.ThreadID {
			continue
		}
		if filter.Kind != "" && art.Kind != filter.Kind {
			continue
		}
		if !filter.CreatedAfter.IsZero() && art.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		if !filter.CreatedBefore.IsZero() && art.CreatedAt.After(filter.CreatedBefore) {
			continue
		}
		clone := *art
		results = append(results, &clone)
	}

	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].CreatedAt.After(results[j-1].CreatedAt); j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results
}

// Delete removes an artifact's metadata and, if offloaded, its stored payload.
func (r *Repository) Delete(ctx context.Context, artifactID string) error {
	r.mu.Lock()
	art, ok := r.byID[artifactID]
	if ok {
		delete(r.byID, artifactID)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if art.StorageURI != "" {
		if err := r.store.Delete(ctx, artifactID); err != nil {
			r.logger.Warn("failed to delete offloaded artifact", "id", artifactID, "error", err)
		}
	}
	return nil
}
