// Package checkpoint persists versioned snapshots of conversation state,
// keyed by (thread_id, seq), so a suspended run (an interrupt, a crash, a
// restart) can resume from the last boundary the graph runtime wrote.
package checkpoint

import (
	"context"
	"errors"

	"github.com/weaver-ai/weaver/pkg/models"
)

// ErrNotFound is returned when a checkpoint lookup has no match.
var ErrNotFound = errors.New("checkpoint: not found")

// Store persists and retrieves checkpoints. Implementations must be safe
// for concurrent use by multiple threads' runs.
type Store interface {
	// Save writes a checkpoint. Checkpoints are append-only: Save never
	// overwrites an existing (ThreadID, Seq) pair.
	Save(ctx context.Context, cp *models.Checkpoint) error

	// Latest returns the highest-Seq checkpoint for a thread.
	Latest(ctx context.Context, threadID string) (*models.Checkpoint, error)

	// Get returns a specific version of a thread's checkpoint.
	Get(ctx context.Context, threadID string, seq int64) (*models.Checkpoint, error)

	// List returns checkpoint metadata (no Snapshot payload) for a thread,
	// newest first, for a "restore to version" UI.
	List(ctx context.Context, threadID string, limit int) ([]models.Checkpoint, error)

	// Prune removes all but the newest keep checkpoints per thread.
	Prune(ctx context.Context, threadID string, keep int) (int, error)
}

// NextSeq returns the sequence number to use for a thread's next
// checkpoint, given the current latest checkpoint (nil if none exists).
func NextSeq(latest *models.Checkpoint) int64 {
	if latest == nil {
		return 1
	}
	return latest.Seq + 1
}
