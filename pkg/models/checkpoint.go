package models

import "time"

// Checkpoint is a crash-safe, versioned snapshot of a thread's conversation
// state, keyed by thread_id and a monotonically increasing sequence number
// (the "version" a caller restores by, mirroring the teacher's branch-point
// versioning idiom applied to whole-state snapshots instead of message
// sub-ranges).
type Checkpoint struct {
	ThreadID  string    `json:"thread_id"`
	Seq       int64     `json:"seq"`
	NodeName  string    `json:"node_name,omitempty"`
	Snapshot  []byte    `json:"snapshot"`
	CreatedAt time.Time `json:"created_at"`
}
