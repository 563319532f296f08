package models

import "time"

// ArtifactKind categorizes stored artifact payloads.
type ArtifactKind string

const (
	ArtifactKindText   ArtifactKind = "text"
	ArtifactKindReport ArtifactKind = "report"
	ArtifactKindBlob   ArtifactKind = "blob"
)

// Artifact is a named output produced during a turn: a tool result worth
// keeping, a synthesized research report, or a large blob offloaded to
// object storage.
type Artifact struct {
	ID       string       `json:"id"`
	ThreadID string       `json:"thread_id"`
	Kind     ArtifactKind `json:"kind"`
	Name     string       `json:"name"`

	// Content holds the payload inline when small enough; for ArtifactKindBlob
	// it is empty and StorageURI points at the offloaded object instead.
	Content    string `json:"content,omitempty"`
	StorageURI string `json:"storage_uri,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`

	ProducedBy string    `json:"produced_by,omitempty"` // node or tool name
	CreatedAt  time.Time `json:"created_at"`
}
