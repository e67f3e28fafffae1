package models

import "time"

// ArtifactKind distinguishes uploaded seed images from generated results
type ArtifactKind string

const (
	// ArtifactKindInput marks a client-supplied seed image
	ArtifactKindInput ArtifactKind = "input"
	// ArtifactKindOutput marks a generated result image
	ArtifactKindOutput ArtifactKind = "output"
)

// Artifact is a binary file associated with a job, addressed by job id and
// name. The (job_id, name) pair is unique so re-attaching the same name is
// an idempotent upsert.
type Artifact struct {
	ID        uint         `json:"-" gorm:"primarykey"`
	JobID     string       `json:"job_id" gorm:"not null;uniqueIndex:idx_artifacts_job_name"`
	Name      string       `json:"name" gorm:"not null;uniqueIndex:idx_artifacts_job_name"`
	Kind      ArtifactKind `json:"kind" gorm:"not null;index"`
	MimeType  string       `json:"mime_type"`
	Data      []byte       `json:"data,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
