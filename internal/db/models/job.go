package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus represents the current state of a generation job. The numeric
// values are part of the query contract: non-terminal states live in
// [0, 100), terminal failure states are negative and success is 100.
type JobStatus int

// Job status constants
const (
	// JobStatusCancelled indicates the job was cancelled by the client
	JobStatusCancelled JobStatus = -2
	// JobStatusFailed indicates the generation process failed or timed out
	JobStatusFailed JobStatus = -1
	// JobStatusCreated indicates the job is queued and waiting for a worker
	JobStatusCreated JobStatus = 0
	// JobStatusRunning indicates a worker is executing the generation process
	JobStatusRunning JobStatus = 1
	// JobStatusCompleted indicates the job finished with attached results
	JobStatusCompleted JobStatus = 100
)

// GenerationRequest holds the generation parameters of a job. Immutable
// once the job is created.
type GenerationRequest struct {
	Prompt  string `json:"prompt" gorm:"not null"`
	Version string `json:"version" gorm:"size:8"`
	Samples int    `json:"samples"`
	Steps   int    `json:"steps"`
	Seed    int    `json:"seed"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`

	// InitImageName is set for image-to-image requests and names the seed
	// image artifact stored under the job
	InitImageName string `json:"init_image_name,omitempty"`
	// Strength controls noising of the init image (1-100)
	Strength int `json:"strength,omitempty"`
}

// WithInitImage reports whether the request runs in image-to-image mode.
func (r GenerationRequest) WithInitImage() bool {
	return r.InitImageName != ""
}

// FileRefs is an ordered list of result artifact references, stored as a
// JSON text column so it round-trips through both postgres and sqlite.
type FileRefs []string

// Value implements the driver.Valuer interface
func (f FileRefs) Value() (driver.Value, error) {
	if len(f) == 0 {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan implements the sql.Scanner interface
func (f *FileRefs) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("unsupported type for FileRefs: %T", value)
	}
}

// Job represents one requested generation and its lifecycle.
type Job struct {
	ID          string            `json:"id" gorm:"primaryKey;size:32"`
	ClientID    string            `json:"client_id" gorm:"not null;index"`
	Request     GenerationRequest `json:"request" gorm:"embedded"`
	ExecutionID string            `json:"execution_id,omitempty" gorm:"index"`
	Status      JobStatus         `json:"status" gorm:"index"`
	Error       string            `json:"error,omitempty" gorm:"type:text"`
	FileRefs    FileRefs          `json:"file_refs,omitempty" gorm:"type:text"`
	CreatedAt   time.Time         `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time         `json:"modified_at"`
}

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

func (s JobStatus) String() string {
	switch s {
	case JobStatusCancelled:
		return "cancelled"
	case JobStatusFailed:
		return "failed"
	case JobStatusCreated:
		return "created"
	case JobStatusRunning:
		return "running"
	case JobStatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseJobStatus converts a string representation of a job status to JobStatus type
func ParseJobStatus(str string) (JobStatus, error) {
	for _, status := range []JobStatus{
		JobStatusCancelled,
		JobStatusFailed,
		JobStatusCreated,
		JobStatusRunning,
		JobStatusCompleted,
	} {
		if status.String() == str {
			return status, nil
		}
	}
	return JobStatusCreated, fmt.Errorf("invalid job status: %s", str)
}

// MarshalJSON implements the json.Marshaler interface for JobStatus
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}
