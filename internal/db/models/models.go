// Package models defines the persisted entities of the service.
package models

// Database field names used in raw query fragments
const (
	// JobCreatedAtField is the database field name for the job creation timestamp
	JobCreatedAtField = "created_at"
	// JobStatusField is the database field name for the job status
	JobStatusField = "status"
)
