package services

import "errors"

// Caller-facing error taxonomy. Synchronous operations surface these
// directly; execution-pipeline failures are recorded on the job instead.
var (
	// ErrDuplicateJob is returned when a semantically-equivalent job is
	// already pending or active for the client
	ErrDuplicateJob = errors.New("duplicated job")
	// ErrQuotaExceeded is returned when the client reached its limit of
	// non-terminal jobs
	ErrQuotaExceeded = errors.New("client job quota exceeded")
	// ErrNotFound is returned when the referenced job does not exist
	ErrNotFound = errors.New("job not found")
	// ErrForbidden is returned when the job belongs to a different client
	ErrForbidden = errors.New("job belongs to a different client")
	// ErrValidation is returned for malformed generation requests
	ErrValidation = errors.New("invalid request")
)
