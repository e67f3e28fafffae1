package types

import "github.com/diffuselab/sdqueue/internal/db/models"

// Slug is a type for the slug field in the response
// It is mainly used for the client to understand the type of the response
type Slug string

const (
	SuccessSlug      Slug = "success"
	InvalidInputSlug Slug = "invalid-input"
	NotFoundSlug     Slug = "not-found"
	ForbiddenSlug    Slug = "forbidden"
	ServerErrorSlug  Slug = "server-error"
)

// SlugResponse is the envelope type for the API
type SlugResponse struct {
	Slug  Slug        `json:"slug"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// ErrInvalidInput returns a SlugResponse with the InvalidInputSlug and the error message
func ErrInvalidInput(msg string) SlugResponse {
	return SlugResponse{Slug: InvalidInputSlug, Error: msg}
}

// ErrNotFound returns a SlugResponse with the NotFoundSlug and the error message
func ErrNotFound(msg string) SlugResponse {
	return SlugResponse{Slug: NotFoundSlug, Error: msg}
}

// ErrForbidden returns a SlugResponse with the ForbiddenSlug and the error message
func ErrForbidden(msg string) SlugResponse {
	return SlugResponse{Slug: ForbiddenSlug, Error: msg}
}

// ErrServer returns a SlugResponse with the ServerErrorSlug and the error message
func ErrServer(msg string) SlugResponse {
	return SlugResponse{Slug: ServerErrorSlug, Error: msg}
}

// Success returns a SlugResponse with the SuccessSlug and the data
func Success(data interface{}) SlugResponse {
	return SlugResponse{Slug: SuccessSlug, Data: data}
}

// JobResponse is a job document, optionally with its output artifacts
// inlined.
type JobResponse struct {
	Job   models.Job        `json:"job"`
	Files []models.Artifact `json:"files,omitempty"`
}

// ListJobsResponse is the envelope for client job queries.
type ListJobsResponse struct {
	Slug  Slug         `json:"slug"`
	Jobs  []models.Job `json:"jobs"`
	Total int          `json:"total"`
}
