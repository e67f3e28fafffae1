// Package repos provides access to the persisted entities.
package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/diffuselab/sdqueue/internal/db/models"
)

// terminalStatuses are the states that admit no further transitions.
// Guarded writes exclude rows already in one of these.
var terminalStatuses = []models.JobStatus{
	models.JobStatusCompleted,
	models.JobStatusFailed,
	models.JobStatusCancelled,
}

// QueryOptions filters client job queries. Status bounds are exclusive;
// a nil bound is not applied.
type QueryOptions struct {
	StatusAbove *models.JobStatus
	StatusBelow *models.JobStatus
	Window      time.Duration
}

// JobRepository provides access to job-related database operations
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create creates a new job in the database
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if job.ClientID == "" {
		return fmt.Errorf("client id is required")
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).Where(&models.Job{ID: id}).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// SetExecutionID records the queue execution id on a freshly created job.
func (r *JobRepository) SetExecutionID(ctx context.Context, id, executionID string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", id).
		Update("execution_id", executionID).Error
}

// Start transitions a job from Created to Running. It reports false when
// the job is no longer in Created, which happens when a cancellation won
// the race while the execution was still queued.
func (r *JobRepository) Start(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, models.JobStatusCreated).
		Update("status", models.JobStatusRunning)
	if res.Error != nil {
		return false, fmt.Errorf("failed to start job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Finish writes a terminal status, error text and file references in a
// single guarded update. The write is dropped (false, nil) when another
// terminal status was durably recorded first, so the first terminal write
// always wins regardless of wall-clock order.
func (r *JobRepository) Finish(ctx context.Context, id string, status models.JobStatus, errMsg string, refs models.FileRefs) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("finish requires a terminal status, got %s", status)
	}
	updates := map[string]interface{}{
		"status": status,
		"error":  errMsg,
	}
	if len(refs) > 0 {
		updates["file_refs"] = refs
	}
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to finish job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// HasDuplicate reports whether the client already has a non-terminal job
// with the same prompt, version, steps and seed inside the window. When the
// request carries an init image, only jobs with the same image name count.
func (r *JobRepository) HasDuplicate(ctx context.Context, clientID string, req models.GenerationRequest, window time.Duration) (bool, error) {
	qry := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("client_id = ?", clientID).
		Where("prompt = ? AND version = ? AND steps = ? AND seed = ?",
			req.Prompt, req.Version, req.Steps, req.Seed).
		Where("status >= ? AND status < ?", models.JobStatusCreated, models.JobStatusCompleted).
		Where(models.JobCreatedAtField+" > ?", time.Now().Add(-window))
	if req.InitImageName != "" {
		qry = qry.Where("init_image_name = ?", req.InitImageName)
	}

	var count int64
	if err := qry.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check duplicates: %w", err)
	}
	return count > 0, nil
}

// CountActive returns the number of non-terminal jobs the client created
// inside the window.
func (r *JobRepository) CountActive(ctx context.Context, clientID string, window time.Duration) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("client_id = ?", clientID).
		Where("status >= ? AND status < ?", models.JobStatusCreated, models.JobStatusCompleted).
		Where(models.JobCreatedAtField+" > ?", time.Now().Add(-window)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return count, nil
}

// ListForClient returns the client's jobs created inside the window that
// satisfy the optional status bounds, newest first.
func (r *JobRepository) ListForClient(ctx context.Context, clientID string, opts QueryOptions) ([]models.Job, error) {
	qry := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("client_id = ?", clientID).
		Where(models.JobCreatedAtField+" > ?", time.Now().Add(-opts.Window))
	if opts.StatusAbove != nil {
		qry = qry.Where(models.JobStatusField+" > ?", *opts.StatusAbove)
	}
	if opts.StatusBelow != nil {
		qry = qry.Where(models.JobStatusField+" < ?", *opts.StatusBelow)
	}

	var jobs []models.Job
	err := qry.Order(models.JobCreatedAtField + " DESC").Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}
