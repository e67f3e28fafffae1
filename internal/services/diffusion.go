// Package services implements the job orchestration engine.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diffuselab/sdqueue/config"
	"github.com/diffuselab/sdqueue/internal/db/models"
	"github.com/diffuselab/sdqueue/internal/db/repos"
	"github.com/diffuselab/sdqueue/internal/events"
	"github.com/diffuselab/sdqueue/internal/logger"
	"github.com/diffuselab/sdqueue/internal/queue"
	"github.com/diffuselab/sdqueue/internal/shell"
)

// DefaultStrength is the init-image noising strength when none is given
const DefaultStrength = 80

// Runner abstracts the shell session runner so tests can substitute the
// external generation process.
type Runner interface {
	Execute(ctx context.Context, commands []string, workingDir string, timeout time.Duration, onStdout, onStderr shell.LineCallback) (*shell.Result, error)
}

// EnqueueResult identifies a freshly scheduled job.
type EnqueueResult struct {
	JobID       string `json:"job_id"`
	ExecutionID string `json:"execution_id"`
}

// Diffusion orchestrates the lifecycle of generation jobs: request
// deduplication, quota enforcement, document management, background
// execution and result attachment.
type Diffusion struct {
	jobs      *repos.JobRepository
	artifacts *repos.ArtifactRepository
	queue     *queue.Queue
	runner    Runner
	cfg       *config.Config
}

// NewDiffusionService creates a new diffusion orchestration service.
func NewDiffusionService(jobs *repos.JobRepository, artifacts *repos.ArtifactRepository, q *queue.Queue, runner Runner, cfg *config.Config) *Diffusion {
	return &Diffusion{
		jobs:      jobs,
		artifacts: artifacts,
		queue:     q,
		runner:    runner,
		cfg:       cfg,
	}
}

// Enqueue validates the request, rejects duplicates and over-quota clients,
// creates the job document and schedules its execution. seedImage may be
// nil for text-to-image requests.
func (s *Diffusion) Enqueue(ctx context.Context, clientID string, req models.GenerationRequest, seedImage []byte) (*EnqueueResult, error) {
	req = normalize(req)
	if err := validate(req, seedImage); err != nil {
		return nil, err
	}

	dup, err := s.jobs.HasDuplicate(ctx, clientID, req, s.cfg.DedupWindow)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	if dup {
		return nil, ErrDuplicateJob
	}

	active, err := s.jobs.CountActive(ctx, clientID, s.cfg.QueryWindow)
	if err != nil {
		return nil, fmt.Errorf("quota check failed: %w", err)
	}
	if active >= int64(s.cfg.ClientQueueLimit) {
		return nil, ErrQuotaExceeded
	}

	jobID := newJobID()

	if seedImage != nil {
		if err := s.storeSeedImage(ctx, jobID, req.InitImageName, seedImage); err != nil {
			return nil, err
		}
	}

	job := &models.Job{
		ID:       jobID,
		ClientID: clientID,
		Request:  req,
		Status:   models.JobStatusCreated,
	}
	logger.InfoWithFields("Storing job", map[string]interface{}{
		"job_id":    jobID,
		"client_id": clientID,
		"prompt":    req.Prompt,
	})
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	executionID, err := s.queue.Submit(func(execCtx context.Context, execID string) {
		s.process(execCtx, execID, jobID)
	})
	if err != nil {
		if _, ferr := s.jobs.Finish(ctx, jobID, models.JobStatusFailed, err.Error(), nil); ferr != nil {
			logger.Errorf("Failed to mark unschedulable job %s: %v", jobID, ferr)
		}
		return nil, fmt.Errorf("failed to schedule job: %w", err)
	}

	if err := s.jobs.SetExecutionID(ctx, jobID, executionID); err != nil {
		return nil, fmt.Errorf("failed to record execution id: %w", err)
	}

	logger.Infof("Enqueued job %s as execution %s for client %s", jobID, executionID, clientID)
	events.Publish(events.Event{
		Type:     events.EventJobEnqueued,
		JobID:    jobID,
		ClientID: clientID,
		Status:   models.JobStatusCreated,
	})
	return &EnqueueResult{JobID: jobID, ExecutionID: executionID}, nil
}

// GetJob loads a job, enforcing ownership.
func (s *Diffusion) GetJob(ctx context.Context, clientID, jobID string) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if job.ClientID != clientID {
		return nil, ErrForbidden
	}
	return job, nil
}

// GetJobArtifacts returns the output artifacts of a job the client owns.
func (s *Diffusion) GetJobArtifacts(ctx context.Context, clientID, jobID string) ([]models.Artifact, error) {
	if _, err := s.GetJob(ctx, clientID, jobID); err != nil {
		return nil, err
	}
	return s.artifacts.ListByJob(ctx, jobID, models.ArtifactKindOutput)
}

// GetArtifact returns the indexed result image of a completed job.
func (s *Diffusion) GetArtifact(ctx context.Context, clientID, jobID string, index int) (*models.Artifact, error) {
	job, err := s.GetJob(ctx, clientID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusCompleted {
		return nil, fmt.Errorf("%w: job is not finished", ErrValidation)
	}
	if index < 0 || index >= len(job.FileRefs) {
		return nil, fmt.Errorf("%w: image index out of range", ErrValidation)
	}
	return s.artifacts.Get(ctx, jobID, job.FileRefs[index])
}

// Query returns the client's jobs inside the lookback window, optionally
// bounded by exclusive status bounds.
func (s *Diffusion) Query(ctx context.Context, clientID string, statusAbove, statusBelow *models.JobStatus, window time.Duration) ([]models.Job, error) {
	if window <= 0 {
		window = s.cfg.QueryWindow
	}
	return s.jobs.ListForClient(ctx, clientID, repos.QueryOptions{
		StatusAbove: statusAbove,
		StatusBelow: statusBelow,
		Window:      window,
	})
}

// Cancel stops a queued or running job. It reports true only when a
// cancellation actually took effect: the execution was prevented or
// signalled and the job was not already terminal. The status write is
// guarded, so a finalization that was durably recorded first is never
// overwritten.
func (s *Diffusion) Cancel(ctx context.Context, clientID, jobID string) (bool, error) {
	job, err := s.GetJob(ctx, clientID, jobID)
	if err != nil {
		return false, err
	}

	if job.ExecutionID == "" {
		return false, nil
	}

	cancelled := s.queue.Cancel(job.ExecutionID)
	if !cancelled || job.Status.IsTerminal() {
		return false, nil
	}

	applied, err := s.jobs.Finish(ctx, jobID, models.JobStatusCancelled, "Cancelled by user", nil)
	if err != nil {
		return false, fmt.Errorf("failed to record cancellation: %w", err)
	}
	if applied {
		logger.Infof("Cancelled job %s (execution %s)", jobID, job.ExecutionID)
		events.Publish(events.Event{
			Type:     events.EventJobFinished,
			JobID:    jobID,
			ClientID: clientID,
			Status:   models.JobStatusCancelled,
			Error:    "Cancelled by user",
		})
	}
	return applied, nil
}

func (s *Diffusion) storeSeedImage(ctx context.Context, jobID, name string, data []byte) error {
	err := s.artifacts.Put(ctx, &models.Artifact{
		JobID:    jobID,
		Name:     name,
		Kind:     models.ArtifactKindInput,
		MimeType: mimeTypeOf(name),
		Data:     data,
	})
	if err != nil {
		return err
	}

	// The generation script reads the seed image from disk
	path := s.initImagePath(jobID, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create input directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write seed image: %w", err)
	}
	return nil
}

func (s *Diffusion) initImagePath(jobID, name string) string {
	return filepath.Join(s.cfg.OutputDir, jobID, "input", name)
}

func (s *Diffusion) outputDir(jobID string) string {
	return filepath.Join(s.cfg.OutputDir, jobID)
}

func newJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func normalize(req models.GenerationRequest) models.GenerationRequest {
	if req.Version == "" {
		req.Version = "1-4"
	}
	if req.Samples == 0 {
		req.Samples = 1
	}
	if req.Steps == 0 {
		req.Steps = 50
	}
	if req.WithInitImage() && req.Strength == 0 {
		req.Strength = DefaultStrength
	}
	return req
}

func validate(req models.GenerationRequest, seedImage []byte) error {
	if len(req.Prompt) < 3 {
		return fmt.Errorf("%w: prompt must be at least 3 characters", ErrValidation)
	}
	if len(req.Version) != 3 || req.Version[1] != '-' {
		return fmt.Errorf("%w: version must be 1-1, 1-2, 1-3 or 1-4", ErrValidation)
	}
	if req.Samples < 1 || req.Samples > 9 {
		return fmt.Errorf("%w: samples must be 1 to 9", ErrValidation)
	}
	if req.Steps < 10 || req.Steps > 100 {
		return fmt.Errorf("%w: steps must be 10 to 100", ErrValidation)
	}
	if req.Width < 0 || req.Height < 0 {
		return fmt.Errorf("%w: size must be positive", ErrValidation)
	}
	if (req.Width != 0 && req.Width%64 != 0) || (req.Height != 0 && req.Height%64 != 0) {
		return fmt.Errorf("%w: size must be a multiple of 64", ErrValidation)
	}
	if req.WithInitImage() {
		if seedImage == nil {
			return fmt.Errorf("%w: missing seed image data", ErrValidation)
		}
		if req.Strength < 1 || req.Strength > 100 {
			return fmt.Errorf("%w: strength must be 1 to 100", ErrValidation)
		}
	} else if seedImage != nil {
		return fmt.Errorf("%w: seed image requires a name", ErrValidation)
	}
	return nil
}
