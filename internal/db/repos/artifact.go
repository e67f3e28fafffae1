package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diffuselab/sdqueue/internal/db/models"
)

// ArtifactRepository provides access to job artifact storage
type ArtifactRepository struct {
	db *gorm.DB
}

// NewArtifactRepository creates a new artifact repository instance
func NewArtifactRepository(db *gorm.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// Put stores an artifact. Re-attaching the same (job, name) pair replaces
// the stored bytes, so retried finalizations are idempotent.
func (r *ArtifactRepository) Put(ctx context.Context, artifact *models.Artifact) error {
	if artifact.JobID == "" || artifact.Name == "" {
		return fmt.Errorf("artifact requires job id and name")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "mime_type", "data"}),
	}).Create(artifact).Error
	if err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	return nil
}

// Get retrieves an artifact by job id and name
func (r *ArtifactRepository) Get(ctx context.Context, jobID, name string) (*models.Artifact, error) {
	var artifact models.Artifact
	err := r.db.WithContext(ctx).
		Where(&models.Artifact{JobID: jobID, Name: name}).
		First(&artifact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("artifact not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return &artifact, nil
}

// ListByJob returns the artifacts of a job with the given kind, in
// insertion order.
func (r *ArtifactRepository) ListByJob(ctx context.Context, jobID string, kind models.ArtifactKind) ([]models.Artifact, error) {
	var artifacts []models.Artifact
	err := r.db.WithContext(ctx).
		Where(&models.Artifact{JobID: jobID, Kind: kind}).
		Order("id ASC").
		Find(&artifacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	return artifacts, nil
}
