package repos

import (
	"github.com/diffuselab/sdqueue/internal/db/models"
)

func (s *RepositoryTestSuite) TestPutAndGetArtifact() {
	job := s.createTestJob()

	err := s.artifacts.Put(s.ctx, &models.Artifact{
		JobID:    job.ID,
		Name:     "00001.png",
		Kind:     models.ArtifactKindOutput,
		MimeType: "image/png",
		Data:     []byte("png-bytes"),
	})
	s.Require().NoError(err)

	got, err := s.artifacts.Get(s.ctx, job.ID, "00001.png")
	s.Require().NoError(err)
	s.Equal(models.ArtifactKindOutput, got.Kind)
	s.Equal("image/png", got.MimeType)
	s.Equal([]byte("png-bytes"), got.Data)
}

func (s *RepositoryTestSuite) TestPutArtifactValidation() {
	s.Error(s.artifacts.Put(s.ctx, &models.Artifact{Name: "00001.png"}))
	s.Error(s.artifacts.Put(s.ctx, &models.Artifact{JobID: "somejob"}))
}

func (s *RepositoryTestSuite) TestPutArtifactIsIdempotent() {
	job := s.createTestJob()

	first := &models.Artifact{
		JobID:    job.ID,
		Name:     "00001.png",
		Kind:     models.ArtifactKindOutput,
		MimeType: "image/png",
		Data:     []byte("v1"),
	}
	s.Require().NoError(s.artifacts.Put(s.ctx, first))

	second := &models.Artifact{
		JobID:    job.ID,
		Name:     "00001.png",
		Kind:     models.ArtifactKindOutput,
		MimeType: "image/png",
		Data:     []byte("v2"),
	}
	s.Require().NoError(s.artifacts.Put(s.ctx, second))

	got, err := s.artifacts.Get(s.ctx, job.ID, "00001.png")
	s.Require().NoError(err)
	s.Equal([]byte("v2"), got.Data)

	list, err := s.artifacts.ListByJob(s.ctx, job.ID, models.ArtifactKindOutput)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *RepositoryTestSuite) TestGetArtifactNotFound() {
	_, err := s.artifacts.Get(s.ctx, "missing", "00001.png")
	s.Error(err)
	s.Contains(err.Error(), "artifact not found")
}

func (s *RepositoryTestSuite) TestListByJobFiltersKind() {
	job := s.createTestJob()

	s.Require().NoError(s.artifacts.Put(s.ctx, &models.Artifact{
		JobID: job.ID, Name: "seed.png", Kind: models.ArtifactKindInput,
		MimeType: "image/png", Data: []byte("in"),
	}))
	s.Require().NoError(s.artifacts.Put(s.ctx, &models.Artifact{
		JobID: job.ID, Name: "00001.png", Kind: models.ArtifactKindOutput,
		MimeType: "image/png", Data: []byte("a"),
	}))
	s.Require().NoError(s.artifacts.Put(s.ctx, &models.Artifact{
		JobID: job.ID, Name: "00002.png", Kind: models.ArtifactKindOutput,
		MimeType: "image/png", Data: []byte("b"),
	}))

	outputs, err := s.artifacts.ListByJob(s.ctx, job.ID, models.ArtifactKindOutput)
	s.Require().NoError(err)
	s.Require().Len(outputs, 2)
	s.Equal("00001.png", outputs[0].Name)
	s.Equal("00002.png", outputs[1].Name)

	inputs, err := s.artifacts.ListByJob(s.ctx, job.ID, models.ArtifactKindInput)
	s.Require().NoError(err)
	s.Require().Len(inputs, 1)
	s.Equal("seed.png", inputs[0].Name)
}
