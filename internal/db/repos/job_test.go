package repos

import (
	"time"

	"github.com/diffuselab/sdqueue/internal/db/models"
)

func (s *RepositoryTestSuite) TestCreateAndGetJob() {
	job := s.createTestJob()

	got, err := s.jobs.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(job.ID, got.ID)
	s.Equal("client-1", got.ClientID)
	s.Equal(models.JobStatusCreated, got.Status)
	s.Equal(job.Request.Prompt, got.Request.Prompt)
}

func (s *RepositoryTestSuite) TestCreateJobValidation() {
	err := s.jobs.Create(s.ctx, &models.Job{ClientID: "client-1"})
	s.Error(err)

	err = s.jobs.Create(s.ctx, &models.Job{ID: "no-client"})
	s.Error(err)
}

func (s *RepositoryTestSuite) TestGetJobNotFound() {
	_, err := s.jobs.GetByID(s.ctx, "missing")
	s.Error(err)
	s.Contains(err.Error(), "job not found")
}

func (s *RepositoryTestSuite) TestSetExecutionID() {
	job := s.createTestJob()

	s.Require().NoError(s.jobs.SetExecutionID(s.ctx, job.ID, "exec-1"))

	got, err := s.jobs.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal("exec-1", got.ExecutionID)
}

func (s *RepositoryTestSuite) TestStartTransitionsCreatedJob() {
	job := s.createTestJob()

	started, err := s.jobs.Start(s.ctx, job.ID)
	s.Require().NoError(err)
	s.True(started)

	got, err := s.jobs.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusRunning, got.Status)

	// a second start finds the job no longer in Created
	started, err = s.jobs.Start(s.ctx, job.ID)
	s.Require().NoError(err)
	s.False(started)
}

func (s *RepositoryTestSuite) TestStartDroppedAfterCancel() {
	job := s.createTestJob()

	applied, err := s.jobs.Finish(s.ctx, job.ID, models.JobStatusCancelled, "Cancelled by user", nil)
	s.Require().NoError(err)
	s.True(applied)

	started, err := s.jobs.Start(s.ctx, job.ID)
	s.Require().NoError(err)
	s.False(started)
}

func (s *RepositoryTestSuite) TestFinishRequiresTerminalStatus() {
	job := s.createTestJob()

	_, err := s.jobs.Finish(s.ctx, job.ID, models.JobStatusRunning, "", nil)
	s.Error(err)
}

func (s *RepositoryTestSuite) TestFirstTerminalWriteWins() {
	job := s.createTestJob()

	applied, err := s.jobs.Finish(s.ctx, job.ID, models.JobStatusCancelled, "Cancelled by user", nil)
	s.Require().NoError(err)
	s.True(applied)

	// a late completion must not overwrite the recorded cancellation
	applied, err = s.jobs.Finish(s.ctx, job.ID, models.JobStatusCompleted, "", models.FileRefs{"00001.png"})
	s.Require().NoError(err)
	s.False(applied)

	got, err := s.jobs.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusCancelled, got.Status)
	s.Equal("Cancelled by user", got.Error)
	s.Empty(got.FileRefs)
}

func (s *RepositoryTestSuite) TestFinishRecordsFileRefs() {
	job := s.createTestJob()

	applied, err := s.jobs.Finish(s.ctx, job.ID, models.JobStatusCompleted, "", models.FileRefs{"00001.png", "00002.png"})
	s.Require().NoError(err)
	s.True(applied)

	got, err := s.jobs.GetByID(s.ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusCompleted, got.Status)
	s.Equal(models.FileRefs{"00001.png", "00002.png"}, got.FileRefs)
}

func (s *RepositoryTestSuite) TestHasDuplicateMatchesActiveJob() {
	job := s.createTestJob()

	dup, err := s.jobs.HasDuplicate(s.ctx, job.ClientID, job.Request, time.Hour)
	s.Require().NoError(err)
	s.True(dup)
}

func (s *RepositoryTestSuite) TestHasDuplicateIgnoresOtherClients() {
	job := s.createTestJob()

	dup, err := s.jobs.HasDuplicate(s.ctx, "client-2", job.Request, time.Hour)
	s.Require().NoError(err)
	s.False(dup)
}

func (s *RepositoryTestSuite) TestHasDuplicateIgnoresDifferentParameters() {
	job := s.createTestJob()

	changed := job.Request
	changed.Seed = 9999
	dup, err := s.jobs.HasDuplicate(s.ctx, job.ClientID, changed, time.Hour)
	s.Require().NoError(err)
	s.False(dup)

	changed = job.Request
	changed.Prompt = "a blue fox in the snow"
	dup, err = s.jobs.HasDuplicate(s.ctx, job.ClientID, changed, time.Hour)
	s.Require().NoError(err)
	s.False(dup)
}

func (s *RepositoryTestSuite) TestHasDuplicateIgnoresTerminalJobs() {
	job := s.createTestJob()

	_, err := s.jobs.Finish(s.ctx, job.ID, models.JobStatusFailed, "boom", nil)
	s.Require().NoError(err)

	dup, err := s.jobs.HasDuplicate(s.ctx, job.ClientID, job.Request, time.Hour)
	s.Require().NoError(err)
	s.False(dup)
}

func (s *RepositoryTestSuite) TestHasDuplicateDistinguishesInitImage() {
	job := s.createTestJob(func(j *models.Job) {
		j.Request.InitImageName = "seed.png"
	})

	same := job.Request
	dup, err := s.jobs.HasDuplicate(s.ctx, job.ClientID, same, time.Hour)
	s.Require().NoError(err)
	s.True(dup)

	other := job.Request
	other.InitImageName = "other.png"
	dup, err = s.jobs.HasDuplicate(s.ctx, job.ClientID, other, time.Hour)
	s.Require().NoError(err)
	s.False(dup)
}

func (s *RepositoryTestSuite) TestCountActive() {
	s.createTestJob()
	s.createTestJob(func(j *models.Job) { j.Request.Seed = 2 })
	s.createTestJob(func(j *models.Job) {
		j.Request.Seed = 3
		j.Status = models.JobStatusCompleted
	})
	s.createTestJob(func(j *models.Job) { j.ClientID = "client-2" })

	count, err := s.jobs.CountActive(s.ctx, "client-1", time.Hour)
	s.Require().NoError(err)
	s.Equal(int64(2), count)
}

func (s *RepositoryTestSuite) TestListForClientStatusBounds() {
	s.createTestJob(func(j *models.Job) { j.Status = models.JobStatusCancelled })
	s.createTestJob(func(j *models.Job) {
		j.Request.Seed = 2
		j.Status = models.JobStatusRunning
	})
	s.createTestJob(func(j *models.Job) {
		j.Request.Seed = 3
		j.Status = models.JobStatusCompleted
	})

	all, err := s.jobs.ListForClient(s.ctx, "client-1", QueryOptions{Window: time.Hour})
	s.Require().NoError(err)
	s.Len(all, 3)

	// exclusive bounds: (-1, 100) selects only the running job
	above := models.JobStatus(-1)
	below := models.JobStatusCompleted
	active, err := s.jobs.ListForClient(s.ctx, "client-1", QueryOptions{
		StatusAbove: &above,
		StatusBelow: &below,
		Window:      time.Hour,
	})
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(models.JobStatusRunning, active[0].Status)
}

func (s *RepositoryTestSuite) TestListForClientIsScopedToClient() {
	s.createTestJob()
	s.createTestJob(func(j *models.Job) { j.ClientID = "client-2" })

	jobs, err := s.jobs.ListForClient(s.ctx, "client-2", QueryOptions{Window: time.Hour})
	s.Require().NoError(err)
	s.Require().Len(jobs, 1)
	s.Equal("client-2", jobs[0].ClientID)
}

func (s *RepositoryTestSuite) TestListForClientHonorsWindow() {
	job := s.createTestJob()

	// age the row past the window
	err := s.db.Model(&models.Job{}).Where("id = ?", job.ID).
		Update(models.JobCreatedAtField, time.Now().Add(-2*time.Hour)).Error
	s.Require().NoError(err)

	jobs, err := s.jobs.ListForClient(s.ctx, "client-1", QueryOptions{Window: time.Hour})
	s.Require().NoError(err)
	s.Empty(jobs)

	dup, err := s.jobs.HasDuplicate(s.ctx, "client-1", job.Request, time.Hour)
	s.Require().NoError(err)
	s.False(dup)
}
