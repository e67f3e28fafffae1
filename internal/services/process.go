package services

import (
	"context"
	"fmt"
	"math/rand"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/diffuselab/sdqueue/internal/db/models"
	"github.com/diffuselab/sdqueue/internal/events"
	"github.com/diffuselab/sdqueue/internal/logger"
	"github.com/diffuselab/sdqueue/internal/shell"
)

// errNoFiles is recorded on jobs whose process exited cleanly without
// producing any output image.
const errNoFiles = "No files found"

// errTimedOut is recorded on jobs whose process was killed on timeout.
const errTimedOut = "Process timed out"

// finalizeTimeout bounds the terminal status write; it runs on a fresh
// context because the execution context may already be cancelled.
const finalizeTimeout = 30 * time.Second

// process is the worker-side execution pipeline for one scheduled job.
// It never returns an error: every failure is converted into a terminal
// job status with a non-empty error field.
func (s *Diffusion) process(ctx context.Context, executionID, jobID string) {
	started, err := s.jobs.Start(ctx, jobID)
	if err != nil {
		logger.Errorf("Failed to start job %s: %v", jobID, err)
		s.finalize(jobID, "", models.JobStatusFailed, err.Error(), nil)
		return
	}
	if !started {
		// cancelled before a worker picked it up
		logger.Infof("Job %s is no longer startable, dropping execution %s", jobID, executionID)
		return
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		logger.Errorf("Failed to load job %s: %v", jobID, err)
		s.finalize(jobID, "", models.JobStatusFailed, err.Error(), nil)
		return
	}

	logger.InfoWithFields("Starting job", map[string]interface{}{
		"job_id":       jobID,
		"execution_id": executionID,
		"client_id":    job.ClientID,
		"prompt":       job.Request.Prompt,
	})
	events.Publish(events.Event{
		Type:     events.EventJobStarted,
		JobID:    jobID,
		ClientID: job.ClientID,
		Status:   models.JobStatusRunning,
	})

	var errMsg string
	var refs models.FileRefs

	result, err := s.executeScripts(ctx, job)
	switch {
	case err != nil:
		logger.Errorf("Job %s execution error: %v", jobID, err)
		errMsg = err.Error()
	case result.TimedOut():
		logger.Errorf("Job %s timed out", jobID)
		errMsg = errTimedOut
	case result.ExitCode != 0:
		logger.Errorf("Job %s exit code %d: %s", jobID, result.ExitCode, result.Stderr)
		errMsg = strings.TrimSpace(result.Stderr)
		if errMsg == "" {
			errMsg = fmt.Sprintf("Process exited with code %d", result.ExitCode)
		}
	default:
		refs, err = s.harvestOutputs(ctx, job)
		switch {
		case err != nil:
			logger.Errorf("Job %s attach error: %v", jobID, err)
			errMsg = err.Error()
		case len(refs) == 0:
			errMsg = errNoFiles
		default:
			logger.Infof("Attached %d files to job %s", len(refs), jobID)
		}
	}

	status := models.JobStatusCompleted
	if errMsg != "" {
		status = models.JobStatusFailed
	}
	s.finalize(jobID, job.ClientID, status, errMsg, refs)
}

// executeScripts runs the optional pre-processing fix-up, the generation
// process and the optional post-processing fix-up as timeout-bounded shell
// sessions. Fix-up failures are hard failures; the main result is returned
// as-is for the caller to interpret.
func (s *Diffusion) executeScripts(ctx context.Context, job *models.Job) (*shell.Result, error) {
	outputDir := s.outputDir(job.ID)

	if s.cfg.PreProcessCommand != "" && job.Request.WithInitImage() {
		path := s.initImagePath(job.ID, job.Request.InitImageName)
		if err := s.runFixup(ctx, "pre-process", fmt.Sprintf(s.cfg.PreProcessCommand, path)); err != nil {
			return nil, err
		}
	}

	commands := s.buildCommands(job.ID, job.Request, outputDir)
	result, err := s.runner.Execute(ctx, commands, s.cfg.WorkingDir, s.cfg.ExecTimeout,
		func(line string) { logger.Debugf("STDOUT [%s]: %s", job.ID, line) },
		func(line string) { logger.Debugf("STDERR [%s]: %s", job.ID, line) },
	)
	if err != nil {
		return nil, err
	}

	if result.ExitCode == 0 && s.cfg.PostProcessCommand != "" {
		samples := filepath.Join(outputDir, "samples")
		if err := s.runFixup(ctx, "post-process", fmt.Sprintf(s.cfg.PostProcessCommand, samples)); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (s *Diffusion) runFixup(ctx context.Context, name, command string) error {
	result, err := s.runner.Execute(ctx, []string{command}, s.cfg.WorkingDir, s.cfg.FixupTimeout, nil, nil)
	if err != nil {
		return fmt.Errorf("%s step failed: %w", name, err)
	}
	if result.TimedOut() {
		return fmt.Errorf("%s step timed out", name)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%s step exit code %d: %s", name, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// buildCommands assembles the shell session for a job: environment
// activation, the generation script and deactivation. Shell-unsafe
// characters are stripped from the prompt.
func (s *Diffusion) buildCommands(jobID string, req models.GenerationRequest, outputDir string) []string {
	prompt := strings.NewReplacer(`\`, "", `"`, "").Replace(req.Prompt)

	seed := req.Seed
	if seed <= 0 {
		seed = rand.Intn(9999) + 1
	}

	var b strings.Builder
	script := "scripts/txt2img.py"
	if req.WithInitImage() {
		script = "scripts/img2img.py"
	}
	fmt.Fprintf(&b, "python %s --prompt \"%s\" --ckpt sd-v%s.ckpt --skip_grid --n_samples 1 --n_iter %d --ddim_steps %d --seed %d",
		script, prompt, req.Version, req.Samples, req.Steps, seed)
	if req.WithInitImage() {
		fmt.Fprintf(&b, " --init-img \"%s\" --strength %.2f",
			s.initImagePath(jobID, req.InitImageName), float64(req.Strength)/100)
	} else {
		b.WriteString(" --plms")
	}
	if req.Width > 0 {
		fmt.Fprintf(&b, " --W %d", req.Width)
	}
	if req.Height > 0 {
		fmt.Fprintf(&b, " --H %d", req.Height)
	}
	fmt.Fprintf(&b, " --outdir %s", outputDir)

	commands := make([]string, 0, 3)
	if s.cfg.ActivateCommand != "" {
		commands = append(commands, s.cfg.ActivateCommand)
	}
	commands = append(commands, b.String())
	if s.cfg.DeactivateCommand != "" {
		commands = append(commands, s.cfg.DeactivateCommand)
	}
	return commands
}

// harvestOutputs collects the produced images from the job's samples
// directory and attaches them to the job.
func (s *Diffusion) harvestOutputs(ctx context.Context, job *models.Job) (models.FileRefs, error) {
	pattern := filepath.Join(s.outputDir(job.ID), "samples", "*.png")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate output files: %w", err)
	}
	if len(files) == 0 {
		return nil, nil
	}
	sort.Strings(files)

	g, gctx := errgroup.WithContext(ctx)
	refs := make(models.FileRefs, len(files))
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			name := filepath.Base(file)
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read output file %s: %w", name, err)
			}
			if err := s.artifacts.Put(gctx, &models.Artifact{
				JobID:    job.ID,
				Name:     name,
				Kind:     models.ArtifactKindOutput,
				MimeType: mimeTypeOf(name),
				Data:     data,
			}); err != nil {
				return err
			}
			refs[i] = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// finalize writes the terminal status under the transition guard, retrying
// the store write once before giving up.
func (s *Diffusion) finalize(jobID, clientID string, status models.JobStatus, errMsg string, refs models.FileRefs) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	var applied bool
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		applied, err = s.jobs.Finish(ctx, jobID, status, errMsg, refs)
		if err == nil {
			break
		}
		logger.Warnf("Finalize attempt %d for job %s failed: %v", attempt+1, jobID, err)
	}
	if err != nil {
		logger.Errorf("Giving up finalizing job %s as %s: %v", jobID, status, err)
		return
	}
	if !applied {
		logger.Infof("Job %s already terminal, dropping %s finalization", jobID, status)
		return
	}
	logger.InfoWithFields("Job finished", map[string]interface{}{
		"job_id": jobID,
		"status": status.String(),
		"error":  errMsg,
	})
	events.Publish(events.Event{
		Type:     events.EventJobFinished,
		JobID:    jobID,
		ClientID: clientID,
		Status:   status,
		Error:    errMsg,
	})
}

func mimeTypeOf(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

