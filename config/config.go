// Package config assembles the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/diffuselab/sdqueue/internal/constants"
)

// Defaults for the orchestration engine
const (
	// DefaultWorkerCount is the number of background execution workers
	DefaultWorkerCount = 2
	// DefaultClientQueueLimit is the max number of non-terminal jobs per client
	DefaultClientQueueLimit = 4
	// DefaultDedupWindowHours is the lookback for duplicate-request detection
	DefaultDedupWindowHours = 24
	// DefaultQueryWindowHours is the lookback for client job queries
	DefaultQueryWindowHours = 24
	// DefaultExecTimeoutMinutes bounds the main generation process
	DefaultExecTimeoutMinutes = 14
	// DefaultFixupTimeoutMinutes bounds each pre/post fix-up invocation
	DefaultFixupTimeoutMinutes = 3
)

// Config holds the full configuration of the service. It is built once at
// startup and passed to each component at construction.
type Config struct {
	ServerPort string

	// WorkingDir is where the generation scripts live and run
	WorkingDir string
	// OutputDir is the root under which per-job output directories are created
	OutputDir string

	WorkerCount      int
	ClientQueueLimit int

	DedupWindow time.Duration
	QueryWindow time.Duration

	ExecTimeout  time.Duration
	FixupTimeout time.Duration

	// ActivateCommand/DeactivateCommand wrap the generation command so that
	// environment activation affects the subsequent commands in the session
	ActivateCommand   string
	DeactivateCommand string

	// PreProcessCommand/PostProcessCommand are optional fix-up command
	// templates; %s is replaced with the target path
	PreProcessCommand  string
	PostProcessCommand string
}

// Load builds a Config from environment variables, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:         GetEnv(constants.EnvServerPort, "8080"),
		WorkingDir:         GetEnv(constants.EnvWorkingDir, "/opt/stable-diffusion"),
		OutputDir:          GetEnv(constants.EnvOutputDir, "/var/cache/diffusion"),
		ActivateCommand:    GetEnv(constants.EnvActivateCommand, "conda activate ldm"),
		DeactivateCommand:  GetEnv(constants.EnvDeactivateCommand, "conda deactivate"),
		PreProcessCommand:  GetEnv(constants.EnvPreProcessCommand, ""),
		PostProcessCommand: GetEnv(constants.EnvPostProcessCommand, ""),
	}

	var err error
	if cfg.WorkerCount, err = getEnvInt(constants.EnvWorkerCount, DefaultWorkerCount); err != nil {
		return nil, err
	}
	if cfg.ClientQueueLimit, err = getEnvInt(constants.EnvClientQueueLimit, DefaultClientQueueLimit); err != nil {
		return nil, err
	}

	dedupHours, err := getEnvInt(constants.EnvDedupWindowHours, DefaultDedupWindowHours)
	if err != nil {
		return nil, err
	}
	queryHours, err := getEnvInt(constants.EnvQueryWindowHours, DefaultQueryWindowHours)
	if err != nil {
		return nil, err
	}
	execMinutes, err := getEnvInt(constants.EnvExecTimeoutMinutes, DefaultExecTimeoutMinutes)
	if err != nil {
		return nil, err
	}
	fixupMinutes, err := getEnvInt(constants.EnvFixupTimeoutMinutes, DefaultFixupTimeoutMinutes)
	if err != nil {
		return nil, err
	}

	cfg.DedupWindow = time.Duration(dedupHours) * time.Hour
	cfg.QueryWindow = time.Duration(queryHours) * time.Hour
	cfg.ExecTimeout = time.Duration(execMinutes) * time.Minute
	cfg.FixupTimeout = time.Duration(fixupMinutes) * time.Minute

	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("WORKER_COUNT must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.ClientQueueLimit < 1 {
		return nil, fmt.Errorf("CLIENT_QUEUE_LIMIT must be at least 1, got %d", cfg.ClientQueueLimit)
	}

	return cfg, nil
}

// GetEnv retrieves the value of an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
