// Package constants provides centralized definitions of constants used throughout the application
package constants

// Environment variable names
const (
	// EnvServerPort is the port the HTTP API listens on
	EnvServerPort = "SERVER_PORT"
	// EnvLogLevel selects the logging verbosity
	EnvLogLevel = "LOG_LEVEL"

	// EnvDBHost is the database host
	EnvDBHost = "DB_HOST"
	// EnvDBPort is the database port
	EnvDBPort = "DB_PORT"
	// EnvDBUser is the database user
	EnvDBUser = "DB_USER"
	// EnvDBPassword is the database password
	EnvDBPassword = "DB_PASSWORD"
	// EnvDBName is the database name
	EnvDBName = "DB_NAME"

	// EnvWorkingDir is where the generation scripts live and run
	EnvWorkingDir = "WORKING_DIR"
	// EnvOutputDir is the root for per-job output directories
	EnvOutputDir = "OUTPUT_DIR"

	// EnvWorkerCount is the number of background execution workers
	EnvWorkerCount = "WORKER_COUNT"
	// EnvClientQueueLimit caps non-terminal jobs per client
	EnvClientQueueLimit = "CLIENT_QUEUE_LIMIT"
	// EnvDedupWindowHours is the duplicate-detection lookback in hours
	EnvDedupWindowHours = "DEDUP_WINDOW_HOURS"
	// EnvQueryWindowHours is the job-query lookback in hours
	EnvQueryWindowHours = "QUERY_WINDOW_HOURS"
	// EnvExecTimeoutMinutes bounds the main generation process
	EnvExecTimeoutMinutes = "EXEC_TIMEOUT_MINUTES"
	// EnvFixupTimeoutMinutes bounds each pre/post fix-up invocation
	EnvFixupTimeoutMinutes = "FIXUP_TIMEOUT_MINUTES"

	// EnvActivateCommand runs before the generation command in the session
	EnvActivateCommand = "ACTIVATE_COMMAND"
	// EnvDeactivateCommand runs after the generation command in the session
	EnvDeactivateCommand = "DEACTIVATE_COMMAND"
	// EnvPreProcessCommand is the optional seed-image fix-up template
	EnvPreProcessCommand = "PREPROCESS_COMMAND"
	// EnvPostProcessCommand is the optional output fix-up template
	EnvPostProcessCommand = "POSTPROCESS_COMMAND"
)
