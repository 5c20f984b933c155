package config

const (
	defaultDataDir   = "~/.local/share/framefeed"
	defaultImportDir = "~/Pictures/framefeed"
	defaultLogDir    = "~/.local/share/framefeed/logs"

	defaultMaxConcurrentDownloads    = 5
	defaultMaxConcurrentDBOperations = 3
	defaultDownloadBatchSize         = 10
	defaultBatchDelaySeconds         = 1.0
	defaultMaxProcessingTasks        = 2
	defaultDBRetryAttempts           = 3
	defaultDBStaggerMillis           = 100

	defaultFetchTimeout   = 60
	defaultRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Throttling bounds enforced by Validate. Values outside these ranges are
// configuration errors, not clamped.
const (
	MinConcurrentDownloads = 1
	MaxConcurrentDownloads = 20

	MinConcurrentDBOperations = 1
	MaxConcurrentDBOperations = 10

	MinDownloadBatchSize = 5
	MaxDownloadBatchSize = 50

	MinProcessingTasks = 1
	MaxProcessingTasks = 8
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			ImportDir: defaultImportDir,
			LogDir:    defaultLogDir,
		},
		Import: Import{
			MaxConcurrentDownloads:    defaultMaxConcurrentDownloads,
			MaxConcurrentDBOperations: defaultMaxConcurrentDBOperations,
			DownloadBatchSize:         defaultDownloadBatchSize,
			BatchDelaySeconds:         defaultBatchDelaySeconds,
			MaxProcessingTasks:        defaultMaxProcessingTasks,
			DBRetryAttempts:           defaultDBRetryAttempts,
			DBStaggerMillis:           defaultDBStaggerMillis,
		},
		Notifications: Notifications{
			RequestTimeout: defaultRequestTimeout,
			ImportStarted:  true,
			ImportComplete: true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
