package config

import (
	"errors"
	"fmt"
	"regexp"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.ValidateImport(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateImport checks the throttling knobs against their documented bounds.
// The importer re-runs this before dispatching any work so an out-of-range
// value is always fatal, never partially applied.
func (c *Config) ValidateImport() error {
	imp := c.Import
	if imp.MaxConcurrentDownloads < MinConcurrentDownloads || imp.MaxConcurrentDownloads > MaxConcurrentDownloads {
		return fmt.Errorf("import.max_concurrent_downloads must be between %d and %d, got %d",
			MinConcurrentDownloads, MaxConcurrentDownloads, imp.MaxConcurrentDownloads)
	}
	if imp.MaxConcurrentDBOperations < MinConcurrentDBOperations || imp.MaxConcurrentDBOperations > MaxConcurrentDBOperations {
		return fmt.Errorf("import.max_concurrent_db_operations must be between %d and %d, got %d",
			MinConcurrentDBOperations, MaxConcurrentDBOperations, imp.MaxConcurrentDBOperations)
	}
	if imp.DownloadBatchSize < MinDownloadBatchSize || imp.DownloadBatchSize > MaxDownloadBatchSize {
		return fmt.Errorf("import.download_batch_size must be between %d and %d, got %d",
			MinDownloadBatchSize, MaxDownloadBatchSize, imp.DownloadBatchSize)
	}
	if imp.MaxProcessingTasks < MinProcessingTasks || imp.MaxProcessingTasks > MaxProcessingTasks {
		return fmt.Errorf("import.max_processing_tasks must be between %d and %d, got %d",
			MinProcessingTasks, MaxProcessingTasks, imp.MaxProcessingTasks)
	}
	return nil
}

func (c *Config) validateSources() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name must be set", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("sources[%d].name %q is duplicated", i, src.Name)
		}
		seen[src.Name] = struct{}{}
		if !src.Enabled {
			continue
		}
		if src.LoginURL == "" {
			return fmt.Errorf("sources[%d].login_url must be set when enabled", i)
		}
		if src.PlaylistURL == "" {
			return fmt.Errorf("sources[%d].playlist_url must be set when enabled", i)
		}
		if src.AccountID == "" {
			return fmt.Errorf("sources[%d].account_id must be set when enabled", i)
		}
		if src.Identifier != "" {
			if _, err := regexp.Compile(src.Identifier); err != nil {
				return fmt.Errorf("sources[%d].identifier is not a valid regular expression: %w", i, err)
			}
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return errors.New("logging.level must be one of debug, info, warn, error")
	}
}
