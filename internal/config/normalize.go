package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSources()
	c.normalizeImport()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ImportDir) == "" {
		c.Paths.ImportDir = defaultImportDir
	}
	if c.Paths.ImportDir, err = expandPath(c.Paths.ImportDir); err != nil {
		return fmt.Errorf("paths.import_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSources() {
	for i := range c.Sources {
		src := &c.Sources[i]
		src.Name = strings.TrimSpace(src.Name)
		src.LoginURL = strings.TrimSpace(src.LoginURL)
		src.PlaylistURL = strings.TrimSpace(src.PlaylistURL)
		src.Identifier = strings.TrimSpace(src.Identifier)
		if src.FetchTimeout <= 0 {
			src.FetchTimeout = defaultFetchTimeout
		}
	}
}

func (c *Config) normalizeImport() {
	if c.Import.BatchDelaySeconds < 0 {
		c.Import.BatchDelaySeconds = defaultBatchDelaySeconds
	}
	if c.Import.DBRetryAttempts <= 0 {
		c.Import.DBRetryAttempts = defaultDBRetryAttempts
	}
	if c.Import.DBStaggerMillis < 0 {
		c.Import.DBStaggerMillis = defaultDBStaggerMillis
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
