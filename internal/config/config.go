package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"framefeed/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	ImportDir string `toml:"import_dir"`
	LogDir    string `toml:"log_dir"`
}

// Source describes one remote photo source account.
type Source struct {
	Name            string `toml:"name"`
	Enabled         bool   `toml:"enabled"`
	LoginURL        string `toml:"login_url"`
	PlaylistURL     string `toml:"playlist_url"`
	Identifier      string `toml:"identifier"`
	AccountID       string `toml:"account_id"`
	AccountPassword string `toml:"account_password"`
	FetchTimeout    int    `toml:"fetch_timeout"`
}

// Import contains the throttling knobs for the download/persist pipeline.
type Import struct {
	MaxConcurrentDownloads    int     `toml:"max_concurrent_downloads"`
	MaxConcurrentDBOperations int     `toml:"max_concurrent_db_operations"`
	DownloadBatchSize         int     `toml:"download_batch_size"`
	BatchDelaySeconds         float64 `toml:"batch_delay_seconds"`
	MaxProcessingTasks        int     `toml:"max_processing_tasks"`
	DBRetryAttempts           int     `toml:"db_retry_attempts"`
	DBStaggerMillis           int     `toml:"db_stagger_ms"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	ImportStarted  bool   `toml:"import_started"`
	ImportComplete bool   `toml:"import_complete"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for framefeed.
//
// Configuration sections by subsystem:
//   - Paths: catalog database, import destination, and log directories
//   - Sources: remote photo source accounts to import from
//   - Import: concurrency caps, batch sizing, and retry tuning
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sources       []Source      `toml:"sources"`
	Import        Import        `toml:"import"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/framefeed/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("framefeed.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the importer needs. ImportDir is
// created on a best-effort basis so config load succeeds when external storage
// is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ImportDir) != "" {
		_ = os.MkdirAll(c.Paths.ImportDir, 0o755)
	}
	return nil
}

// CatalogPath returns the path of the sqlite catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// EnabledSources returns the sources with imports enabled, in config order.
func (c *Config) EnabledSources() []Source {
	enabled := make([]Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}
	return enabled
}

// SourceByName returns the configured source with the given name.
func (c *Config) SourceByName(name string) (Source, bool) {
	for _, src := range c.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return Source{}, false
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := fileutil.AtomicWrite(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves ~ and relative segments to an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
