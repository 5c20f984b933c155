package testsupport

import (
	"path/filepath"
	"testing"

	"framefeed/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ImportDir = filepath.Join(base, "pictures")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Sources = []config.Source{{
		Name:            "testsource",
		Enabled:         true,
		LoginURL:        "http://127.0.0.1:0/login",
		PlaylistURL:     "http://127.0.0.1:0/playlists",
		Identifier:      "^frame-",
		AccountID:       "frame@example.com",
		AccountPassword: "secret",
		FetchTimeout:    5,
	}}

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithImportTuning overrides the throttling knobs on the test config.
func WithImportTuning(tune func(*config.Import)) ConfigOption {
	return func(cfg *config.Config) {
		tune(&cfg.Import)
	}
}

// WithSource replaces the configured sources with the provided one.
func WithSource(src config.Source) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sources = []config.Source{src}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
