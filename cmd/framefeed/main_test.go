package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"framefeed/internal/catalog"
	"framefeed/internal/config"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	cfg        *config.Config
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
import_dir = %q
log_dir = %q
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "pictures"),
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load test config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return &cliTestEnv{baseDir: base, configPath: configPath, cfg: cfg}
}

func (e *cliTestEnv) seedCatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	store, err := catalog.Open(e.cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	defer store.Close()

	if _, err := store.SyncPlaylists(ctx, "nixplay", []catalog.Playlist{
		{PlaylistID: 1, Name: "frame-living-room", PictureCount: 2},
	}); err != nil {
		t.Fatalf("seed playlists: %v", err)
	}

	writer, err := catalog.NewFactory(e.cfg).OpenWriter(ctx)
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	defer writer.Close()
	for i := 0; i < 2; i++ {
		if err := writer.InsertMedia(ctx, &catalog.MediaFile{
			Source:      "nixplay",
			PlaylistID:  1,
			MediaItemID: fmt.Sprintf("m-%d", i),
			OriginalURL: fmt.Sprintf("https://photos.example.com/m-%d.jpg", i),
			Basename:    fmt.Sprintf("m-%d", i),
			Extension:   "jpg",
			LocalPath:   filepath.Join(e.cfg.Paths.ImportDir, fmt.Sprintf("m-%d.jpg", i)),
		}); err != nil {
			t.Fatalf("seed media %d: %v", i, err)
		}
	}
	if err := store.MarkProcessed(ctx, "nixplay", 1, "m-0"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCommand()
	want := []string{"import", "status", "playlists", "config", "test-notify"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestCLIStatusJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seedCatalog(t)

	out, _, err := runCLI(t, env.configPath, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}

	var payload statusPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode status payload: %v\noutput: %s", err, out)
	}
	if !payload.Healthy {
		t.Fatalf("expected healthy catalog: %+v", payload)
	}
	if payload.Files != 2 || payload.Processed != 1 || payload.Unprocessed != 1 || payload.Playlists != 1 {
		t.Fatalf("unexpected stats: %+v", payload)
	}
}

func TestCLIStatusTable(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seedCatalog(t)

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Playlists", "Files", "Processed", "Healthy: yes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestCLIPlaylists(t *testing.T) {
	env := setupCLITestEnv(t)
	env.seedCatalog(t)

	out, _, err := runCLI(t, env.configPath, "playlists", "--json")
	if err != nil {
		t.Fatalf("playlists --json: %v", err)
	}

	var payload []playlistPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode playlists payload: %v\noutput: %s", err, out)
	}
	// The seeded playlist belongs to source "nixplay", which is not in the
	// config's sources, so the JSON filter yields nothing for configured
	// sources; the catalog still holds it when queried directly.
	if len(payload) != 0 {
		t.Fatalf("expected no playlists for unconfigured sources, got %+v", payload)
	}

	out, _, err = runCLI(t, env.configPath, "playlists")
	if err != nil {
		t.Fatalf("playlists: %v", err)
	}
	if !strings.Contains(out, "No playlists") {
		t.Fatalf("expected empty-playlists message, got:\n%s", out)
	}
}

func TestCLIImportRejectsUnknownSource(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "import", "--source", "missing")
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected unknown-source error, got %v", err)
	}
}

func TestCLIImportRequiresEnabledSources(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "import")
	if err == nil || !strings.Contains(err.Error(), "no enabled sources") {
		t.Fatalf("expected no-sources error, got %v", err)
	}
}

func TestCLIConfigInitAndValidate(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "framefeed.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected error for existing config without --overwrite")
	}

	env := setupCLITestEnv(t)
	out, _, err = runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
}

func TestCLIConfigShowRedactsPasswords(t *testing.T) {
	env := setupCLITestEnv(t)
	content := fmt.Sprintf(`[paths]
data_dir = %q
import_dir = %q
log_dir = %q

[[sources]]
name = "nixplay"
enabled = true
login_url = "https://api.example.com/login"
playlist_url = "https://api.example.com/playlists"
account_id = "frame@example.com"
account_password = "hunter2"
`,
		filepath.Join(env.baseDir, "data"),
		filepath.Join(env.baseDir, "pictures"),
		filepath.Join(env.baseDir, "logs"),
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "hunter2") {
		t.Fatal("config show leaked a password")
	}
	if !strings.Contains(out, "<redacted>") {
		t.Fatalf("expected redaction marker in output:\n%s", out)
	}
}
