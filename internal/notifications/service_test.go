package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"framefeed/internal/config"
	"framefeed/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyImportStarted(context.Background(), "nixplay", 5); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

type capture struct {
	title    string
	tags     string
	priority string
	body     string
	calls    int
}

func captureServer(t *testing.T, got *capture) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		got.body = string(body)
		got.calls++
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNtfyServiceFormatsImportStarted(t *testing.T) {
	var got capture
	server := captureServer(t, &got)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.ImportStarted = true

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyImportStarted(context.Background(), "nixplay", 12); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}
	if got.title != "Framefeed - Import Started" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if got.body != "Importing 12 new items from nixplay" {
		t.Fatalf("unexpected body %q", got.body)
	}
	if got.tags != "framefeed,import,started" {
		t.Fatalf("unexpected tags %q", got.tags)
	}
}

func TestNtfyServiceFormatsCompletionSummary(t *testing.T) {
	var got capture
	server := captureServer(t, &got)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.ImportComplete = true

	svc := notifications.NewService(&cfg)
	summary := notifications.Summary{
		Source:   "nixplay",
		Imported: 20,
		Skipped:  3,
		Duration: 90 * time.Second,
	}
	if err := svc.NotifyImportCompleted(context.Background(), summary); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}
	if got.title != "Framefeed - Import Complete" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if got.body != "nixplay: 20 imported, 3 skipped in 1m30s" {
		t.Fatalf("unexpected body %q", got.body)
	}

	summary.Failed = 2
	if err := svc.NotifyImportCompleted(context.Background(), summary); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}
	if got.title != "Framefeed - Import Complete (with errors)" {
		t.Fatalf("unexpected title %q", got.title)
	}
	if got.body != "nixplay: 20 imported, 3 skipped, 2 failed in 1m30s" {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestNtfyServiceFormatsError(t *testing.T) {
	var got capture
	server := captureServer(t, &got)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Errors = true

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyImportError(context.Background(), errors.New("catalog unavailable"), "import"); err != nil {
		t.Fatalf("notification returned error: %v", err)
	}
	if got.body != "Error with import: catalog unavailable" {
		t.Fatalf("unexpected body %q", got.body)
	}
	if got.priority != "high" {
		t.Fatalf("expected high priority, got %q", got.priority)
	}
}

func TestNtfyServiceHonorsSuppressionToggles(t *testing.T) {
	var got capture
	server := captureServer(t, &got)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.ImportStarted = false
	cfg.Notifications.ImportComplete = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyImportStarted(ctx, "nixplay", 1); err != nil {
		t.Fatalf("suppressed event returned error: %v", err)
	}
	if err := svc.NotifyImportCompleted(ctx, notifications.Summary{Source: "nixplay"}); err != nil {
		t.Fatalf("suppressed event returned error: %v", err)
	}
	if err := svc.NotifyImportError(ctx, errors.New("boom"), "import"); err != nil {
		t.Fatalf("suppressed event returned error: %v", err)
	}
	if got.calls != 0 {
		t.Fatalf("expected no requests for suppressed events, got %d", got.calls)
	}

	// Test notifications always fire.
	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("test notification returned error: %v", err)
	}
	if got.calls != 1 {
		t.Fatalf("expected one request, got %d", got.calls)
	}
}
