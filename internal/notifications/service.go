package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"framefeed/internal/config"
)

const userAgent = "Framefeed/0.1.0"

// Summary captures the outcome of one import session for reporting.
type Summary struct {
	Source    string
	Imported  int
	Skipped   int
	Failed    int
	Batches   int
	Duration  time.Duration
	Playlists int
}

// Service defines the notification surface exposed to import components.
type Service interface {
	NotifyImportStarted(ctx context.Context, source string, count int) error
	NotifyImportCompleted(ctx context.Context, summary Summary) error
	NotifyImportError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		settings: cfg.Notifications,
	}
}

// Noop returns a Service that discards every notification.
func Noop() Service {
	return noopService{}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	settings config.Notifications
}

func (n *ntfyService) NotifyImportStarted(ctx context.Context, source string, count int) error {
	if !n.settings.ImportStarted {
		return nil
	}
	source = strings.TrimSpace(source)
	data := payload{
		title:   "Framefeed - Import Started",
		message: fmt.Sprintf("Importing %d new items from %s", count, source),
		tags:    []string{"framefeed", "import", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyImportCompleted(ctx context.Context, summary Summary) error {
	if !n.settings.ImportComplete {
		return nil
	}

	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if summary.Failed == 0 {
		title = "Framefeed - Import Complete"
		message = fmt.Sprintf("%s: %d imported, %d skipped in %s",
			summary.Source, summary.Imported, summary.Skipped, duration)
	} else {
		title = "Framefeed - Import Complete (with errors)"
		message = fmt.Sprintf("%s: %d imported, %d skipped, %d failed in %s",
			summary.Source, summary.Imported, summary.Skipped, summary.Failed, duration)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"framefeed", "import", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyImportError(ctx context.Context, err error, contextLabel string) error {
	if !n.settings.Errors {
		return nil
	}

	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Framefeed - Error",
		message:  builder.String(),
		tags:     []string{"framefeed", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Framefeed - Test",
		message:  "Notification system test",
		tags:     []string{"framefeed", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyImportStarted(context.Context, string, int) error { return nil }
func (noopService) NotifyImportCompleted(context.Context, Summary) error   { return nil }
func (noopService) NotifyImportError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error                 { return nil }
