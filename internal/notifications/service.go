package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"slackscribe/internal/config"
)

const userAgent = "slackscribe/0.1.0"

// RunSummary describes a finished pipeline run.
type RunSummary struct {
	SourceID  string
	Kind      string
	Succeeded int
	Failed    int
	Degraded  bool
	TicketID  string
	Duration  time.Duration
}

// Service defines the notification surface exposed to the pipeline.
type Service interface {
	NotifyRunCompleted(ctx context.Context, summary RunSummary) error
	NotifyRunFailed(ctx context.Context, sourceID, kind, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		runCompleted: cfg.Notifications.RunCompleted,
		runFailed:    cfg.Notifications.RunFailed,
		errors:       cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	runCompleted bool
	runFailed    bool
	errors       bool
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, summary RunSummary) error {
	if !n.runCompleted {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Transcribed %s", strings.TrimSpace(summary.SourceID))
	if summary.Kind != "" {
		fmt.Fprintf(&b, " (%s)", summary.Kind)
	}
	fmt.Fprintf(&b, ": %d ok", summary.Succeeded)
	if summary.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", summary.Failed)
	}
	if summary.Degraded {
		b.WriteString(", degraded")
	}
	if summary.TicketID != "" {
		fmt.Fprintf(&b, "\nTicket: #%s", summary.TicketID)
	}
	if summary.Duration > 0 {
		fmt.Fprintf(&b, "\nTook %s", summary.Duration.Round(time.Second))
	}

	title := "slackscribe - Transcribed"
	tags := []string{"slackscribe", "run", "completed"}
	if summary.Failed > 0 || summary.Degraded {
		title = "slackscribe - Transcribed (with errors)"
		tags = []string{"slackscribe", "run", "partial"}
	}
	return n.send(ctx, payload{title: title, message: b.String(), tags: tags})
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, sourceID, kind, reason string) error {
	if !n.runFailed {
		return nil
	}
	message := fmt.Sprintf("Run failed for %s", strings.TrimSpace(sourceID))
	if kind = strings.TrimSpace(kind); kind != "" {
		message += " [" + kind + "]"
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		message += ": " + reason
	}
	return n.send(ctx, payload{
		title:    "slackscribe - Run Failed",
		message:  message,
		tags:     []string{"slackscribe", "run", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
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

	return n.send(ctx, payload{
		title:    "slackscribe - Error",
		message:  builder.String(),
		tags:     []string{"slackscribe", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "slackscribe - Test",
		message:  "Notification system test",
		tags:     []string{"slackscribe", "test"},
		priority: "low",
	})
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

// Noop returns a Service that drops every notification.
func Noop() Service {
	return noopService{}
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, RunSummary) error           { return nil }
func (noopService) NotifyRunFailed(context.Context, string, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error              { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
