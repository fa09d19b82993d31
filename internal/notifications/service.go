package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"metergate/internal/config"
	"metergate/internal/gate"
)

const userAgent = "Metergate/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyRunStarted(ctx context.Context, runID string, sampleCount int) error
	NotifyValidationFailed(ctx context.Context, runID string, violations int) error
	NotifyTrainingCompleted(ctx context.Context, runID string, metrics gate.MetricSet) error
	NotifyPromotionDecision(ctx context.Context, runID string, decision *gate.Decision) error
	NotifyError(ctx context.Context, err error, context string) error
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
		events:   cfg.Notifications,
	}
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
	events   config.Notifications
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, runID string, sampleCount int) error {
	if !n.events.Training {
		return nil
	}
	data := payload{
		title:   "Metergate - Run Started",
		message: fmt.Sprintf("Started pipeline run %s with %d samples", runID, sampleCount),
		tags:    []string{"metergate", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyValidationFailed(ctx context.Context, runID string, violations int) error {
	if !n.events.Validation {
		return nil
	}
	data := payload{
		title:    "Metergate - Validation Failed",
		message:  fmt.Sprintf("Run %s aborted: dataset has %d integrity violations\nManual review required", runID, violations),
		tags:     []string{"metergate", "validation", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTrainingCompleted(ctx context.Context, runID string, metrics gate.MetricSet) error {
	if !n.events.Training {
		return nil
	}
	data := payload{
		title:   "Metergate - Training Complete",
		message: fmt.Sprintf("Run %s finished training: %s", runID, metrics.String()),
		tags:    []string{"metergate", "training", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPromotionDecision(ctx context.Context, runID string, decision *gate.Decision) error {
	if !n.events.Promotion || decision == nil {
		return nil
	}

	var title string
	var priority string
	switch {
	case decision.Bootstrap:
		title = "Metergate - Bootstrap Promotion"
		priority = "high"
	case decision.ShouldPromote:
		title = "Metergate - Model Promoted"
		priority = "high"
	default:
		title = "Metergate - Promotion Rejected"
	}

	data := payload{
		title:    title,
		message:  fmt.Sprintf("Run %s: %s", runID, decision.Justification),
		tags:     []string{"metergate", "promotion", verdict(decision)},
		priority: priority,
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.events.Errors {
		return nil
	}

	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Metergate - Error",
		message:  builder.String(),
		tags:     []string{"metergate", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Metergate - Test",
		message:  "Notification system test",
		tags:     []string{"metergate", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func verdict(decision *gate.Decision) string {
	if decision.ShouldPromote {
		return "promoted"
	}
	return "rejected"
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

func (noopService) NotifyRunStarted(context.Context, string, int) error               { return nil }
func (noopService) NotifyValidationFailed(context.Context, string, int) error         { return nil }
func (noopService) NotifyTrainingCompleted(context.Context, string, gate.MetricSet) error {
	return nil
}
func (noopService) NotifyPromotionDecision(context.Context, string, *gate.Decision) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
