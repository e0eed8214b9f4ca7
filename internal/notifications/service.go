package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidsentry/internal/config"
)

const userAgent = "vidsentry/0.1.0"

// Service defines the notification surface exposed to the ingestion pipeline.
type Service interface {
	NotifyDetectionCompleted(ctx context.Context, filename string, classes []string) error
	NotifyDetectionFailed(ctx context.Context, filename string, err error) error
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
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		onSuccess: cfg.Notifications.OnSuccess,
		onFailure: cfg.Notifications.OnFailure,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	onSuccess bool
	onFailure bool
}

func (n *ntfyService) NotifyDetectionCompleted(ctx context.Context, filename string, classes []string) error {
	if !n.onSuccess {
		return nil
	}
	filename = strings.TrimSpace(filename)
	message := fmt.Sprintf("No objects detected in %s", filename)
	if len(classes) > 0 {
		message = fmt.Sprintf("%s: %s", filename, strings.Join(classes, ", "))
	}
	data := payload{
		title:   "vidsentry - Detection Complete",
		message: message,
		tags:    []string{"vidsentry", "detection", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDetectionFailed(ctx context.Context, filename string, err error) error {
	if !n.onFailure {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Detection failed for ")
	builder.WriteString(strings.TrimSpace(filename))
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "vidsentry - Detection Failed",
		message:  builder.String(),
		tags:     []string{"vidsentry", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "vidsentry - Test",
		message:  "Notification system test",
		tags:     []string{"vidsentry", "test"},
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

func (noopService) NotifyDetectionCompleted(context.Context, string, []string) error { return nil }
func (noopService) NotifyDetectionFailed(context.Context, string, error) error       { return nil }
func (noopService) TestNotification(context.Context) error                           { return nil }
