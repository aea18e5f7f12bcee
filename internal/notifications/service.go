package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"marketscout/internal/config"
)

const userAgent = "marketscout/0.1.0"

// Event names a notification type.
type Event string

const (
	EventWinnerSelected Event = "winner_selected"
	EventDailyRunFailed Event = "daily_run_failed"
	EventJobFailed      Event = "job_failed"
	EventTest           Event = "test"
)

// Payload carries event fields. Values are rendered with fmt.
type Payload map[string]any

// Service publishes pipeline events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		winner:   cfg.Notifications.Winner,
		errors:   cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	winner   bool
	errors   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventWinnerSelected:
		if !n.winner {
			return message{}, false
		}
		keyword := payload.text("keyword")
		body := fmt.Sprintf("🏆 %s won %s with %s", keyword, payload.text("date"), payload.score("score"))
		if category := payload.text("category"); category != "" {
			body = fmt.Sprintf("%s\nCategory: %s", body, category)
		}
		if reasoning := payload.text("reasoning"); reasoning != "" {
			body = fmt.Sprintf("%s\n%s", body, reasoning)
		}
		return message{
			title: "marketscout - Daily Winner",
			body:  body,
			tags:  []string{"marketscout", "daily", "winner"},
		}, true
	case EventDailyRunFailed:
		if !n.errors {
			return message{}, false
		}
		return message{
			title:    "marketscout - Daily Run Failed",
			body:     fmt.Sprintf("❌ Daily run %s failed: %s", payload.text("date"), payload.textOr("error", "unknown")),
			tags:     []string{"marketscout", "daily", "error"},
			priority: "high",
		}, true
	case EventJobFailed:
		if !n.errors {
			return message{}, false
		}
		label := payload.text("job_type")
		if id := payload.text("job_id"); id != "" {
			label = fmt.Sprintf("%s (job %s)", label, id)
		}
		return message{
			title:    "marketscout - Job Failed",
			body:     fmt.Sprintf("❌ Error with %s: %s", strings.TrimSpace(label), payload.textOr("error", "unknown")),
			tags:     []string{"marketscout", "job", "error"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "marketscout - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"marketscout", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
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

func (p Payload) text(key string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	if err, ok := value.(error); ok {
		return strings.TrimSpace(err.Error())
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (p Payload) textOr(key, fallback string) string {
	if value := p.text(key); value != "" {
		return value
	}
	return fallback
}

func (p Payload) score(key string) string {
	switch v := p[key].(type) {
	case float64:
		return fmt.Sprintf("%.1f", v)
	case nil:
		return "n/a"
	default:
		return fmt.Sprint(v)
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
