package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"vidmerge/internal/config"
	"vidmerge/internal/ledger"
)

const userAgent = "vidmerge/1.0"

// Service publishes alerts.
type Service interface {
	MergeOutcome(ctx context.Context, entry ledger.Entry) error
	Test(ctx context.Context) error
	Enabled() bool
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil || cfg.Notifications.NtfyTopic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint:        cfg.Notifications.NtfyTopic,
		notifyPublished: cfg.Notifications.NotifyPublished,
		client:          &http.Client{Timeout: cfg.NotifyTimeout()},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint        string
	notifyPublished bool
	client          *http.Client
}

func (n *ntfyService) Enabled() bool { return true }

func (n *ntfyService) MergeOutcome(ctx context.Context, entry ledger.Entry) error {
	sources := strings.Join(entry.Sources, " + ")
	switch entry.Outcome {
	case ledger.OutcomePublished:
		if !n.notifyPublished {
			return nil
		}
		return n.send(ctx, message{
			title: "vidmerge - Merged",
			body: fmt.Sprintf("🎞️ Merged %s → %s (%s)",
				sources, entry.ResultID, humanize.IBytes(uint64(max(entry.SizeBytes, 0)))),
			tags: []string{"vidmerge", "merge", "published"},
		})
	case ledger.OutcomeFailed:
		body := fmt.Sprintf("❌ Merge failed (%s): %s", entry.ErrorKind, sources)
		if entry.RunID != "" {
			body += "\nRun: " + entry.RunID
		}
		if entry.RequestID != "" {
			body += "\nRequest: " + entry.RequestID
		}
		return n.send(ctx, message{
			title:    "vidmerge - Merge Failed",
			body:     body,
			tags:     []string{"vidmerge", "merge", "failed"},
			priority: "high",
		})
	default:
		return nil
	}
}

func (n *ntfyService) Test(ctx context.Context) error {
	return n.send(ctx, message{
		title:    "vidmerge - Test",
		body:     "🧪 Notification system test",
		tags:     []string{"vidmerge", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", msg.title)
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
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

func (noopService) MergeOutcome(context.Context, ledger.Entry) error { return nil }
func (noopService) Test(context.Context) error                       { return nil }
func (noopService) Enabled() bool                                    { return false }
