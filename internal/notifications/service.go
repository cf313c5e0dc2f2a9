package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"transcoderctl/internal/config"
)

const userAgent = "transcoderctl/0.1.0"

// Service defines the notification surface used by the console.
type Service interface {
	NotifyJobCompleted(ctx context.Context, jobID, output string) error
	NotifyJobFailed(ctx context.Context, jobID, state, reason string) error
	NotifyPlaylistSubmitted(ctx context.Context, name string, jobs int) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil || cfg.Notifications.NtfyTopic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: cfg.Notifications.NtfyTopic,
		client:   &http.Client{Timeout: cfg.NotifyTimeout()},
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
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobID, output string) error {
	message := fmt.Sprintf("Transcode complete: %s", strings.TrimSpace(jobID))
	if output = strings.TrimSpace(output); output != "" {
		message = fmt.Sprintf("%s\nOutput: %s", message, output)
	}
	return n.send(ctx, payload{
		title:   "Transcoder - Job Complete",
		message: message,
		tags:    []string{"transcoder", "job", "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, jobID, state, reason string) error {
	state = strings.TrimSpace(state)
	if state == "" {
		state = "failed"
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "Job %s %s", strings.TrimSpace(jobID), state)
	if reason = strings.TrimSpace(reason); reason != "" {
		fmt.Fprintf(&builder, "\nReason: %s", reason)
	}
	return n.send(ctx, payload{
		title:    "Transcoder - Job " + strings.ToUpper(state[:1]) + state[1:],
		message:  builder.String(),
		tags:     []string{"transcoder", "job", state},
		priority: "high",
	})
}

func (n *ntfyService) NotifyPlaylistSubmitted(ctx context.Context, name string, jobs int) error {
	return n.send(ctx, payload{
		title:   "Transcoder - Playlist Submitted",
		message: fmt.Sprintf("Playlist %s queued %d jobs", strings.TrimSpace(name), jobs),
		tags:    []string{"transcoder", "playlist", "submitted"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Transcoder - Test",
		message:  "Notification system test",
		tags:     []string{"transcoder", "test"},
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

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string, string) error      { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string, string) error { return nil }
func (noopService) NotifyPlaylistSubmitted(context.Context, string, int) error    { return nil }
func (noopService) TestNotification(context.Context) error                        { return nil }
