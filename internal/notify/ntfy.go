package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const userAgent = "facewatch/0.1.0"

// NtfySink posts events to an ntfy topic URL.
type NtfySink struct {
	endpoint string
	client   *http.Client
}

// NewNtfySink returns a sink for the topic URL, or nil when topic is empty.
func NewNtfySink(topic string, client *http.Client) *NtfySink {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &NtfySink{endpoint: topic, client: client}
}

// Name implements Sink.
func (n *NtfySink) Name() string { return "ntfy" }

// Send posts DesktopBody(ev) to the topic URL.
func (n *NtfySink) Send(ctx context.Context, ev Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(DesktopBody(ev)))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if ev.Title != "" {
		req.Header.Set("Title", ev.Title)
	}
	tags := []string{"facewatch"}
	if label, ok := ev.Payload["label"].(string); ok && label != "" {
		tags = append(tags, label)
	}
	req.Header.Set("Tags", strings.Join(tags, ","))

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
