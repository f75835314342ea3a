package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultDesktopCommand is the freedesktop notification helper.
const DefaultDesktopCommand = "notify-send"

// DesktopSink raises a desktop alert by running `<command> <title> <body>`.
type DesktopSink struct {
	path string
}

// NewDesktopSink resolves command on PATH. A missing binary is reported here
// so the caller can disable the sink once at startup.
func NewDesktopSink(command string) (*DesktopSink, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		command = DefaultDesktopCommand
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("desktop notifier %q not available: %w", command, err)
	}
	return &DesktopSink{path: path}, nil
}

// Name implements Sink.
func (d *DesktopSink) Name() string { return "desktop" }

// Send runs the notifier with the title and DesktopBody as arguments.
func (d *DesktopSink) Send(ctx context.Context, ev Event) error {
	cmd := exec.CommandContext(ctx, d.path, ev.Title, DesktopBody(ev))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("run %s: %w: %s", d.path, err, msg)
		}
		return fmt.Errorf("run %s: %w", d.path, err)
	}
	return nil
}

// DesktopBody is the alert body: the message followed by the payload as text.
func DesktopBody(ev Event) string {
	if len(ev.Payload) == 0 {
		return ev.Message
	}
	return ev.Message + "\n" + ev.Payload.String()
}
