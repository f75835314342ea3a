package notify

import (
	"context"
	"log/slog"
)

// ConsoleSink logs every event. It is always the first sink of a Dispatcher.
type ConsoleSink struct {
	logger *slog.Logger
}

// NewConsoleSink returns a sink that writes events to logger.
func NewConsoleSink(logger *slog.Logger) *ConsoleSink {
	return &ConsoleSink{logger: logger}
}

// Name implements Sink.
func (c *ConsoleSink) Name() string { return "console" }

// Send logs ev at info level with its payload as attributes.
func (c *ConsoleSink) Send(ctx context.Context, ev Event) error {
	attrs := []any{"event_id", ev.ID, "message", ev.Message}
	for _, k := range ev.Payload.Keys() {
		attrs = append(attrs, slog.Any("payload."+k, ev.Payload[k]))
	}
	c.logger.InfoContext(ctx, ev.Title, attrs...)
	return nil
}
