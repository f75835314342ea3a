package notify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/andresmejia3/facewatch/internal/config"
)

// Setup builds a dispatcher from configuration. A sink that fails to
// initialise is logged once and left out for the lifetime of the process.
// The returned close function releases sink connections.
func Setup(ctx context.Context, cfg config.Notifications, logger *slog.Logger) (*Dispatcher, func()) {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout()

	var sinks []Sink
	closers := []func(){}

	if cfg.Desktop.Enabled {
		desktop, err := NewDesktopSink(cfg.Desktop.Command)
		if err != nil {
			logger.Warn("desktop alerts disabled", "error", err)
		} else {
			sinks = append(sinks, desktop)
		}
	}

	if cfg.MQTT.Enabled {
		sink, err := ConnectMQTT(ctx, MQTTOptions{
			Host:           cfg.MQTT.Host,
			Topic:          cfg.MQTT.Topic,
			QoS:            byte(cfg.MQTT.QoS),
			Format:         cfg.MQTT.PayloadFormat,
			ConnectTimeout: timeout,
		}, logger)
		if err != nil {
			logger.Warn("mqtt disabled (failed to init)", "error", err)
		} else {
			sinks = append(sinks, sink)
			closers = append(closers, sink.Close)
		}
	}

	if ntfy := NewNtfySink(cfg.Ntfy.Topic, &http.Client{Timeout: timeout}); ntfy != nil {
		sinks = append(sinks, ntfy)
	}

	d := NewDispatcher(logger, timeout, sinks...)
	logger.Info("notification sinks ready", "sinks", d.Sinks())
	return d, func() {
		for _, c := range closers {
			c()
		}
	}
}
