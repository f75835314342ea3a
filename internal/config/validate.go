package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if t := c.Recognition.MatchThreshold; math.IsNaN(t) || t < 0 {
		add("recognition.match_threshold must be >= 0, got %v", c.Recognition.MatchThreshold)
	}
	if c.Recognition.CooldownSeconds < 0 {
		add("recognition.cooldown_seconds must be >= 0, got %d", c.Recognition.CooldownSeconds)
	}
	if c.Snapshot.OnUnknown && strings.TrimSpace(c.Snapshot.Directory) == "" {
		add("snapshot.directory is required when snapshot.on_unknown is set")
	}
	if c.Snapshot.JPEGQuality < 1 || c.Snapshot.JPEGQuality > 100 {
		add("snapshot.jpeg_quality must be within 1..100, got %d", c.Snapshot.JPEGQuality)
	}
	if c.Notifications.TimeoutSeconds <= 0 {
		add("notifications.timeout_seconds must be > 0, got %d", c.Notifications.TimeoutSeconds)
	}
	if m := c.Notifications.MQTT; m.Enabled {
		if strings.TrimSpace(m.Host) == "" {
			add("notifications.mqtt.host is required when mqtt is enabled")
		}
		if strings.TrimSpace(m.Topic) == "" {
			add("notifications.mqtt.topic is required when mqtt is enabled")
		}
	}
	if q := c.Notifications.MQTT.QoS; q < 0 || q > 2 {
		add("notifications.mqtt.qos must be 0, 1 or 2, got %d", q)
	}
	switch c.Notifications.MQTT.PayloadFormat {
	case "json", "msgpack":
	default:
		add("notifications.mqtt.payload_format: unsupported value %q", c.Notifications.MQTT.PayloadFormat)
	}
	if len(c.Detector.Command) == 0 || strings.TrimSpace(c.Detector.Command[0]) == "" {
		add("detector.command is required")
	}
	if c.Detector.ReadTimeoutSeconds < 0 {
		add("detector.read_timeout_seconds must be >= 0, got %d", c.Detector.ReadTimeoutSeconds)
	}
	if c.Preview.Enabled && strings.TrimSpace(c.Preview.Bind) == "" {
		add("preview.bind is required when preview is enabled")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "auto", "console", "json":
	default:
		add("logging.format: unsupported value %q", c.Logging.Format)
	}

	return errors.Join(errs...)
}
