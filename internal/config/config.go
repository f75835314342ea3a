package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Recognition holds matcher and debounce settings.
type Recognition struct {
	MatchThreshold  float64 `toml:"match_threshold"`
	CooldownSeconds int     `toml:"cooldown_seconds"`
}

// Snapshot controls unknown-face snapshots.
type Snapshot struct {
	OnUnknown   bool   `toml:"on_unknown"`
	Directory   string `toml:"directory"`
	JPEGQuality int    `toml:"jpeg_quality"`
}

// Desktop configures the desktop alert sink.
type Desktop struct {
	Enabled bool   `toml:"enabled"`
	Command string `toml:"command"`
}

// MQTT configures the pub/sub sink.
type MQTT struct {
	Enabled       bool   `toml:"enabled"`
	Host          string `toml:"host"`
	Topic         string `toml:"topic"`
	QoS           int    `toml:"qos"`
	PayloadFormat string `toml:"payload_format"`
}

// Ntfy configures the ntfy push sink. An empty topic disables it.
type Ntfy struct {
	Topic string `toml:"topic"`
}

// Notifications groups the sink configurations.
type Notifications struct {
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Desktop        Desktop `toml:"desktop"`
	MQTT           MQTT    `toml:"mqtt"`
	Ntfy           Ntfy    `toml:"ntfy"`
}

// Camera describes the capture input handed to ffmpeg.
type Camera struct {
	Input  string `toml:"input"`
	Format string `toml:"format"`
}

// Detector describes the external face detector process.
type Detector struct {
	Command            []string `toml:"command"`
	ReadTimeoutSeconds int      `toml:"read_timeout_seconds"`
}

// Gallery lists where reference identities come from.
type Gallery struct {
	Manifest    string `toml:"manifest"`
	DatabaseURL string `toml:"database_url"`
}

// Preview configures the MJPEG preview relay.
type Preview struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Logging configures log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the complete watcher configuration.
type Config struct {
	Recognition   Recognition   `toml:"recognition"`
	Snapshot      Snapshot      `toml:"snapshot"`
	Notifications Notifications `toml:"notifications"`
	Camera        Camera        `toml:"camera"`
	Detector      Detector      `toml:"detector"`
	Gallery       Gallery       `toml:"gallery"`
	Preview       Preview       `toml:"preview"`
	Logging       Logging       `toml:"logging"`
}

// Cooldown returns the per-identity cooldown window.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Recognition.CooldownSeconds) * time.Second
}

// Timeout returns the per-sink delivery timeout.
func (n Notifications) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// DetectorTimeout returns the detector read timeout, zero meaning none.
func (c Config) DetectorTimeout() time.Duration {
	return time.Duration(c.Detector.ReadTimeoutSeconds) * time.Second
}

// Load builds a configuration from defaults, the optional TOML file at path
// and the environment, and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return errors.New(strict.String())
		}
		return err
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	if v, ok := lookup("FACEWATCH_MATCH_THRESHOLD"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("FACEWATCH_MATCH_THRESHOLD: %w", err))
		} else {
			cfg.Recognition.MatchThreshold = f
		}
	}
	if v, ok := lookup("FACEWATCH_COOLDOWN_SECONDS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("FACEWATCH_COOLDOWN_SECONDS: %w", err))
		} else {
			cfg.Recognition.CooldownSeconds = n
		}
	}
	boolean("FACEWATCH_SNAPSHOT_ON_UNKNOWN", &cfg.Snapshot.OnUnknown)
	str("FACEWATCH_SNAPSHOT_DIR", &cfg.Snapshot.Directory)
	boolean("FACEWATCH_DESKTOP_ALERTS", &cfg.Notifications.Desktop.Enabled)
	boolean("FACEWATCH_MQTT_ENABLED", &cfg.Notifications.MQTT.Enabled)
	str("FACEWATCH_MQTT_HOST", &cfg.Notifications.MQTT.Host)
	str("FACEWATCH_MQTT_TOPIC", &cfg.Notifications.MQTT.Topic)
	str("FACEWATCH_NTFY_TOPIC", &cfg.Notifications.Ntfy.Topic)
	str("FACEWATCH_CAMERA", &cfg.Camera.Input)
	str("FACEWATCH_DATABASE_URL", &cfg.Gallery.DatabaseURL)
	str("FACEWATCH_LOG_LEVEL", &cfg.Logging.Level)

	return errors.Join(errs...)
}
