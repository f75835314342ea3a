package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/facewatch/internal/config"
	"github.com/andresmejia3/facewatch/internal/notify"
	"github.com/spf13/cobra"
)

func newWatchTestCmd(t *testing.T, args ...string) (*cobra.Command, Options) {
	t.Helper()
	var opts Options
	cmd := &cobra.Command{Use: "watch"}
	bindWatchFlags(cmd, &opts)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v): %v", args, err)
	}
	return cmd, opts
}

func TestApplyWatchFlagsDefaultsKeepConfig(t *testing.T) {
	c := config.Default()
	c.Recognition.MatchThreshold = 0.4
	c.Notifications.MQTT.Host = "broker.lan"

	cmd, opts := newWatchTestCmd(t)
	applyWatchFlags(cmd, &c, opts)

	if c.Recognition.MatchThreshold != 0.4 || c.Notifications.MQTT.Host != "broker.lan" {
		t.Errorf("unset flags must not override config: %+v", c.Recognition)
	}
	if !c.Snapshot.OnUnknown || !c.Notifications.Desktop.Enabled || c.Notifications.MQTT.Enabled {
		t.Errorf("unexpected toggles: %+v", c)
	}
}

func TestApplyWatchFlagsOverrides(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(video, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	c := config.Default()
	cmd, opts := newWatchTestCmd(t,
		"--threshold", "0.3",
		"--cooldown", "5",
		"--snapshot-dir", "captures",
		"--no-snapshots",
		"--no-desktop",
		"--mqtt",
		"--mqtt-host", "10.0.0.2",
		"--mqtt-topic", "home/door",
		"--input", video,
		"--preview",
	)
	applyWatchFlags(cmd, &c, opts)

	if c.Recognition.MatchThreshold != 0.3 || c.Cooldown() != 5*time.Second {
		t.Errorf("recognition overrides not applied: %+v", c.Recognition)
	}
	if c.Snapshot.OnUnknown || c.Snapshot.Directory != "captures" {
		t.Errorf("snapshot overrides not applied: %+v", c.Snapshot)
	}
	if c.Notifications.Desktop.Enabled {
		t.Error("--no-desktop not applied")
	}
	m := c.Notifications.MQTT
	if !m.Enabled || m.Host != "10.0.0.2" || m.Topic != "home/door" {
		t.Errorf("mqtt overrides not applied: %+v", m)
	}
	if c.Camera.Input != video || c.Camera.Format != "" {
		t.Errorf("file input should drop the device format: %+v", c.Camera)
	}
	if !c.Preview.Enabled {
		t.Error("--preview not applied")
	}
}

func TestValidateWatchFlags(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"Valid options", func(*config.Config) {}, false},
		{"Negative threshold", func(c *config.Config) { c.Recognition.MatchThreshold = -0.1 }, true},
		{"NaN threshold", func(c *config.Config) { c.Recognition.MatchThreshold = math.NaN() }, true},
		{"Negative cooldown", func(c *config.Config) { c.Recognition.CooldownSeconds = -1 }, true},
		{"Empty snapshot dir", func(c *config.Config) { c.Snapshot.Directory = "" }, true},
		{"Snapshots off without dir", func(c *config.Config) {
			c.Snapshot.OnUnknown = false
			c.Snapshot.Directory = ""
		}, false},
		{"MQTT without topic", func(c *config.Config) {
			c.Notifications.MQTT.Enabled = true
			c.Notifications.MQTT.Topic = ""
		}, true},
		{"No input", func(c *config.Config) { c.Camera.Input = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.Default()
			tt.mutate(&c)
			if err := validateWatchFlags(c); (err != nil) != tt.wantErr {
				t.Errorf("validateWatchFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRenderReport(t *testing.T) {
	report := notify.Report{Results: []notify.Result{
		{Sink: "console", Duration: time.Millisecond},
		{Sink: "mqtt", Err: errors.New("broker down"), Duration: 2 * time.Second},
	}}
	out := renderReport(report)
	for _, want := range []string{"SINK", "console", "ok", "mqtt", "failed", "broker down", "2s"} {
		if !strings.Contains(out, want) {
			t.Errorf("report table missing %q:\n%s", want, out)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false}
	for in, want := range tests {
		var out bytes.Buffer
		if got := confirm(bufio.NewReader(strings.NewReader(in)), &out, "Delete?"); got != want {
			t.Errorf("confirm(%q) = %v, want %v", in, got, want)
		}
		if !strings.Contains(out.String(), "Delete? [y/N]") {
			t.Errorf("prompt not shown: %q", out.String())
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FACEWATCH_TEST_ONLY=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FACEWATCH_TEST_ONLY", "")
	os.Unsetenv("FACEWATCH_TEST_ONLY")
	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile failed: %v", err)
	}
	if got := os.Getenv("FACEWATCH_TEST_ONLY"); got != "from-dotenv" {
		t.Errorf("FACEWATCH_TEST_ONLY = %q", got)
	}
}

func TestLoadManifestMissingIsEmpty(t *testing.T) {
	m, found, err := loadManifest(filepath.Join(t.TempDir(), "gallery.yaml"))
	if err != nil || found || len(m.Identities) != 0 {
		t.Errorf("expected empty manifest, got %+v found=%v err=%v", m, found, err)
	}

	path := filepath.Join(t.TempDir(), "gallery.yaml")
	if err := os.WriteFile(path, []byte("identities:\n  - label: Sander\n    images: [sander.jpg]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	m, found, err = loadManifest(path)
	if err != nil || !found || len(m.Identities) != 1 {
		t.Errorf("expected one identity, got %+v found=%v err=%v", m, found, err)
	}
}

func TestCheckThreshold(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		wantErr   bool
	}{
		{"Default", config.DefaultMatchThreshold, false},
		{"Zero", 0, false},
		{"Negative", -0.5, true},
		{"NaN", math.NaN(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := checkThreshold(tt.threshold); (err != nil) != tt.wantErr {
				t.Errorf("checkThreshold(%v) error = %v, wantErr %v", tt.threshold, err, tt.wantErr)
			}
		})
	}
}
