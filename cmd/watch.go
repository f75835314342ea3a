package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/andresmejia3/facewatch/internal/config"
	"github.com/andresmejia3/facewatch/internal/cooldown"
	"github.com/andresmejia3/facewatch/internal/notify"
	"github.com/andresmejia3/facewatch/internal/pipeline"
	"github.com/andresmejia3/facewatch/internal/render"
	"github.com/andresmejia3/facewatch/internal/snapshot"
	"github.com/andresmejia3/facewatch/internal/source"
	"github.com/andresmejia3/facewatch/internal/types"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/spf13/cobra"
)

// Options holds the watch flags that override the loaded configuration.
type Options struct {
	MatchThreshold  float64
	CooldownSeconds int
	SnapshotDir     string
	NoSnapshots     bool
	NoDesktop       bool
	MQTT            bool
	MQTTHost        string
	MQTTTopic       string
	InputPath       string
	Preview         bool
}

var watchOpts Options

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the camera and alert on recognized and unknown faces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		c := cfg
		applyWatchFlags(cmd, &c, watchOpts)
		if err := validateWatchFlags(c); err != nil {
			return err
		}
		return runWatch(cmd.Context(), c)
	},
}

func init() {
	bindWatchFlags(watchCmd, &watchOpts)
	rootCmd.AddCommand(watchCmd)
}

func bindWatchFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().Float64VarP(&opts.MatchThreshold, "threshold", "t", config.DefaultMatchThreshold, "Face matching threshold (lower is stricter)")
	cmd.Flags().IntVar(&opts.CooldownSeconds, "cooldown", config.DefaultCooldownSeconds, "Seconds before the same identity can alert again")
	cmd.Flags().StringVar(&opts.SnapshotDir, "snapshot-dir", config.DefaultSnapshotDir, "Directory for unknown-face snapshots")
	cmd.Flags().BoolVar(&opts.NoSnapshots, "no-snapshots", false, "Do not save snapshots of unknown faces")
	cmd.Flags().BoolVar(&opts.NoDesktop, "no-desktop", false, "Disable desktop alerts")
	cmd.Flags().BoolVar(&opts.MQTT, "mqtt", false, "Publish events to MQTT")
	cmd.Flags().StringVar(&opts.MQTTHost, "mqtt-host", config.DefaultMQTTHost, "MQTT broker host or URL")
	cmd.Flags().StringVar(&opts.MQTTTopic, "mqtt-topic", config.DefaultMQTTTopic, "MQTT topic for events")
	cmd.Flags().StringVarP(&opts.InputPath, "input", "i", config.DefaultCameraInput, "Camera device, video file or stream URL")
	cmd.Flags().BoolVar(&opts.Preview, "preview", false, "Serve the annotated stream over HTTP")
}

// applyWatchFlags copies explicitly set flags over the configuration.
func applyWatchFlags(cmd *cobra.Command, c *config.Config, opts Options) {
	f := cmd.Flags()
	if f.Changed("threshold") {
		c.Recognition.MatchThreshold = opts.MatchThreshold
	}
	if f.Changed("cooldown") {
		c.Recognition.CooldownSeconds = opts.CooldownSeconds
	}
	if f.Changed("snapshot-dir") {
		c.Snapshot.Directory = opts.SnapshotDir
	}
	if opts.NoSnapshots {
		c.Snapshot.OnUnknown = false
	}
	if opts.NoDesktop {
		c.Notifications.Desktop.Enabled = false
	}
	if opts.MQTT {
		c.Notifications.MQTT.Enabled = true
	}
	if f.Changed("mqtt-host") {
		c.Notifications.MQTT.Host = opts.MQTTHost
	}
	if f.Changed("mqtt-topic") {
		c.Notifications.MQTT.Topic = opts.MQTTTopic
	}
	if f.Changed("input") {
		c.Camera.Input = opts.InputPath
		// Let ffmpeg probe files and URLs; only a device keeps the configured format.
		if info, err := os.Stat(opts.InputPath); err == nil && info.Mode().IsRegular() {
			c.Camera.Format = ""
		}
	}
	if opts.Preview {
		c.Preview.Enabled = true
	}
}

func validateWatchFlags(c config.Config) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid watch options: %w", err)
	}
	if c.Camera.Input == "" {
		return errors.New("invalid watch options: an input is required")
	}
	return nil
}

// runWatch wires the detector, gallery, sinks and camera into the frame loop
// and runs it until the input ends or the context is canceled.
func runWatch(ctx context.Context, c config.Config) error {
	fmt.Fprintln(os.Stderr, "🚀 Starting face detector...")
	w, err := startDetector(ctx, c)
	if err != nil {
		utils.ShowError("Failed to start face detector", err, nil)
		return err
	}
	defer w.Close()

	g, err := buildGallery(ctx, c.Gallery, w, os.Stderr)
	if err != nil {
		utils.ShowError("Gallery construction failed", err, w.Cmd)
		return err
	}

	dispatcher, closeSinks := notify.Setup(ctx, c.Notifications, logger)
	defer closeSinks()

	var snapshots pipeline.SnapshotSaver
	if c.Snapshot.OnUnknown {
		snapshots = snapshot.New(c.Snapshot.Directory, c.Snapshot.JPEGQuality)
	}

	var renderer pipeline.Renderer = render.Discard{}
	if c.Preview.Enabled {
		preview := render.NewPreview(logger)
		renderer = preview
		go func() {
			if err := preview.Serve(ctx, c.Preview.Bind); err != nil {
				logger.Warn("preview disabled", "error", err)
			}
		}()
	}

	capture, err := source.OpenCapture(ctx, c.Camera)
	if err != nil {
		utils.ShowError("Failed to open camera", err, nil)
		return err
	}
	defer capture.Close()

	p, err := pipeline.New(pipeline.Options{
		Source:    capture,
		Detector:  w,
		Gallery:   g,
		Tracker:   cooldown.NewTracker(c.Cooldown(), cooldown.NewState()),
		Notifier:  dispatcher,
		Snapshots: snapshots,
		Renderer:  renderer,
		Threshold: c.Recognition.MatchThreshold,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	logger.Info("watching",
		"input", c.Camera.Input,
		"threshold", c.Recognition.MatchThreshold,
		"cooldown", c.Cooldown(),
		"snapshots", c.Snapshot.OnUnknown,
	)
	if err := p.Run(ctx); err != nil {
		if errors.Is(err, types.ErrDetectorUnavailable) {
			// DRAIN: Wait for process to exit and capture final stderr logs
			w.Close()
			utils.ShowError("Face detector crashed", err, w.Cmd)
		} else {
			utils.ShowError("Frame loop failed", err, capture.Command())
		}
		return err
	}

	stats := p.Stats()
	fmt.Fprintf(os.Stderr, "\n🏁 Watch stopped. %d frames, %d faces, %d events, %d snapshots.\n",
		stats.Frames, stats.Faces, stats.Events, stats.Snapshots)
	return nil
}
