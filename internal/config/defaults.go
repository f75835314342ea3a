package config

// Built-in defaults, also used as flag defaults.
const (
	DefaultMatchThreshold  = 0.55
	DefaultCooldownSeconds = 20
	DefaultSnapshotDir     = "events"
	DefaultJPEGQuality     = 90
	DefaultNotifyTimeout   = 5
	DefaultDesktopCommand  = "notify-send"
	DefaultMQTTHost        = "127.0.0.1"
	DefaultMQTTTopic       = "pivision/events"
	DefaultPayloadFormat   = "json"
	DefaultCameraInput     = "/dev/video0"
	DefaultCameraFormat    = "v4l2"
	DefaultDetectorTimeout = 30
	DefaultGalleryManifest = "gallery.yaml"
	DefaultPreviewBind     = "127.0.0.1:5000"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "auto"
)

// Default returns a Config populated with the built-in defaults.
func Default() Config {
	return Config{
		Recognition: Recognition{
			MatchThreshold:  DefaultMatchThreshold,
			CooldownSeconds: DefaultCooldownSeconds,
		},
		Snapshot: Snapshot{
			OnUnknown:   true,
			Directory:   DefaultSnapshotDir,
			JPEGQuality: DefaultJPEGQuality,
		},
		Notifications: Notifications{
			TimeoutSeconds: DefaultNotifyTimeout,
			Desktop: Desktop{
				Enabled: true,
				Command: DefaultDesktopCommand,
			},
			MQTT: MQTT{
				Enabled:       false,
				Host:          DefaultMQTTHost,
				Topic:         DefaultMQTTTopic,
				PayloadFormat: DefaultPayloadFormat,
			},
		},
		Camera: Camera{
			Input:  DefaultCameraInput,
			Format: DefaultCameraFormat,
		},
		Detector: Detector{
			Command:            []string{"python3", "-u", "python/worker.py"},
			ReadTimeoutSeconds: DefaultDetectorTimeout,
		},
		Gallery: Gallery{
			Manifest: DefaultGalleryManifest,
		},
		Preview: Preview{
			Bind: DefaultPreviewBind,
		},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
