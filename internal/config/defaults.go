package config

const (
	StoreBackendFS = "fs"
	StoreBackendS3 = "s3"
)

const (
	defaultStagingDir         = "~/.local/share/vidmerge/staging"
	defaultLogDir             = "~/.local/share/vidmerge/logs"
	defaultLedgerPath         = "~/.local/share/vidmerge/ledger.db"
	defaultFSRoot             = "~/.local/share/vidmerge/store"
	defaultBind               = "127.0.0.1:8080"
	defaultMaxUploadMiB       = 512
	defaultReadHeaderTimeout  = 5
	defaultShutdownTimeout    = 10
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultVideoCodec         = "libx264"
	defaultAudioCodec         = "aac"
	defaultMaxDurationSeconds = 30
	defaultWatermarkPath      = "~/.config/vidmerge/watermark.png"
	defaultWatermarkScale     = 0.1
	defaultWatermarkMargin    = 16
	defaultStaleAfterHours    = 24
	defaultLogFormat          = "auto"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 14
	defaultNotifyTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			LedgerPath: defaultLedgerPath,
		},
		Server: Server{
			Bind:                     defaultBind,
			MaxUploadMiB:             defaultMaxUploadMiB,
			ReadHeaderTimeoutSeconds: defaultReadHeaderTimeout,
			ShutdownTimeoutSeconds:   defaultShutdownTimeout,
		},
		Store: Store{
			Backend: StoreBackendFS,
			FSRoot:  defaultFSRoot,
		},
		Encoder: Encoder{
			FFmpegBinary:       defaultFFmpegBinary,
			FFprobeBinary:      defaultFFprobeBinary,
			VideoCodec:         defaultVideoCodec,
			AudioCodec:         defaultAudioCodec,
			MaxDurationSeconds: defaultMaxDurationSeconds,
			WatermarkPath:      defaultWatermarkPath,
			WatermarkScale:     defaultWatermarkScale,
			WatermarkMargin:    defaultWatermarkMargin,
		},
		Staging: Staging{
			StaleAfterHours: defaultStaleAfterHours,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
		},
	}
}
