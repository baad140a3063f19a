package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	if err := c.normalizeStore(); err != nil {
		return err
	}
	if err := c.normalizeEncoder(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" {
		c.Paths.LedgerPath = defaultLedgerPath
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if port, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(port) != "" {
		c.Server.Bind = ":" + strings.TrimSpace(port)
	}
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if c.Server.ReadHeaderTimeoutSeconds <= 0 {
		c.Server.ReadHeaderTimeoutSeconds = defaultReadHeaderTimeout
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = defaultShutdownTimeout
	}
}

func (c *Config) normalizeStore() error {
	if value, ok := os.LookupEnv("VIDMERGE_STORE_BACKEND"); ok && strings.TrimSpace(value) != "" {
		c.Store.Backend = value
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendFS
	}
	if strings.TrimSpace(c.Store.FSRoot) == "" {
		c.Store.FSRoot = defaultFSRoot
	}
	var err error
	if c.Store.FSRoot, err = expandPath(c.Store.FSRoot); err != nil {
		return fmt.Errorf("store.fs_root: %w", err)
	}
	if c.Store.S3Bucket == "" {
		if value, ok := os.LookupEnv("S3_BUCKET_NAME"); ok {
			c.Store.S3Bucket = strings.TrimSpace(value)
		}
	}
	c.Store.S3Region = strings.TrimSpace(c.Store.S3Region)
	c.Store.S3Endpoint = strings.TrimRight(strings.TrimSpace(c.Store.S3Endpoint), "/")
	c.Store.S3Prefix = strings.Trim(strings.TrimSpace(c.Store.S3Prefix), "/")
	return nil
}

func (c *Config) normalizeEncoder() error {
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.FFmpegBinary == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoder.FFprobeBinary = strings.TrimSpace(c.Encoder.FFprobeBinary)
	if c.Encoder.FFprobeBinary == "" {
		c.Encoder.FFprobeBinary = defaultFFprobeBinary
	}
	c.Encoder.VideoCodec = strings.TrimSpace(c.Encoder.VideoCodec)
	if c.Encoder.VideoCodec == "" {
		c.Encoder.VideoCodec = defaultVideoCodec
	}
	c.Encoder.AudioCodec = strings.TrimSpace(c.Encoder.AudioCodec)
	if c.Encoder.AudioCodec == "" {
		c.Encoder.AudioCodec = defaultAudioCodec
	}
	if strings.TrimSpace(c.Encoder.WatermarkPath) != "" {
		var err error
		if c.Encoder.WatermarkPath, err = expandPath(c.Encoder.WatermarkPath); err != nil {
			return fmt.Errorf("encoder.watermark_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
