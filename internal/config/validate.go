package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Staging.StaleAfterHours < 0 {
		return errors.New("staging.stale_after_hours must be >= 0")
	}
	if c.Notifications.NtfyTopic != "" && c.Notifications.RequestTimeoutSeconds <= 0 {
		return errors.New("notifications.request_timeout_seconds must be positive when ntfy_topic is set")
	}
	return nil
}

func (c *Config) validateServer() error {
	if !strings.Contains(c.Server.Bind, ":") {
		return fmt.Errorf("server.bind must be host:port, got %q", c.Server.Bind)
	}
	if c.Server.MaxUploadMiB <= 0 {
		return errors.New("server.max_upload_mib must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreBackendFS:
		if c.Store.FSRoot == "" {
			return errors.New("store.fs_root must be set when store.backend is \"fs\"")
		}
	case StoreBackendS3:
		if c.Store.S3Bucket == "" {
			return errors.New("store.s3_bucket must be set when store.backend is \"s3\" (or export S3_BUCKET_NAME)")
		}
	default:
		return fmt.Errorf("store.backend: unsupported value %q (want \"fs\" or \"s3\")", c.Store.Backend)
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if c.Encoder.MaxDurationSeconds <= 0 {
		return errors.New("encoder.max_duration_seconds must be positive")
	}
	if c.Encoder.WatermarkScale <= 0 || c.Encoder.WatermarkScale > 1 {
		return errors.New("encoder.watermark_scale must be in (0, 1]")
	}
	if c.Encoder.WatermarkMargin < 0 {
		return errors.New("encoder.watermark_margin must be >= 0")
	}
	if c.Encoder.TimeoutSeconds < 0 {
		return errors.New("encoder.timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
