package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	// LedgerPath is the sqlite database recording merge outcomes.
	LedgerPath string `toml:"ledger_path"`
}

// Server contains HTTP listener settings.
type Server struct {
	Bind                     string `toml:"bind"`
	MaxUploadMiB             int    `toml:"max_upload_mib"`
	ReadHeaderTimeoutSeconds int    `toml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int    `toml:"shutdown_timeout_seconds"`
}

// Store selects and configures the artifact store backend.
type Store struct {
	Backend string `toml:"backend"` // "fs" or "s3"
	FSRoot  string `toml:"fs_root"`

	S3Bucket       string `toml:"s3_bucket"`
	S3Region       string `toml:"s3_region"`
	S3Endpoint     string `toml:"s3_endpoint"`
	S3Prefix       string `toml:"s3_prefix"`
	S3UsePathStyle bool   `toml:"s3_use_path_style"`
}

// Encoder configures the ffmpeg/ffprobe adapter and the merge transform chain.
type Encoder struct {
	FFmpegBinary       string  `toml:"ffmpeg_binary"`
	FFprobeBinary      string  `toml:"ffprobe_binary"`
	VideoCodec         string  `toml:"video_codec"`
	AudioCodec         string  `toml:"audio_codec"`
	MaxDurationSeconds int     `toml:"max_duration_seconds"`
	WatermarkPath      string  `toml:"watermark_path"`
	WatermarkScale     float64 `toml:"watermark_scale"`
	WatermarkMargin    int     `toml:"watermark_margin"`
	// TimeoutSeconds bounds every external process; 0 disables the bound.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Staging contains scratch-space housekeeping settings.
type Staging struct {
	StaleAfterHours int `toml:"stale_after_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications configures ntfy alerts for merge outcomes. An empty topic
// disables them.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	NotifyPublished       bool   `toml:"notify_published"`
}

// Config encapsulates all configuration values for vidmerge.
//
// Configuration sections by subsystem:
//   - Paths: staging, logs and the merge ledger
//   - Server: HTTP bind address and limits
//   - Store: artifact store backend (filesystem or S3)
//   - Encoder: ffmpeg binaries, codecs, watermark and duration cap
//   - Staging: stale scratch directory sweep
//   - Logging: log format and level
//   - Notifications: ntfy alerts for failed merges
type Config struct {
	Paths   Paths   `toml:"paths"`
	Server  Server  `toml:"server"`
	Store   Store   `toml:"store"`
	Encoder Encoder `toml:"encoder"`
	Staging Staging `toml:"staging"`
	Logging Logging `toml:"logging"`

	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidmerge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidmerge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for server operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.LogDir, filepath.Dir(c.Paths.LedgerPath)}
	if c.Store.Backend == StoreBackendFS {
		dirs = append(dirs, c.Store.FSRoot)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogFile returns the path of the active server log file.
func (c *Config) LogFile() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "vidmerge.log")
}

// NotifyTimeout returns the per-request ntfy timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// MaxDuration returns the merge truncation cap.
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Encoder.MaxDurationSeconds) * time.Second
}

// ProcessTimeout returns the wall-clock bound for external processes, or 0.
func (c *Config) ProcessTimeout() time.Duration {
	if c.Encoder.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Encoder.TimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the request body limit for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMiB) << 20
}

// StaleAfter returns the age after which abandoned staging runs are swept.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Staging.StaleAfterHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
