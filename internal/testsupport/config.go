package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"vidmerge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "state", "ledger.db")
	cfgVal.Store.Backend = config.StoreBackendFS
	cfgVal.Store.FSRoot = filepath.Join(base, "store")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Encoder.WatermarkPath = filepath.Join(base, "watermark.png")
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWatermark writes a placeholder watermark asset at the configured path.
func WithWatermark() ConfigOption {
	return func(b *configBuilder) {
		WriteFile(b.t, b.cfg.Encoder.WatermarkPath, 64)
	}
}

// WithDirectories creates every directory the config references.
func WithDirectories() ConfigOption {
	return func(b *configBuilder) {
		if err := b.cfg.EnsureDirectories(); err != nil {
			b.t.Fatalf("ensure directories: %v", err)
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}
