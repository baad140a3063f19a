package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidmerge/internal/artifact"
	"vidmerge/internal/config"
	"vidmerge/internal/deps"
	"vidmerge/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWatermark(t *testing.T) {
	dir := t.TempDir()
	asset := filepath.Join(dir, "watermark.png")
	testsupport.WriteFile(t, asset, 32)

	if result := CheckWatermark(asset); !result.Passed {
		t.Fatalf("expected pass, got %s", result.Detail)
	}
	if result := CheckWatermark(filepath.Join(dir, "missing.png")); result.Passed {
		t.Fatal("expected failure for missing asset")
	}
	if result := CheckWatermark(dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
}

type checkingStore struct {
	*artifact.MemoryStore
	err error
}

func (s checkingStore) Check(context.Context) error { return s.err }

func TestCheckStore(t *testing.T) {
	if result := CheckStore(context.Background(), "memory", artifact.NewMemoryStore()); !result.Passed {
		t.Fatal("stores without Check should pass")
	}
	ok := checkingStore{MemoryStore: artifact.NewMemoryStore()}
	if result := CheckStore(context.Background(), "s3", ok); !result.Passed || result.Name != "Store (s3)" {
		t.Fatalf("unexpected result %+v", result)
	}
	down := checkingStore{MemoryStore: artifact.NewMemoryStore(), err: errors.New("no such bucket")}
	if result := CheckStore(context.Background(), "s3", down); result.Passed || !strings.Contains(result.Detail, "no such bucket") {
		t.Fatalf("unexpected result %+v", result)
	}
	slow := checkingStore{MemoryStore: artifact.NewMemoryStore(), err: context.DeadlineExceeded}
	if result := CheckStore(context.Background(), "s3", slow); result.Passed || !strings.Contains(result.Detail, "timed out") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestFromDeps(t *testing.T) {
	results := FromDeps([]deps.Status{
		{Name: "FFmpeg", Command: "/usr/bin/ffmpeg", Available: true},
		{Name: "FFprobe", Detail: `binary "ffprobe" not found`},
		{Name: "extra", Optional: true},
	})
	if !results[0].Passed || results[0].Detail != "/usr/bin/ffmpeg" {
		t.Fatalf("unexpected %+v", results[0])
	}
	if results[1].Passed {
		t.Fatal("missing required binary must fail")
	}
	if !results[2].Passed {
		t.Fatal("optional binary must not fail preflight")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReadyConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithDirectories(),
		testsupport.WithWatermark(),
		testsupport.WithStubbedBinaries(),
	)
	store := artifact.NewFSStore(cfg.Store.FSRoot, nil)

	results := RunAll(context.Background(), cfg, store)
	// ffmpeg, ffprobe, staging, logs, watermark, store root, store
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_ReportsMissingPieces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Store.Backend = config.StoreBackendS3
	cfg.Encoder.FFmpegBinary = "vidmerge-missing-ffmpeg"
	cfg.Encoder.FFprobeBinary = "vidmerge-missing-ffprobe"

	failed := Failed(RunAll(context.Background(), cfg, nil))
	names := make([]string, 0, len(failed))
	for _, r := range failed {
		names = append(names, r.Name)
	}
	want := []string{"FFmpeg", "FFprobe", "Staging directory", "Log directory", "Watermark"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("failed checks = %v, want %v", names, want)
	}
}
