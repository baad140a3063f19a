package staging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidmerge/internal/logging"
)

func TestBeginCreatesPrefixedLockedRun(t *testing.T) {
	area := NewArea(t.TempDir(), logging.NewNop())
	run, err := area.Begin(context.Background(), PrefixDownload)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer run.Close()

	if !strings.HasPrefix(run.ID(), "download-") {
		t.Fatalf("unexpected run id %q", run.ID())
	}
	if filepath.Dir(run.Dir()) != area.Root() {
		t.Fatalf("run dir %q not under root %q", run.Dir(), area.Root())
	}
	if !isLive(run.Dir()) {
		t.Fatal("expected run lock to be held")
	}
}

func TestRunsAreDistinct(t *testing.T) {
	area := NewArea(t.TempDir(), logging.NewNop())
	a, err := area.Begin(context.Background(), PrefixMerge)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := area.Begin(context.Background(), PrefixMerge)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if a.Dir() == b.Dir() || a.Path("0.mp4") == b.Path("0.mp4") {
		t.Fatal("concurrent runs must not share paths")
	}
}

func TestCloseRemovesEverythingAndIsIdempotent(t *testing.T) {
	area := NewArea(t.TempDir(), logging.NewNop())
	run, err := area.Begin(context.Background(), PrefixMerge)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"0.mp4", "1.mp4", "joined.mp4"} {
		if err := os.WriteFile(run.Path(name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := run.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(run.Dir()); !os.IsNotExist(err) {
		t.Fatalf("expected run dir removed, stat err=%v", err)
	}
	if err := run.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestPathStripsDirectories(t *testing.T) {
	area := NewArea(t.TempDir(), logging.NewNop())
	run, err := area.Begin(context.Background(), PrefixUpload)
	if err != nil {
		t.Fatal(err)
	}
	defer run.Close()
	if got := run.Path("../../escape.mp4"); filepath.Dir(got) != run.Dir() {
		t.Fatalf("path escaped run dir: %q", got)
	}
}

func TestReleaseRemovesSingleFile(t *testing.T) {
	area := NewArea(t.TempDir(), logging.NewNop())
	run, err := area.Begin(context.Background(), PrefixMerge)
	if err != nil {
		t.Fatal(err)
	}
	defer run.Close()
	path := run.Path("0.mp4")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	run.Release(context.Background(), path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected file released")
	}
	run.Release(context.Background(), path)
}

func TestBeginWithoutRoot(t *testing.T) {
	if _, err := NewArea("", nil).Begin(context.Background(), PrefixMerge); err == nil {
		t.Fatal("expected error without staging root")
	}
}
