package artifact_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vidmerge/internal/artifact"
	"vidmerge/internal/logging"
	"vidmerge/internal/services"
	"vidmerge/internal/testsupport"
	"vidmerge/internal/videoid"
)

func TestKeyFormat(t *testing.T) {
	id := videoid.ID("3f2b8c1e-9a4d-4e2f-8b6a-1c2d3e4f5a6b")
	if got := artifact.Key(artifact.TierMerged, id); got != "merged/3f2b8c1e-9a4d-4e2f-8b6a-1c2d3e4f5a6b.mp4" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestSniffFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.mp4")
	testsupport.WriteFakeMP4(t, good, "payload")
	if err := artifact.SniffFile(good); err != nil {
		t.Fatalf("expected mp4 to pass sniffing: %v", err)
	}

	bad := filepath.Join(dir, "bad.mp4")
	if err := os.WriteFile(bad, []byte("<html>nope</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := artifact.SniffFile(bad); !errors.Is(err, services.KindInvalidArtifact) {
		t.Fatalf("expected invalid artifact, got %v", err)
	}
}

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := artifact.NewFSStore(t.TempDir(), logging.NewNop())
	id := videoid.New()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	testsupport.WriteFakeMP4(t, src, "round-trip")

	if ok, err := store.Exists(ctx, artifact.TierUploaded, id); err != nil || ok {
		t.Fatalf("expected absent before upload, got %v %v", ok, err)
	}
	if err := store.Upload(ctx, src, artifact.TierUploaded, id); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ok, err := store.Exists(ctx, artifact.TierUploaded, id); err != nil || !ok {
		t.Fatalf("expected present after upload, got %v %v", ok, err)
	}
	if ok, _ := store.Exists(ctx, artifact.TierMerged, id); ok {
		t.Fatal("upload must not leak into another tier")
	}

	dst := filepath.Join(dir, "dst.mp4")
	if err := store.Download(ctx, artifact.TierUploaded, id, dst); err != nil {
		t.Fatalf("Download: %v", err)
	}
	want, _ := os.ReadFile(src)
	got, _ := os.ReadFile(dst)
	if !bytes.Equal(want, got) {
		t.Fatal("downloaded bytes differ from upload")
	}
}

func TestFSStoreDownloadMissingIsNotFound(t *testing.T) {
	store := artifact.NewFSStore(t.TempDir(), logging.NewNop())
	err := store.Download(context.Background(), artifact.TierUploaded, videoid.New(), filepath.Join(t.TempDir(), "x.mp4"))
	if !errors.Is(err, services.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFSStoreUploadRejectsNonVideo(t *testing.T) {
	root := t.TempDir()
	store := artifact.NewFSStore(root, logging.NewNop())
	src := filepath.Join(t.TempDir(), "text.mp4")
	if err := os.WriteFile(src, []byte("plain text"), 0o644); err != nil {
		t.Fatal(err)
	}
	id := videoid.New()
	if err := store.Upload(context.Background(), src, artifact.TierUploaded, id); !errors.Is(err, services.KindInvalidArtifact) {
		t.Fatalf("expected invalid artifact, got %v", err)
	}
	if ok, _ := store.Exists(context.Background(), artifact.TierUploaded, id); ok {
		t.Fatal("rejected upload must not be stored")
	}
}

func TestFSStoreCheck(t *testing.T) {
	store := artifact.NewFSStore(t.TempDir(), nil)
	if err := store.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	missing := artifact.NewFSStore(filepath.Join(t.TempDir(), "missing"), nil)
	if err := missing.Check(context.Background()); err == nil {
		t.Fatal("expected missing root to fail")
	}
}

func TestResolveProbesBothTiersForEveryID(t *testing.T) {
	store := artifact.NewMemoryStore()
	uploaded, merged, both, absent := videoid.New(), videoid.New(), videoid.New(), videoid.New()
	store.Put(artifact.TierUploaded, uploaded, []byte("u"))
	store.Put(artifact.TierMerged, merged, []byte("m"))
	store.Put(artifact.TierUploaded, both, []byte("u"))
	store.Put(artifact.TierMerged, both, []byte("m"))

	presences, err := artifact.Resolve(context.Background(), store, uploaded, merged, both, absent)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if store.Probes() != 8 {
		t.Fatalf("expected 8 probes, got %d", store.Probes())
	}
	want := []artifact.Presence{
		{ID: uploaded, Uploaded: true},
		{ID: merged, Merged: true},
		{ID: both, Uploaded: true, Merged: true},
		{ID: absent},
	}
	for i := range want {
		if presences[i] != want[i] {
			t.Fatalf("presence %d = %+v, want %+v", i, presences[i], want[i])
		}
	}
	if !presences[3].Absent() || presences[0].Absent() {
		t.Fatal("Absent misreports")
	}
}

func TestResolveSurfacesProbeFailure(t *testing.T) {
	store := artifact.NewMemoryStore()
	store.ExistsErr = errors.New("connection reset")

	_, err := artifact.Resolve(context.Background(), store, videoid.New(), videoid.New())
	if !errors.Is(err, services.KindStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	if store.Probes() != 4 {
		t.Fatalf("expected every probe to finish, got %d", store.Probes())
	}
}

func TestMemoryStoreDownloadMissing(t *testing.T) {
	store := artifact.NewMemoryStore()
	err := store.Download(context.Background(), artifact.TierMerged, videoid.New(), filepath.Join(t.TempDir(), "x"))
	if !errors.Is(err, services.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
