package artifact

import (
	"context"
	"io"
	"net/http"
	"os"

	"vidmerge/internal/services"
	"vidmerge/internal/videoid"
)

// Tier partitions stored videos by provenance.
type Tier string

const (
	TierUploaded Tier = "uploaded"
	TierMerged   Tier = "merged"
)

// Tiers lists every tier in probe order.
var Tiers = []Tier{TierUploaded, TierMerged}

// ContentType is the only media type the stores accept.
const ContentType = "video/mp4"

const stageStore = "store"

// Key returns the object key for (tier, id).
func Key(tier Tier, id videoid.ID) string {
	return string(tier) + "/" + string(id) + ".mp4"
}

// Store is the persistent video store.
type Store interface {
	// Exists probes for (tier, id). Absence is (false, nil).
	Exists(ctx context.Context, tier Tier, id videoid.ID) (bool, error)
	// Download writes the artifact to dst. A missing artifact is
	// services.KindNotFound.
	Download(ctx context.Context, tier Tier, id videoid.ID, dst string) error
	// Upload stores the file at src under (tier, id).
	Upload(ctx context.Context, src string, tier Tier, id videoid.ID) error
}

// Checker is implemented by stores that can verify their backend is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// SniffFile rejects files whose leading bytes are not an MP4 container.
func SniffFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.KindInvalidArtifact, stageStore, "sniff", "open upload source", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return services.Wrap(services.KindInvalidArtifact, stageStore, "sniff", "read upload source", err)
	}
	if detected := http.DetectContentType(head[:n]); detected != ContentType {
		return services.Wrap(services.KindInvalidArtifact, stageStore, "sniff", "content is "+detected+", not "+ContentType, nil)
	}
	return nil
}
