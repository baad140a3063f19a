package artifact

import (
	"context"
	"sync"

	"vidmerge/internal/services"
	"vidmerge/internal/videoid"
)

// Presence records which tiers hold an id.
type Presence struct {
	ID       videoid.ID
	Uploaded bool
	Merged   bool
}

// Absent reports whether the id is in neither tier.
func (p Presence) Absent() bool { return !p.Uploaded && !p.Merged }

// Resolve probes every id in every tier concurrently and waits for all probes
// before returning. Presences are returned in argument order. When any probe
// fails, the first failure in (id, tier) order is returned as
// services.KindStorageUnavailable.
func Resolve(ctx context.Context, store Store, ids ...videoid.ID) ([]Presence, error) {
	type probe struct {
		found bool
		err   error
	}
	results := make([][]probe, len(ids))
	for i := range results {
		results[i] = make([]probe, len(Tiers))
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		for j, tier := range Tiers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				found, err := store.Exists(ctx, tier, id)
				results[i][j] = probe{found: found, err: err}
			}()
		}
	}
	wg.Wait()

	presences := make([]Presence, len(ids))
	for i, id := range ids {
		presences[i].ID = id
		for j, tier := range Tiers {
			r := results[i][j]
			if r.err != nil {
				if services.KindOf(r.err) == services.KindStorageUnavailable {
					return nil, r.err
				}
				return nil, services.Wrap(services.KindStorageUnavailable, "resolve", "exists", Key(tier, id), r.err)
			}
			switch tier {
			case TierUploaded:
				presences[i].Uploaded = r.found
			case TierMerged:
				presences[i].Merged = r.found
			}
		}
	}
	return presences, nil
}
