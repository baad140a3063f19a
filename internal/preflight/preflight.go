package preflight

import (
	"context"

	"vidmerge/internal/artifact"
	"vidmerge/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every preflight check for cfg. The store check is skipped
// when store is nil.
func RunAll(ctx context.Context, cfg *config.Config, store artifact.Store) []Result {
	if cfg == nil {
		return nil
	}

	results := FromDeps(CheckSystemDeps(cfg))
	results = append(results,
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckWatermark(cfg.Encoder.WatermarkPath),
	)
	if cfg.Store.Backend == config.StoreBackendFS {
		results = append(results, CheckDirectoryAccess("Store root", cfg.Store.FSRoot))
	}
	if store != nil {
		results = append(results, CheckStore(ctx, cfg.Store.Backend, store))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
