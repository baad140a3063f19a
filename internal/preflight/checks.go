package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"vidmerge/internal/artifact"
	"vidmerge/internal/config"
	"vidmerge/internal/deps"
)

// storeCheckTimeout bounds the store reachability probe.
const storeCheckTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWatermark verifies the overlay asset is a readable regular file.
func CheckWatermark(path string) Result {
	const name = "Watermark"
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: unreadable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d bytes)", path, info.Size())}
}

// CheckStore verifies the artifact store backend is reachable. Stores that
// cannot check themselves pass with a note.
func CheckStore(ctx context.Context, backend string, store artifact.Store) Result {
	name := "Store (" + backend + ")"
	checker, ok := store.(artifact.Checker)
	if !ok {
		return Result{Name: name, Passed: true, Detail: "no reachability check available"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()
	if err := checker.Check(checkCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Name: name, Detail: "check timed out (store unresponsive)"}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckSystemDeps evaluates the encoder binaries for the given config. Both
// serve and status use this to avoid duplicating the requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.EncoderRequirements(cfg))
}

// FromDeps converts dependency statuses into results.
func FromDeps(statuses []deps.Status) []Result {
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name, Passed: status.Available || status.Optional}
		switch {
		case status.Available:
			result.Detail = status.Command
		case status.Detail != "":
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}
