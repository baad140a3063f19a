package testsupport

import (
	"testing"

	"vidmerge/internal/config"
	"vidmerge/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.OpenFromConfig(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
