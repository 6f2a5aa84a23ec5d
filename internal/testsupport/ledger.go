package testsupport

import (
	"context"
	"testing"

	"slackscribe/internal/config"
	"slackscribe/internal/ledger"
)

// MustOpenLedger opens the ledger selected by cfg and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config, opts ...ledger.Option) ledger.Store {
	t.Helper()

	store, err := ledger.Open(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
