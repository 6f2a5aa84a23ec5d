package ledger

import (
	"context"
	"fmt"

	"slackscribe/internal/config"
)

// Open builds the backend selected by cfg.Ledger.Driver with the configured
// retention window. Extra options are applied after the configured ones.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("open ledger: config is nil")
	}
	all := append([]Option{WithTTL(cfg.LedgerTTL())}, opts...)
	switch cfg.Ledger.Driver {
	case config.LedgerDriverSQLite, "":
		return OpenSQLite(cfg.Ledger.Path, all...)
	case config.LedgerDriverPostgres:
		return OpenPostgres(ctx, cfg.Ledger.DSN, all...)
	case config.LedgerDriverMemory:
		return NewMemory(all...), nil
	default:
		return nil, fmt.Errorf("open ledger: unsupported driver %q", cfg.Ledger.Driver)
	}
}
