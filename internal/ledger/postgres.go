package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const postgresPingTimeout = 10 * time.Second

// OpenPostgres connects to a shared Postgres ledger. Claims stay atomic
// across hosts because the conditional upsert is evaluated under the row lock.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("open postgres ledger: dsn is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &SQLStore{
		db: db,
		dialect: dialect{
			name:              "postgres",
			schema:            postgresSchemaSQL,
			versionTableQuery: "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'ledger_schema_version'",
			numbered:          true,
		},
		opts:   buildOptions(opts),
		target: "postgres",
	}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
