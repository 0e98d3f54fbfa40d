package libs

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPgConnection opens a pooled connection to the record-log Postgres
// database, used by pkg/log/store's tests.
func NewPgConnection(ctx context.Context, databaseURL string) (pool *pgxpool.Pool, err error) {
	pool, err = pgxpool.New(ctx, databaseURL)
	return
}
