package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS log_collection (
	id TEXT PRIMARY KEY,
	record_enumeration_offset_position BIGINT NOT NULL DEFAULT 0,
	record_compaction_offset_position BIGINT NOT NULL DEFAULT 0,
	is_sealed BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS record_log (
	collection_id TEXT NOT NULL,
	"offset" BIGINT NOT NULL,
	op SMALLINT NOT NULL,
	record_id TEXT NOT NULL,
	embedding BYTEA,
	document TEXT,
	metadata_patch_json TEXT,
	timestamp BIGINT NOT NULL,
	PRIMARY KEY (collection_id, "offset")
);
`

// Migrate creates the log tables if they do not already exist. Called once
// at server startup in distributed mode.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaDDL)
	return err
}
