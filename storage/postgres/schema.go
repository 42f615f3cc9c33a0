package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS fieldcheck_records (
	namespace   TEXT        NOT NULL,
	record_type TEXT        NOT NULL,
	record_id   TEXT        NOT NULL,
	data        BYTEA       NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (namespace, record_type, record_id)
);

CREATE INDEX IF NOT EXISTS idx_fieldcheck_records_type
	ON fieldcheck_records (namespace, record_type);
`

// EnsureSchema creates the records table if it does not already exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
