package db

import (
	"context"
	"fmt"
)

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMPTZ NOT NULL,
	distance_m       DOUBLE PRECISION NOT NULL,
	duration_sec     INTEGER NOT NULL,
	elevation_gain_m DOUBLE PRECISION NOT NULL DEFAULT 0,
	splits           JSONB NOT NULL DEFAULT '[]',
	path             JSONB NOT NULL DEFAULT '[]',
	altitudes        JSONB NOT NULL DEFAULT '[]',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at DESC);
`

// EnsureSchema creates the tables the history store needs.
func EnsureSchema(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, runsSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
