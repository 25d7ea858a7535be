package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

const createUsersSQL = `CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	score JSONB,
	status TEXT NOT NULL DEFAULT 'Not Started',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createUsersSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS users`)
			return err
		},
	)
}
