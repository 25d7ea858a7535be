package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

var questionTables = []string{"qcm_questions", "input_questions", "audio_questions"}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			for _, table := range questionTables {
				if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
	id TEXT PRIMARY KEY,
	position BIGSERIAL,
	data JSONB NOT NULL
)`); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, table := range questionTables {
				if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
					return err
				}
			}
			return nil
		},
	)
}
