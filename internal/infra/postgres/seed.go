package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
	"gopkg.in/yaml.v3"

	"reading-quiz-service/internal/domain"
	pgmigrations "reading-quiz-service/internal/infra/postgres/migrations"
)

// Bank is a question bank file: raw documents per collection, in play order.
type Bank struct {
	MultipleChoice []domain.Document `yaml:"qcm_questions"`
	FreeText       []domain.Document `yaml:"input_questions"`
	Audio          []domain.Document `yaml:"audio_questions"`
}

// LoadBank reads a YAML question bank.
func LoadBank(path string) (Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bank{}, err
	}
	var bank Bank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return Bank{}, fmt.Errorf("parse bank %s: %w", path, err)
	}
	return bank, nil
}

// Migrate applies every registered migration.
func Migrate(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, err
	}
	return migrator.Migrate(ctx)
}

// Seed upserts the bank's documents. Documents without an id get "<table>-<n>".
func Seed(ctx context.Context, db *bun.DB, bank Bank) (int, error) {
	total := 0
	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, set := range []struct {
			table string
			docs  []domain.Document
		}{
			{MultipleChoiceTable, bank.MultipleChoice},
			{FreeTextTable, bank.FreeText},
			{AudioTable, bank.Audio},
		} {
			for i, doc := range set.docs {
				id := seedID(doc, set.table, i)
				data, err := json.Marshal(doc)
				if err != nil {
					return fmt.Errorf("marshal %s/%s: %w", set.table, id, err)
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO ? (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
					bun.Ident(set.table), id, string(data)); err != nil {
					return fmt.Errorf("insert %s/%s: %w", set.table, id, err)
				}
				total++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func seedID(doc domain.Document, table string, i int) string {
	for _, key := range []string{"_id", "id"} {
		if v, ok := doc[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return fmt.Sprintf("%s-%d", table, i+1)
}
