package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"reading-quiz-service/internal/domain"
)

// Question collection tables. Each row keeps the raw document as JSONB.
const (
	MultipleChoiceTable = "qcm_questions"
	FreeTextTable       = "input_questions"
	AudioTable          = "audio_questions"
)

// QuestionLoader reads question documents from Postgres and normalizes them.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) MultipleChoice(ctx context.Context) ([]domain.MultipleChoiceItem, error) {
	docs, err := l.documents(ctx, MultipleChoiceTable)
	if err != nil {
		return nil, err
	}
	items := make([]domain.MultipleChoiceItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, domain.NormalizeMultipleChoice(doc))
	}
	return items, nil
}

func (l *QuestionLoader) FreeText(ctx context.Context) ([]domain.FreeTextItem, error) {
	docs, err := l.documents(ctx, FreeTextTable)
	if err != nil {
		return nil, err
	}
	items := make([]domain.FreeTextItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, domain.NormalizeFreeText(doc))
	}
	return items, nil
}

func (l *QuestionLoader) Audio(ctx context.Context) ([]domain.AudioItem, error) {
	docs, err := l.documents(ctx, AudioTable)
	if err != nil {
		return nil, err
	}
	items := make([]domain.AudioItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, domain.NormalizeAudio(doc))
	}
	return items, nil
}

// documents returns the table's rows in insertion order. The row id fills in a missing _id.
func (l *QuestionLoader) documents(ctx context.Context, table string) ([]domain.Document, error) {
	rows, err := l.pool.Query(ctx, fmt.Sprintf(`SELECT id, data FROM %s ORDER BY position`, table))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		var doc domain.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal %s/%s: %w", table, id, err)
		}
		if doc == nil {
			doc = domain.Document{}
		}
		if _, ok := doc["_id"]; !ok {
			doc["_id"] = id
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return docs, nil
}
