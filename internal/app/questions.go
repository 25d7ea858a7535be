package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"reading-quiz-service/internal/domain"
)

// QuestionSource yields the question snapshot a session plays through.
type QuestionSource interface {
	LoadQuestions(ctx context.Context) (domain.QuestionSet, error)
}

// QuestionRepository reads the three collections from a backing store (document DB, Postgres, ...).
type QuestionRepository interface {
	MultipleChoice(ctx context.Context) ([]domain.MultipleChoiceItem, error)
	FreeText(ctx context.Context) ([]domain.FreeTextItem, error)
	Audio(ctx context.Context) ([]domain.AudioItem, error)
}

// BulkLoader fetches the three collections concurrently; any failure fails the whole load.
type BulkLoader struct {
	repo QuestionRepository
}

func NewBulkLoader(repo QuestionRepository) *BulkLoader {
	return &BulkLoader{repo: repo}
}

func (l *BulkLoader) LoadQuestions(ctx context.Context) (domain.QuestionSet, error) {
	var set domain.QuestionSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := l.repo.MultipleChoice(gctx)
		if err != nil {
			return fmt.Errorf("multiple-choice questions: %w", err)
		}
		set.MultipleChoice = items
		return nil
	})
	g.Go(func() error {
		items, err := l.repo.FreeText(gctx)
		if err != nil {
			return fmt.Errorf("free-text questions: %w", err)
		}
		set.FreeText = items
		return nil
	})
	g.Go(func() error {
		items, err := l.repo.Audio(gctx)
		if err != nil {
			return fmt.Errorf("audio questions: %w", err)
		}
		set.Audio = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.QuestionSet{}, fmt.Errorf("%w: %v", domain.ErrQuestionsUnavailable, err)
	}
	return set, nil
}

// TextEvaluator scores a free-text answer. Implementations never fail: on error they
// return domain.FallbackTextEvaluation.
type TextEvaluator interface {
	EvaluateText(ctx context.Context, req domain.TextEvaluationRequest) domain.TextEvaluation
}

// AudioEvaluator scores a recording. Implementations never fail: on error they
// return domain.FallbackAudioEvaluation.
type AudioEvaluator interface {
	EvaluateAudio(ctx context.Context, req domain.AudioEvaluationRequest) domain.AudioEvaluation
}

// ScoreStore persists a learner's final results.
type ScoreStore interface {
	SaveScore(ctx context.Context, userID string, results domain.FinalResults) error
}
