package app

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"reading-quiz-service/internal/domain"
)

// evaluationOutcome is what a resolved pending evaluation contributes to aggregation.
// seq records completion order across the session.
type evaluationOutcome struct {
	kind  domain.Section
	seq   uint64
	text  domain.TextEvaluation
	audio domain.AudioEvaluation
}

func (o evaluationOutcome) degraded() bool {
	if o.kind == domain.SectionAudio {
		return o.audio.Degraded
	}
	return o.text.Degraded
}

// pendingEvaluation is a future resolved exactly once by its dispatching goroutine.
type pendingEvaluation struct {
	kind    domain.Section
	done    chan struct{}
	outcome evaluationOutcome
}

// dispatchEvaluation runs eval in the background. A panicking evaluator resolves to the
// section's fallback so the future is never left unresolved.
func dispatchEvaluation(ctx context.Context, kind domain.Section, seq *atomic.Uint64, log logrus.FieldLogger, eval func(context.Context) evaluationOutcome) *pendingEvaluation {
	p := &pendingEvaluation{kind: kind, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				log.WithField("section", kind).Errorf("evaluation panicked: %v", r)
				p.outcome = fallbackOutcome(kind)
			}
			p.outcome.kind = kind
			p.outcome.seq = seq.Add(1)
		}()
		p.outcome = eval(ctx)
	}()
	return p
}

func fallbackOutcome(kind domain.Section) evaluationOutcome {
	if kind == domain.SectionAudio {
		return evaluationOutcome{kind: kind, audio: domain.FallbackAudioEvaluation()}
	}
	return evaluationOutcome{kind: kind, text: domain.FallbackTextEvaluation()}
}

// awaitAll joins every pending evaluation. It only fails when ctx ends first.
func awaitAll(ctx context.Context, pending []*pendingEvaluation) ([]evaluationOutcome, error) {
	outcomes := make([]evaluationOutcome, 0, len(pending))
	for _, p := range pending {
		select {
		case <-p.done:
			outcomes = append(outcomes, p.outcome)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return outcomes, nil
}
