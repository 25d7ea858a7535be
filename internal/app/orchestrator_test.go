package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reading-quiz-service/internal/app"
	"reading-quiz-service/internal/domain"
	"reading-quiz-service/internal/infra/memory"
	"reading-quiz-service/internal/logging"
)

type textFunc func(ctx context.Context, req domain.TextEvaluationRequest) domain.TextEvaluation

func (f textFunc) EvaluateText(ctx context.Context, req domain.TextEvaluationRequest) domain.TextEvaluation {
	return f(ctx, req)
}

type audioFunc func(ctx context.Context, req domain.AudioEvaluationRequest) domain.AudioEvaluation

func (f audioFunc) EvaluateAudio(ctx context.Context, req domain.AudioEvaluationRequest) domain.AudioEvaluation {
	return f(ctx, req)
}

func fixedText(score float64) textFunc {
	return func(context.Context, domain.TextEvaluationRequest) domain.TextEvaluation {
		return domain.TextEvaluation{Score: score, Feedback: "fine"}
	}
}

func fixedAudio(pron, acc float64, feedback string) audioFunc {
	return func(context.Context, domain.AudioEvaluationRequest) domain.AudioEvaluation {
		return domain.AudioEvaluation{PronunciationScore: pron, AccuracyScore: acc, Feedback: feedback}
	}
}

type recordingScores struct {
	mu    sync.Mutex
	saved map[string]domain.FinalResults
	ch    chan string
}

func newRecordingScores() *recordingScores {
	return &recordingScores{saved: map[string]domain.FinalResults{}, ch: make(chan string, 4)}
}

func (s *recordingScores) SaveScore(_ context.Context, userID string, results domain.FinalResults) error {
	s.mu.Lock()
	s.saved[userID] = results
	s.mu.Unlock()
	s.ch <- userID
	return nil
}

func (s *recordingScores) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type failingSource struct{}

func (failingSource) LoadQuestions(context.Context) (domain.QuestionSet, error) {
	return domain.QuestionSet{}, domain.ErrQuestionsUnavailable
}

var learner = domain.User{ID: "u-learner", Username: "lea", Role: domain.RoleStudent}

func choices(n int) []domain.MultipleChoiceItem {
	items := make([]domain.MultipleChoiceItem, n)
	for i := range items {
		items[i] = domain.MultipleChoiceItem{
			ID:           string(rune('a' + i)),
			Prompt:       "Pick B",
			Choices:      []domain.Choice{{Label: "A", Text: "no"}, {Label: "B", Text: "yes"}},
			CorrectLabel: "B",
		}
	}
	return items
}

func passages(n int) []domain.FreeTextItem {
	items := make([]domain.FreeTextItem, n)
	for i := range items {
		items[i] = domain.FreeTextItem{ID: string(rune('t' + i)), Question: "Why?", Passage: "Because."}
	}
	return items
}

func recordings(n int) []domain.AudioItem {
	items := make([]domain.AudioItem, n)
	for i := range items {
		items[i] = domain.AudioItem{ID: string(rune('p' + i)), Passage: "Read me."}
	}
	return items
}

func newSession(t *testing.T, user domain.User, set domain.QuestionSet, deps app.Dependencies) *app.Orchestrator {
	t.Helper()
	deps.Questions = app.NewBulkLoader(memory.NewStaticQuestionRepository(set))
	if deps.Text == nil {
		deps.Text = fixedText(0)
	}
	if deps.Audio == nil {
		deps.Audio = fixedAudio(0, 0, "")
	}
	deps.Logger = logging.Discard()
	o := app.NewOrchestrator("s-1", user, deps)
	t.Cleanup(o.Close)
	if err := o.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return o
}

func waitResults(t *testing.T, o *app.Orchestrator) domain.FinalResults {
	t.Helper()
	select {
	case <-o.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session never reached score, stage=%s", o.Stage())
	}
	results, ok := o.Results()
	if !ok {
		t.Fatalf("results missing after done")
	}
	if o.Stage() != app.StageScore {
		t.Fatalf("expected score stage, got %s", o.Stage())
	}
	return results
}

func TestMultipleChoiceOnlySession(t *testing.T) {
	o := newSession(t, learner, domain.QuestionSet{MultipleChoice: choices(3)}, app.Dependencies{})

	if !o.Start() || o.Stage() != app.StageMultipleChoice {
		t.Fatalf("expected multiple choice stage, got %s", o.Stage())
	}
	for _, label := range []string{"B", "A", "B"} {
		if !o.SubmitChoice(label) {
			t.Fatalf("submit %s declined", label)
		}
	}
	results := waitResults(t, o)
	if results.MultipleChoice != 67 {
		t.Fatalf("expected 67, got %d", results.MultipleChoice)
	}
	if results.Overall != 17 {
		t.Fatalf("expected overall 17, got %d", results.Overall)
	}
}

func TestSessionWithoutAudioItems(t *testing.T) {
	o := newSession(t, learner, domain.QuestionSet{MultipleChoice: choices(1), FreeText: passages(1)}, app.Dependencies{
		Text: fixedText(60),
	})

	o.Start()
	o.SubmitChoice("B")
	if o.Stage() != app.StageFreeText {
		t.Fatalf("expected free text stage, got %s", o.Stage())
	}
	o.SubmitTextAnswer("because")

	results := waitResults(t, o)
	if results.AudioPronunciation != 0 || results.AudioAccuracy != 0 {
		t.Fatalf("expected zero audio scores, got %+v", results)
	}
	if results.Overall != 40 {
		t.Fatalf("expected overall (100+60)/4=40, got %d", results.Overall)
	}
}

func TestFailedTextEvaluationCountsAsZero(t *testing.T) {
	text := textFunc(func(_ context.Context, req domain.TextEvaluationRequest) domain.TextEvaluation {
		if req.Answer == "fails" {
			return domain.FallbackTextEvaluation()
		}
		return domain.TextEvaluation{Score: 70, Feedback: "ok"}
	})
	o := newSession(t, learner, domain.QuestionSet{FreeText: passages(2), Audio: recordings(1)}, app.Dependencies{
		Text:  text,
		Audio: fixedAudio(5, 100, "great reading"),
	})

	if !o.Start() || o.Stage() != app.StageFreeText {
		t.Fatalf("empty multiple choice section should be skipped, got %s", o.Stage())
	}
	o.SubmitTextAnswer("works")
	o.SubmitTextAnswer("fails")
	o.SubmitAudioAnswer([]byte("wav"))

	results := waitResults(t, o)
	if results.Text != 35 {
		t.Fatalf("expected round((70+0)/2)=35, got %d", results.Text)
	}
	if results.DegradedEvaluations != 1 {
		t.Fatalf("expected one degraded evaluation, got %d", results.DegradedEvaluations)
	}
	if len(results.Feedback) != 1 || results.Feedback[0] != "great reading" {
		t.Fatalf("unexpected feedback: %v", results.Feedback)
	}
	if results.AudioPronunciation != 100 || results.AudioAccuracy != 100 {
		t.Fatalf("unexpected audio scores: %+v", results)
	}
}

func TestDegradedAudioFeedbackIsKept(t *testing.T) {
	audio := audioFunc(func(_ context.Context, req domain.AudioEvaluationRequest) domain.AudioEvaluation {
		if string(req.Audio) == "broken" {
			time.Sleep(50 * time.Millisecond)
			return domain.FallbackAudioEvaluation()
		}
		return domain.AudioEvaluation{PronunciationScore: 5, AccuracyScore: 100, Feedback: "good"}
	})
	o := newSession(t, learner, domain.QuestionSet{Audio: recordings(2)}, app.Dependencies{Audio: audio})

	o.Start()
	o.SubmitAudioAnswer([]byte("clear"))
	o.SubmitAudioAnswer([]byte("broken"))

	results := waitResults(t, o)
	want := []string{"good", domain.AudioFallbackFeedback}
	if len(results.Feedback) != len(want) || results.Feedback[0] != want[0] || results.Feedback[1] != want[1] {
		t.Fatalf("expected feedback %v, got %v", want, results.Feedback)
	}
	if results.DegradedEvaluations != 1 {
		t.Fatalf("expected one degraded evaluation, got %d", results.DegradedEvaluations)
	}
	if results.AudioPronunciation != 50 || results.AudioAccuracy != 50 {
		t.Fatalf("unexpected audio scores: %+v", results)
	}
}

func TestResetDiscardsPendingEvaluations(t *testing.T) {
	gate := make(chan struct{})
	t.Cleanup(func() { close(gate) })

	text := textFunc(func(ctx context.Context, req domain.TextEvaluationRequest) domain.TextEvaluation {
		if req.Answer == "old" {
			select {
			case <-gate:
			case <-ctx.Done():
			}
			return domain.TextEvaluation{Score: 100}
		}
		return domain.TextEvaluation{Score: 50}
	})
	o := newSession(t, learner, domain.QuestionSet{FreeText: passages(2), Audio: recordings(1)}, app.Dependencies{Text: text})

	o.Start()
	o.SubmitTextAnswer("old")
	o.SubmitTextAnswer("old")
	if snap := o.Snapshot(); snap.Pending != 2 || snap.Stage != app.StageAudio {
		t.Fatalf("expected 2 pending in audio stage, got %+v", snap)
	}

	if !o.Menu() {
		t.Fatalf("menu declined")
	}
	if snap := o.Snapshot(); snap.Pending != 0 || snap.Stage != app.StageMenu {
		t.Fatalf("reset kept state: %+v", snap)
	}

	o.Start()
	o.SubmitTextAnswer("new")
	o.SubmitTextAnswer("new")
	o.SubmitAudioAnswer(nil)

	results := waitResults(t, o)
	if results.Text != 50 {
		t.Fatalf("expected only post-reset evaluations, got text=%d", results.Text)
	}
}

func TestSubmitOutsideSectionIsNoOp(t *testing.T) {
	o := newSession(t, learner, domain.QuestionSet{MultipleChoice: choices(1), FreeText: passages(1), Audio: recordings(1)}, app.Dependencies{})

	before := o.Snapshot()
	if o.SubmitChoice("B") || o.SubmitTextAnswer("x") || o.SubmitAudioAnswer([]byte("x")) {
		t.Fatalf("submits must be declined in the menu")
	}
	after := o.Snapshot()
	if before.Stage != after.Stage || before.Correct != after.Correct || before.Pending != after.Pending ||
		before.MultipleChoice != after.MultipleChoice || before.FreeText != after.FreeText || before.Audio != after.Audio {
		t.Fatalf("guarded submit changed state: before=%+v after=%+v", before, after)
	}

	o.Start()
	if o.SubmitTextAnswer("wrong section") || o.SubmitAudioAnswer(nil) {
		t.Fatalf("submits for other sections must be declined")
	}
	o.SubmitChoice("B")
	o.SubmitTextAnswer("x")
	o.SubmitAudioAnswer(nil)
	waitResults(t, o)

	if o.SubmitChoice("B") || o.SubmitTextAnswer("x") || o.SubmitAudioAnswer(nil) {
		t.Fatalf("submits must be declined after scoring")
	}
	if snap := o.Snapshot(); snap.Correct != 1 || snap.Pending != 2 {
		t.Fatalf("state changed after scoring: %+v", snap)
	}
}

func TestLoadFailureEntersErrorStage(t *testing.T) {
	o := app.NewOrchestrator("s-err", learner, app.Dependencies{Questions: failingSource{}, Logger: logging.Discard()})
	defer o.Close()

	err := o.Load(context.Background())
	if !errors.Is(err, domain.ErrQuestionsUnavailable) {
		t.Fatalf("expected questions unavailable, got %v", err)
	}
	if o.Stage() != app.StageError {
		t.Fatalf("expected error stage, got %s", o.Stage())
	}
	if o.Start() || o.Menu() {
		t.Fatalf("start and menu must be declined after a failed load")
	}
}

func TestEmptyQuestionSetScoresImmediately(t *testing.T) {
	o := newSession(t, learner, domain.QuestionSet{}, app.Dependencies{})
	o.Start()
	results := waitResults(t, o)
	if results.Overall != 0 || results.MultipleChoice != 0 {
		t.Fatalf("expected zero results, got %+v", results)
	}
}

func TestLearnerResultsArePersisted(t *testing.T) {
	scores := newRecordingScores()
	o := newSession(t, learner, domain.QuestionSet{MultipleChoice: choices(2)}, app.Dependencies{Scores: scores})

	o.Start()
	o.SubmitChoice("B")
	o.SubmitChoice("B")
	results := waitResults(t, o)

	select {
	case id := <-scores.ch:
		if id != learner.ID {
			t.Fatalf("saved for wrong user %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("learner results were not persisted")
	}
	scores.mu.Lock()
	saved := scores.saved[learner.ID]
	scores.mu.Unlock()
	if saved.Overall != results.Overall || saved.MultipleChoice != 100 {
		t.Fatalf("persisted %+v, session has %+v", saved, results)
	}
}

func TestTeacherResultsAreNotPersisted(t *testing.T) {
	scores := newRecordingScores()
	teacher := domain.User{ID: "u-teacher", Role: domain.RoleTeacher}
	o := newSession(t, teacher, domain.QuestionSet{MultipleChoice: choices(1)}, app.Dependencies{Scores: scores})

	o.Start()
	o.SubmitChoice("B")
	waitResults(t, o)

	select {
	case id := <-scores.ch:
		t.Fatalf("teacher session persisted results for %s", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseDuringProcessingYieldsZeroResults(t *testing.T) {
	scores := newRecordingScores()
	blocking := audioFunc(func(ctx context.Context, _ domain.AudioEvaluationRequest) domain.AudioEvaluation {
		<-ctx.Done()
		return domain.FallbackAudioEvaluation()
	})
	o := newSession(t, learner, domain.QuestionSet{Audio: recordings(1)}, app.Dependencies{Audio: blocking, Scores: scores})

	o.Start()
	o.SubmitAudioAnswer([]byte("wav"))
	if o.Stage() != app.StageProcessing {
		t.Fatalf("expected processing, got %s", o.Stage())
	}
	o.Close()

	results := waitResults(t, o)
	if results.Overall != 0 || results.AudioPronunciation != 0 {
		t.Fatalf("expected zero results, got %+v", results)
	}
	time.Sleep(50 * time.Millisecond)
	if scores.count() != 0 {
		t.Fatalf("closed session must not persist results")
	}
}

func TestSubscribersSeeStageChanges(t *testing.T) {
	o := newSession(t, learner, domain.QuestionSet{MultipleChoice: choices(1)}, app.Dependencies{})
	updates, cancel := o.Subscribe()
	defer cancel()

	if snap := <-updates; snap.Stage != app.StageMenu {
		t.Fatalf("expected initial menu snapshot, got %s", snap.Stage)
	}
	o.Start()
	if snap := <-updates; snap.Stage != app.StageMultipleChoice || snap.CurrentChoice == nil {
		t.Fatalf("expected multiple choice snapshot, got %+v", snap)
	}
	o.SubmitChoice("B")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.Stage == app.StageScore {
				if snap.Results == nil || snap.Results.MultipleChoice != 100 || snap.Progress != 100 {
					t.Fatalf("unexpected score snapshot: %+v", snap)
				}
				return
			}
		case <-deadline:
			t.Fatalf("no score snapshot received")
		}
	}
}

func TestResetReleasesSupersededDone(t *testing.T) {
	text := textFunc(func(ctx context.Context, _ domain.TextEvaluationRequest) domain.TextEvaluation {
		<-ctx.Done()
		return domain.FallbackTextEvaluation()
	})
	o := newSession(t, learner, domain.QuestionSet{FreeText: passages(1)}, app.Dependencies{Text: text})

	o.Start()
	old := o.Done()
	o.SubmitTextAnswer("slow")
	if o.Stage() != app.StageProcessing {
		t.Fatalf("expected processing, got %s", o.Stage())
	}
	o.Start()

	select {
	case <-old:
	case <-time.After(time.Second):
		t.Fatalf("superseded done channel was not closed by the reset")
	}
	select {
	case <-o.Done():
		t.Fatalf("done of the new run closed before it was scored")
	default:
	}
	if _, ok := o.Results(); ok {
		t.Fatalf("reset session must not report results")
	}
}

func TestSubscribeNeverReplaysStaleState(t *testing.T) {
	for i := 0; i < 50; i++ {
		o := newSession(t, learner, domain.QuestionSet{MultipleChoice: choices(1)}, app.Dependencies{})
		o.Start()
		o.SubmitChoice("B")
		updates, cancel := o.Subscribe()

		seenScore := false
		timeout := time.After(2 * time.Second)
	drain:
		for {
			select {
			case snap := <-updates:
				if seenScore && snap.Stage != app.StageScore {
					cancel()
					t.Fatalf("run %d: received %s after score", i, snap.Stage)
				}
				if snap.Stage == app.StageScore {
					seenScore = true
					if len(updates) == 0 {
						break drain
					}
				}
			case <-timeout:
				cancel()
				t.Fatalf("run %d: no score snapshot received", i)
			}
		}
		cancel()
	}
}
