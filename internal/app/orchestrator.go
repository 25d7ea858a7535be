package app

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"reading-quiz-service/internal/domain"
)

// Stage is the screen the session is on.
type Stage string

const (
	StageLoading        Stage = "loading"
	StageMenu           Stage = "menu"
	StageMultipleChoice Stage = "multiple_choice"
	StageFreeText       Stage = "free_text"
	StageAudio          Stage = "audio"
	StageProcessing     Stage = "processing"
	StageScore          Stage = "score"
	StageError          Stage = "error"
)

// sectionOrder is the fixed play order.
var sectionOrder = []domain.Section{domain.SectionMultipleChoice, domain.SectionFreeText, domain.SectionAudio}

// Dependencies are the collaborators an orchestrator talks to.
type Dependencies struct {
	Questions QuestionSource
	Text      TextEvaluator
	Audio     AudioEvaluator
	// Scores is optional; without it results are never written back.
	Scores ScoreStore
	Logger logrus.FieldLogger
	// PersistTimeout bounds the background score write-back.
	PersistTimeout time.Duration
}

// SectionProgress is the read-only view of one tracker.
type SectionProgress struct {
	Cursor   int          `json:"cursor"`
	Total    int          `json:"total"`
	State    TrackerState `json:"state"`
	Progress float64      `json:"progress"`
}

// Snapshot is everything a screen needs to render the session.
type Snapshot struct {
	SessionID      string                     `json:"sessionId"`
	Stage          Stage                      `json:"stage"`
	MultipleChoice SectionProgress            `json:"multipleChoice"`
	FreeText       SectionProgress            `json:"freeText"`
	Audio          SectionProgress            `json:"audio"`
	CurrentChoice  *domain.MultipleChoiceItem `json:"currentChoice,omitempty"`
	CurrentText    *domain.FreeTextItem       `json:"currentText,omitempty"`
	CurrentAudio   *domain.AudioItem          `json:"currentAudio,omitempty"`
	Correct        int                        `json:"correct"`
	Pending        int                        `json:"pending"`
	// Progress is the combined percentage across all three sections.
	Progress int                  `json:"progress"`
	Results  *domain.FinalResults `json:"results,omitempty"`
}

// Orchestrator owns one learner's session: the three trackers, the multiple-choice tally
// and the pending evaluations. All methods are safe for concurrent use.
type Orchestrator struct {
	id   string
	user domain.User
	deps Dependencies
	log  logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	seq    atomic.Uint64

	mu          sync.RWMutex
	stage       Stage
	questions   domain.QuestionSet
	mc          Tracker[domain.MultipleChoiceItem]
	text        Tracker[domain.FreeTextItem]
	audio       Tracker[domain.AudioItem]
	tally       int
	pending     []*pendingEvaluation
	epoch       uint64
	results     *domain.FinalResults
	done        chan struct{}
	subscribers map[chan Snapshot]struct{}
}

func NewOrchestrator(id string, user domain.User, deps Dependencies) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.PersistTimeout <= 0 {
		deps.PersistTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		id:          id,
		user:        user,
		deps:        deps,
		log:         deps.Logger.WithFields(logrus.Fields{"session": id, "user": user.ID}),
		ctx:         ctx,
		cancel:      cancel,
		stage:       StageLoading,
		done:        make(chan struct{}),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

func (o *Orchestrator) ID() string { return o.id }

func (o *Orchestrator) User() domain.User { return o.user }

// Load fetches the question snapshot. On failure the session enters the error stage and
// cannot be started.
func (o *Orchestrator) Load(ctx context.Context) error {
	set, err := o.deps.Questions.LoadQuestions(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.stage = StageError
		o.broadcastLocked()
		return fmt.Errorf("load session %s: %w", o.id, err)
	}
	o.questions = set
	o.stage = StageMenu
	o.broadcastLocked()
	return nil
}

// Start resets the session and enters the first section that has items.
// It declines while loading or after a load failure.
func (o *Orchestrator) Start() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage == StageLoading || o.stage == StageError {
		return false
	}
	o.resetLocked()
	o.enterNextLocked(0)
	o.broadcastLocked()
	return true
}

// Menu resets the session and returns to the menu, abandoning pending evaluations.
func (o *Orchestrator) Menu() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage == StageLoading || o.stage == StageError {
		return false
	}
	o.resetLocked()
	o.stage = StageMenu
	o.broadcastLocked()
	return true
}

// SubmitChoice scores the current multiple-choice item locally and advances.
func (o *Orchestrator) SubmitChoice(label string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != StageMultipleChoice {
		return false
	}
	item, ok := o.mc.Current()
	if !ok {
		return false
	}
	if label == item.CorrectLabel {
		o.tally++
	}
	o.mc.Advance()
	if o.mc.Finished() {
		o.enterNextLocked(1)
	}
	o.broadcastLocked()
	return true
}

// SubmitTextAnswer dispatches the answer for scoring and advances without waiting.
func (o *Orchestrator) SubmitTextAnswer(answer string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != StageFreeText {
		return false
	}
	item, ok := o.text.Current()
	if !ok {
		return false
	}
	req := domain.TextEvaluationRequest{Passage: item.Passage, Question: item.Question, Answer: answer}
	o.pending = append(o.pending, dispatchEvaluation(o.ctx, domain.SectionFreeText, &o.seq, o.log, func(ctx context.Context) evaluationOutcome {
		return evaluationOutcome{text: o.deps.Text.EvaluateText(ctx, req)}
	}))
	o.text.Advance()
	if o.text.Finished() {
		o.enterNextLocked(2)
	}
	o.broadcastLocked()
	return true
}

// SubmitAudioAnswer dispatches the recording for scoring and advances. After the last
// audio item the session moves to processing and aggregates in the background.
func (o *Orchestrator) SubmitAudioAnswer(recording []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != StageAudio {
		return false
	}
	item, ok := o.audio.Current()
	if !ok {
		return false
	}
	req := domain.AudioEvaluationRequest{Audio: append([]byte(nil), recording...), ExpectedText: item.Passage}
	o.pending = append(o.pending, dispatchEvaluation(o.ctx, domain.SectionAudio, &o.seq, o.log, func(ctx context.Context) evaluationOutcome {
		return evaluationOutcome{audio: o.deps.Audio.EvaluateAudio(ctx, req)}
	}))
	o.audio.Advance()
	if o.audio.Finished() {
		o.enterNextLocked(3)
	}
	o.broadcastLocked()
	return true
}

func (o *Orchestrator) Stage() Stage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.stage
}

// Results returns the final results once the session reached the score stage.
func (o *Orchestrator) Results() (domain.FinalResults, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.results == nil {
		return domain.FinalResults{}, false
	}
	return *o.results, true
}

// Done is closed when the current session reaches the score stage. A reset closes the
// superseded channel and replaces it, so waiters must check Results after waking.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.done
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshotLocked()
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	o.mu.Lock()
	o.subscribers[ch] = struct{}{}
	ch <- o.snapshotLocked()
	o.mu.Unlock()

	cancel := func() {
		o.mu.Lock()
		if _, ok := o.subscribers[ch]; ok {
			delete(o.subscribers, ch)
			close(ch)
		}
		o.mu.Unlock()
	}
	return ch, cancel
}

// Close ends the session: in-flight evaluations are canceled and subscribers released.
func (o *Orchestrator) Close() {
	o.cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	for ch := range o.subscribers {
		delete(o.subscribers, ch)
		close(ch)
	}
}

func (o *Orchestrator) resetLocked() {
	o.epoch++
	o.pending = nil
	o.results = nil
	o.tally = 0
	o.mc.Reset(o.questions.MultipleChoice)
	o.text.Reset(o.questions.FreeText)
	o.audio.Reset(o.questions.Audio)
	select {
	case <-o.done:
	default:
		close(o.done)
	}
	o.done = make(chan struct{})
}

// enterNextLocked moves to the first section at or after sectionOrder[from] that has items,
// or to processing when none is left.
func (o *Orchestrator) enterNextLocked(from int) {
	for _, section := range sectionOrder[min(from, len(sectionOrder)):] {
		if o.lenLocked(section) > 0 {
			o.stage = stageOf(section)
			return
		}
	}
	o.beginProcessingLocked()
}

func (o *Orchestrator) beginProcessingLocked() {
	o.stage = StageProcessing
	in := aggregateInput{
		multipleChoiceItems: o.mc.Len(),
		freeTextItems:       o.text.Len(),
		audioItems:          o.audio.Len(),
		tally:               o.tally,
	}
	pending := append([]*pendingEvaluation(nil), o.pending...)
	o.log.WithField("pending", len(pending)).Info("awaiting evaluations")
	go o.finish(o.epoch, o.done, pending, in)
}

func (o *Orchestrator) finish(epoch uint64, done chan struct{}, pending []*pendingEvaluation, in aggregateInput) {
	results := o.computeResults(pending, in)

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return
	}
	o.results = &results
	o.stage = StageScore
	close(done)
	o.broadcastLocked()
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{
		"overall":  results.Overall,
		"degraded": results.DegradedEvaluations,
	}).Info("session scored")

	// A closed session was abandoned mid-aggregation; its zeroed results are not persisted.
	if o.user.IsLearner() && o.deps.Scores != nil && o.ctx.Err() == nil {
		go o.persist(results)
	}
}

// computeResults never fails: a panic or a canceled session yields all-zero results.
func (o *Orchestrator) computeResults(pending []*pendingEvaluation, in aggregateInput) (results domain.FinalResults) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Errorf("aggregation panicked: %v", r)
			results = domain.FinalResults{}
		}
	}()
	outcomes, err := awaitAll(o.ctx, pending)
	if err != nil {
		o.log.WithError(err).Warn("aggregation interrupted")
		return domain.FinalResults{}
	}
	in.outcomes = outcomes
	return aggregate(in)
}

func (o *Orchestrator) persist(results domain.FinalResults) {
	ctx, cancel := context.WithTimeout(context.Background(), o.deps.PersistTimeout)
	defer cancel()
	if err := o.deps.Scores.SaveScore(ctx, o.user.ID, results); err != nil {
		o.log.WithError(err).Error("failed to persist score")
	}
}

func (o *Orchestrator) lenLocked(section domain.Section) int {
	switch section {
	case domain.SectionMultipleChoice:
		return o.mc.Len()
	case domain.SectionFreeText:
		return o.text.Len()
	default:
		return o.audio.Len()
	}
}

func stageOf(section domain.Section) Stage {
	switch section {
	case domain.SectionMultipleChoice:
		return StageMultipleChoice
	case domain.SectionFreeText:
		return StageFreeText
	default:
		return StageAudio
	}
}

func (o *Orchestrator) broadcastLocked() {
	snap := o.snapshotLocked()
	for ch := range o.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest update so a slow reader never blocks the session.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:      o.id,
		Stage:          o.stage,
		MultipleChoice: progressOf(&o.mc),
		FreeText:       progressOf(&o.text),
		Audio:          progressOf(&o.audio),
		Correct:        o.tally,
		Pending:        len(o.pending),
	}
	if item, ok := o.mc.Current(); ok {
		snap.CurrentChoice = &item
	}
	if item, ok := o.text.Current(); ok {
		snap.CurrentText = &item
	}
	if item, ok := o.audio.Current(); ok {
		snap.CurrentAudio = &item
	}
	answered := o.mc.Cursor() + o.text.Cursor() + o.audio.Cursor()
	if total := o.mc.Len() + o.text.Len() + o.audio.Len(); total > 0 {
		snap.Progress = int(math.Round(float64(answered) / float64(total) * 100))
	}
	if o.results != nil {
		results := *o.results
		snap.Results = &results
	}
	return snap
}

func progressOf[T any](t *Tracker[T]) SectionProgress {
	return SectionProgress{
		Cursor:   t.Cursor(),
		Total:    t.Len(),
		State:    t.State(),
		Progress: t.Progress(),
	}
}
