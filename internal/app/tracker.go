package app

// TrackerState is the lifecycle of one section within a session.
type TrackerState string

const (
	TrackerNotStarted TrackerState = "not_started"
	TrackerInProgress TrackerState = "in_progress"
	TrackerFinished   TrackerState = "finished"
)

// Tracker follows the cursor through one ordered item sequence.
// The zero value is an empty, not started tracker.
type Tracker[T any] struct {
	items    []T
	cursor   int
	finished bool
}

// Reset replaces the sequence and rewinds the cursor. The slice is copied.
func (t *Tracker[T]) Reset(items []T) {
	t.items = append([]T(nil), items...)
	t.cursor = 0
	t.finished = false
}

// Current returns the item at the cursor, if any.
func (t *Tracker[T]) Current() (T, bool) {
	var zero T
	if t.finished || t.cursor >= len(t.items) {
		return zero, false
	}
	return t.items[t.cursor], true
}

// Advance moves past the current item. It is a no-op once the sequence is exhausted.
func (t *Tracker[T]) Advance() bool {
	if t.finished || t.cursor >= len(t.items) {
		return false
	}
	t.cursor++
	if t.cursor == len(t.items) {
		t.finished = true
	}
	return true
}

func (t *Tracker[T]) Cursor() int { return t.cursor }

func (t *Tracker[T]) Len() int { return len(t.items) }

func (t *Tracker[T]) Finished() bool { return t.finished }

func (t *Tracker[T]) State() TrackerState {
	switch {
	case t.finished:
		return TrackerFinished
	case len(t.items) == 0:
		return TrackerNotStarted
	default:
		return TrackerInProgress
	}
}

// Progress is the answered fraction in [0, 1].
func (t *Tracker[T]) Progress() float64 {
	if len(t.items) == 0 {
		return 0
	}
	return float64(t.cursor) / float64(len(t.items))
}
