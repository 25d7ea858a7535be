package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reading-quiz-service/internal/domain"
)

// SessionRepository abstracts where open play sessions live (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Orchestrator)
	Get(sessionID string) (*Orchestrator, bool)
	Delete(sessionID string)
}

// ProgressRecorder marks that a learner started playing.
type ProgressRecorder interface {
	MarkInProgress(ctx context.Context, userID string) error
}

// QuizService contains the play-session use cases.
type QuizService struct {
	sessions SessionRepository
	deps     Dependencies
	progress ProgressRecorder
	newID    func() string
}

// NewQuizService wires sessions to their collaborators. progress may be nil.
func NewQuizService(store SessionRepository, deps Dependencies, progress ProgressRecorder) *QuizService {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &QuizService{
		sessions: store,
		deps:     deps,
		progress: progress,
		newID:    uuid.NewString,
	}
}

// Open creates a session for user and loads its questions. On load failure the session is
// still returned, in the error stage, together with the error.
func (s *QuizService) Open(ctx context.Context, user domain.User) (*Orchestrator, error) {
	session := NewOrchestrator(s.newID(), user, s.deps)
	s.sessions.Put(session)
	if err := session.Load(ctx); err != nil {
		return session, err
	}
	return session, nil
}

// Session returns an open session.
func (s *QuizService) Session(sessionID string) (*Orchestrator, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Start begins a new game in the session and records learner progress (best effort).
func (s *QuizService) Start(ctx context.Context, sessionID string) (bool, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return false, err
	}
	if !session.Start() {
		return false, nil
	}
	if user := session.User(); user.IsLearner() && s.progress != nil {
		if err := s.progress.MarkInProgress(ctx, user.ID); err != nil {
			s.deps.Logger.WithError(err).WithField("user", user.ID).Warn("failed to mark learner in progress")
		}
	}
	return true, nil
}

// Close ends a session and drops it from the repository.
func (s *QuizService) Close(sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(sessionID)
}
