package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"reading-quiz-service/internal/app"
	"reading-quiz-service/internal/auth"
	"reading-quiz-service/internal/domain"
	"reading-quiz-service/internal/infra/memory"
	"reading-quiz-service/internal/logging"
)

type stubText struct{}

func (stubText) EvaluateText(context.Context, domain.TextEvaluationRequest) domain.TextEvaluation {
	return domain.TextEvaluation{Score: 80, Feedback: "Well argued"}
}

type stubAudio struct{}

func (stubAudio) EvaluateAudio(context.Context, domain.AudioEvaluationRequest) domain.AudioEvaluation {
	return domain.AudioEvaluation{PronunciationScore: 4, AccuracyScore: 90, Feedback: "Clear reading", Transcript: "read me"}
}

type testEnv struct {
	server *httptest.Server
	users  *app.UserService
	store  *memory.UserStore
	tokens *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logging.Discard()
	store := memory.NewUserStore()
	users := app.NewUserService(store)
	tokens := auth.NewTokenService("test-secret", time.Hour)
	questions := memory.NewQuestionCache(app.NewBulkLoader(memory.NewStaticQuestionRepository(sampleSet())), time.Minute)

	quiz := app.NewQuizService(memory.NewSessionStore(), app.Dependencies{
		Questions: questions,
		Text:      stubText{},
		Audio:     stubAudio{},
		Scores:    users,
		Logger:    logger,
	}, users)

	server := httptest.NewServer(NewRouter(RouterConfig{
		Questions:   questions,
		Users:       users,
		Quiz:        quiz,
		Tokens:      tokens,
		Logger:      logger,
		CORSOrigins: []string{"*"},
	}))
	t.Cleanup(server.Close)
	return &testEnv{server: server, users: users, store: store, tokens: tokens}
}

// account registers a user and returns it with a signed token.
func (e *testEnv) account(t *testing.T, username string, role domain.Role) (domain.User, string) {
	t.Helper()
	user, err := e.users.Register(context.Background(), username, "pw-"+username, role)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	token, err := e.tokens.Issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, token
}

func sampleSet() domain.QuestionSet {
	return domain.QuestionSet{
		MultipleChoice: []domain.MultipleChoiceItem{{
			ID:     "q1",
			Prompt: "What is 2 + 2?",
			Choices: []domain.Choice{
				{Label: "A", Text: "3"},
				{Label: "B", Text: "4"},
			},
			CorrectLabel: "B",
		}},
		FreeText: []domain.FreeTextItem{{ID: "t1", Question: "Why does Anna travel?", Passage: "Anna travels to see her aunt."}},
		Audio:    []domain.AudioItem{{ID: "a1", Passage: "Read me."}},
	}
}
