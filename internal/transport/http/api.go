package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reading-quiz-service/internal/app"
	"reading-quiz-service/internal/auth"
	"reading-quiz-service/internal/domain"
	"reading-quiz-service/internal/logging"
)

// API serves the REST endpoints of the quiz application.
type API struct {
	questions app.QuestionSource
	users     *app.UserService
	tokens    *auth.TokenService
}

func NewAPI(questions app.QuestionSource, users *app.UserService, tokens *auth.TokenService) *API {
	return &API{questions: questions, users: users, tokens: tokens}
}

type credentials struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

type authResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

type scoreRequest struct {
	FinalResults *domain.FinalResults `json:"finalResults"`
}

func (a *API) multipleChoice(w http.ResponseWriter, r *http.Request) {
	set, err := a.questions.LoadQuestions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(set.MultipleChoice))
}

func (a *API) freeText(w http.ResponseWriter, r *http.Request) {
	set, err := a.questions.LoadQuestions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(set.FreeText))
}

func (a *API) audio(w http.ResponseWriter, r *http.Request) {
	set, err := a.questions.LoadQuestions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(set.Audio))
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid request body"})
		return
	}
	user, err := a.users.Register(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.respondWithToken(w, r, http.StatusCreated, user)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid request body"})
		return
	}
	user, err := a.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.respondWithToken(w, r, http.StatusOK, user)
}

func (a *API) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user domain.User) {
	token, err := a.tokens.Issue(user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, authResponse{User: user, Token: token})
}

func (a *API) students(w http.ResponseWriter, r *http.Request) {
	students, err := a.users.Students(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(students))
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	students, err := a.users.Students(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app.Summarize(students))
}

// saveScore lets a learner store their own results; teachers may store anyone's.
func (a *API) saveScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims, _ := auth.ClaimsFromContext(r.Context())
	if claims == nil || (claims.UserID() != id && claims.Role != domain.RoleTeacher) {
		writeError(w, r, domain.ErrForbidden)
		return
	}

	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FinalResults == nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "finalResults is required"})
		return
	}
	if err := a.users.SaveScore(r.Context(), id, *req.FinalResults); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := a.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUsernameTaken):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidRole):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrQuestionsUnavailable):
		status = http.StatusServiceUnavailable
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.WithContext(r.Context()).WithError(err).Error("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorPayload{Message: msg})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
