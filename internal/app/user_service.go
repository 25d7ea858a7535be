package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"reading-quiz-service/internal/auth"
	"reading-quiz-service/internal/domain"
)

// UserRepository stores accounts and their latest results.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	// UpdateScore stores results and marks the user completed.
	UpdateScore(ctx context.Context, id string, results domain.FinalResults) error
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
}

// UserService handles registration, login and score write-back.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// Register creates an account. An empty role defaults to student.
func (s *UserService) Register(ctx context.Context, username, password string, role domain.Role) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if role == "" {
		role = domain.RoleStudent
	}
	if !role.Valid() {
		return domain.User{}, domain.ErrInvalidRole
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return domain.User{}, domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.StatusNotStarted,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials.
func (s *UserService) Login(ctx context.Context, username, password string) (domain.User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Students lists every learner account.
func (s *UserService) Students(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListByRole(ctx, domain.RoleStudent)
}

// SaveScore implements ScoreStore.
func (s *UserService) SaveScore(ctx context.Context, userID string, results domain.FinalResults) error {
	if err := s.repo.UpdateScore(ctx, userID, results); err != nil {
		return fmt.Errorf("save score for %s: %w", userID, err)
	}
	return nil
}

// MarkInProgress implements ProgressRecorder. Completed learners keep their status.
func (s *UserService) MarkInProgress(ctx context.Context, userID string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Status == domain.StatusCompleted {
		return nil
	}
	return s.repo.UpdateStatus(ctx, userID, domain.StatusInProgress)
}
