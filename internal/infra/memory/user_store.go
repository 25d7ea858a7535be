package memory

import (
	"context"
	"sort"
	"sync"

	"reading-quiz-service/internal/domain"
)

// UserStore is an in-memory implementation of app.UserRepository.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]domain.User)}
}

func (s *UserStore) Create(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return domain.ErrUsernameTaken
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *UserStore) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, user := range s.users {
		if user.Role == role {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *UserStore) UpdateScore(_ context.Context, id string, results domain.FinalResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.Score = &results
	user.Status = domain.StatusCompleted
	s.users[id] = user
	return nil
}

func (s *UserStore) UpdateStatus(_ context.Context, id string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.Status = status
	s.users[id] = user
	return nil
}
