package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/google/uuid"
)

type usersStorage struct {
	mu      sync.RWMutex
	users   map[string]*storage.User
	byEmail map[string]string // lower(email) -> user_id
}

func newUsersStorage() *usersStorage {
	return &usersStorage{
		users:   make(map[string]*storage.User),
		byEmail: make(map[string]string),
	}
}

func (s *usersStorage) CreateUser(ctx context.Context, user *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Email != nil {
		key := strings.ToLower(*user.Email)
		if _, taken := s.byEmail[key]; taken {
			return storage.ErrEmailTaken
		}
		s.byEmail[key] = user.ID
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *usersStorage) GetUser(ctx context.Context, id string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *usersStorage) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *s.users[id]
	return &out, nil
}

func (s *usersStorage) UpsertUsername(ctx context.Context, id string, username string) (*storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	u, ok := s.users[id]
	if !ok {
		u = &storage.User{ID: id, CreatedAt: now}
		s.users[id] = u
	}
	u.Username = username
	u.UpdatedAt = now

	out := *u
	return &out, nil
}
