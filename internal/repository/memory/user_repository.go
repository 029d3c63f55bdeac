// Package memory keeps users and blogs in process memory. Each repository
// value owns its own state, so separate instances never observe each other.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bloglist/internal/domain"
	"bloglist/internal/repository"
)

type UserRepository struct {
	mu         sync.RWMutex
	byID       map[string]domain.User
	byUsername map[string]string
	order      []string
}

func NewUserRepository() *UserRepository {
	r := &UserRepository{}
	r.clear()
	return r
}

func (r *UserRepository) Init(context.Context) error { return nil }

func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[user.Username]; taken {
		return fmt.Errorf("user %q: %w", user.Username, repository.ErrAlreadyExists)
	}
	if _, taken := r.byID[user.ID]; taken {
		return fmt.Errorf("user id %s: %w", user.ID, repository.ErrAlreadyExists)
	}
	r.byID[user.ID] = *user
	r.byUsername[user.Username] = user.ID
	r.order = append(r.order, user.ID)
	return nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user := r.byID[id]
	return &user, nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *UserRepository) List(context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]domain.User, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, r.byID[id])
	}
	return users, nil
}

func (r *UserRepository) Reset(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clear()
	return nil
}

func (r *UserRepository) clear() {
	r.byID = make(map[string]domain.User)
	r.byUsername = make(map[string]string)
	r.order = nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
