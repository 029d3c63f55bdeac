package service

import (
	"context"

	"bloglist/internal/repository"
)

// ResetService wipes all users and blogs. It backs the testing-only reset route.
type ResetService struct {
	users repository.UserRepository
	blogs repository.BlogRepository
}

func NewResetService(users repository.UserRepository, blogs repository.BlogRepository) *ResetService {
	return &ResetService{users: users, blogs: blogs}
}

func (s *ResetService) Reset(ctx context.Context) error {
	if err := s.blogs.Reset(ctx); err != nil {
		return err
	}
	return s.users.Reset(ctx)
}
