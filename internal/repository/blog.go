package repository

import (
	"context"
	"errors"

	"bloglist/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist (or no longer exists).
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a unique key is already taken.
	ErrAlreadyExists = errors.New("record already exists")
)

// BlogRepository exposes persistence operations for Blog records.
//
// List returns blogs in insertion order. IncrementLikes and Delete are atomic
// per record: once Delete succeeds every later call on that id yields ErrNotFound.
type BlogRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, blog *domain.Blog) error
	Get(ctx context.Context, id string) (*domain.Blog, error)
	List(ctx context.Context) ([]domain.Blog, error)
	ListByCreator(ctx context.Context, creatorID string) ([]domain.Blog, error)
	IncrementLikes(ctx context.Context, id string) (*domain.Blog, error)
	Delete(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}
