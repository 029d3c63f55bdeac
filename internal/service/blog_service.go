package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bloglist/internal/domain"
	"bloglist/internal/repository"
)

// BlogInput carries the user supplied fields of a new blog.
type BlogInput struct {
	Title  string
	Author string
	URL    string
}

// BlogService coordinates blog level operations backed by repositories.
type BlogService interface {
	Create(ctx context.Context, identity *domain.Identity, input BlogInput) (*domain.Blog, error)
	Get(ctx context.Context, id string) (*domain.Blog, error)
	// List returns every blog ordered by likes, highest first.
	List(ctx context.Context) ([]domain.Blog, error)
	IncrementLikes(ctx context.Context, id string) (*domain.Blog, error)
	Remove(ctx context.Context, id string, identity *domain.Identity) error
}

type blogService struct {
	blogs repository.BlogRepository
	users repository.UserRepository
}

func NewBlogService(blogs repository.BlogRepository, users repository.UserRepository) BlogService {
	return &blogService{
		blogs: blogs,
		users: users,
	}
}

func (s *blogService) Create(ctx context.Context, identity *domain.Identity, input BlogInput) (*domain.Blog, error) {
	if identity == nil || identity.UserID == "" {
		return nil, ErrUnknownIdentity
	}
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)
	input.URL = strings.TrimSpace(input.URL)
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if input.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrValidation)
	}

	if _, err := s.users.GetByID(ctx, identity.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownIdentity
		}
		return nil, err
	}

	blog := &domain.Blog{
		ID:        uuid.NewString(),
		Title:     input.Title,
		Author:    input.Author,
		URL:       input.URL,
		CreatorID: identity.UserID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.blogs.Create(ctx, blog); err != nil {
		return nil, err
	}
	return blog, nil
}

func (s *blogService) Get(ctx context.Context, id string) (*domain.Blog, error) {
	blog, err := s.blogs.Get(ctx, id)
	if err != nil {
		return nil, translateBlogErr(err)
	}
	return blog, nil
}

func (s *blogService) List(ctx context.Context) ([]domain.Blog, error) {
	blogs, err := s.blogs.List(ctx)
	if err != nil {
		return nil, err
	}
	return ByLikesDescending(blogs), nil
}

// IncrementLikes adds one like. Any caller may like any blog.
func (s *blogService) IncrementLikes(ctx context.Context, id string) (*domain.Blog, error) {
	blog, err := s.blogs.IncrementLikes(ctx, id)
	if err != nil {
		return nil, translateBlogErr(err)
	}
	return blog, nil
}

func (s *blogService) Remove(ctx context.Context, id string, identity *domain.Identity) error {
	blog, err := s.blogs.Get(ctx, id)
	if err != nil {
		return translateBlogErr(err)
	}
	if !CanRemove(*blog, identity) {
		return ErrForbidden
	}
	// creator_id is immutable, so the ownership check above cannot go stale
	return translateBlogErr(s.blogs.Delete(ctx, id))
}

func translateBlogErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrBlogNotFound
	}
	return err
}
