package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bloglist/internal/domain"
	"bloglist/internal/repository"
)

const (
	minUsernameLength = 3
	minPasswordLength = 3
	// bcrypt refuses longer input
	maxPasswordBytes = 72
)

// UserWithBlogs is a user together with the blogs they created.
type UserWithBlogs struct {
	User  domain.User
	Blogs []domain.Blog
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, username, name, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.Identity, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]UserWithBlogs, error)
}

type userService struct {
	users     repository.UserRepository
	blogs     repository.BlogRepository
	hashCost  int
	dummyHash []byte
}

// NewUserService builds a UserService. A cost of 0 selects bcrypt.DefaultCost.
func NewUserService(users repository.UserRepository, blogs repository.BlogRepository, cost int) UserService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	// compared against when the username is unknown so both failure paths cost the same
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)
	if err != nil {
		panic(fmt.Sprintf("generate dummy hash: %v", err))
	}
	return &userService{
		users:     users,
		blogs:     blogs,
		hashCost:  cost,
		dummyHash: dummy,
	}
}

func (s *userService) Register(ctx context.Context, username, name, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	name = strings.TrimSpace(name)

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if len(username) < minUsernameLength {
		return nil, fmt.Errorf("%w: username must be at least %d characters", ErrValidation, minUsernameLength)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &domain.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.Name,
	}, nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) List(ctx context.Context) ([]UserWithBlogs, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]UserWithBlogs, len(users))
	for i := range users {
		blogs, err := s.blogs.ListByCreator(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		result[i] = UserWithBlogs{User: *sanitizeUser(&users[i]), Blogs: blogs}
	}
	return result, nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	}
}
