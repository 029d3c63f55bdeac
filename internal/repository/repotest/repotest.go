// Package repotest holds behaviour tests shared by every repository backend.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloglist/internal/domain"
	"bloglist/internal/repository"
)

// Factory returns freshly initialised, empty repositories.
type Factory func(t *testing.T) (repository.UserRepository, repository.BlogRepository)

// Run exercises users and blogs against the repository contract.
func Run(t *testing.T, newRepos Factory) {
	t.Run("UserCreateAndLookup", func(t *testing.T) { testUserCreateAndLookup(t, newRepos) })
	t.Run("UserDuplicateUsername", func(t *testing.T) { testUserDuplicate(t, newRepos) })
	t.Run("UserListOrder", func(t *testing.T) { testUserList(t, newRepos) })
	t.Run("BlogCreateGet", func(t *testing.T) { testBlogCreateGet(t, newRepos) })
	t.Run("BlogListInsertionOrder", func(t *testing.T) { testBlogListOrder(t, newRepos) })
	t.Run("BlogIncrementLikes", func(t *testing.T) { testIncrementLikes(t, newRepos) })
	t.Run("BlogConcurrentLikes", func(t *testing.T) { testConcurrentLikes(t, newRepos) })
	t.Run("BlogDelete", func(t *testing.T) { testDelete(t, newRepos) })
	t.Run("BlogConcurrentDelete", func(t *testing.T) { testConcurrentDelete(t, newRepos) })
	t.Run("BlogDeleteRacesLikes", func(t *testing.T) { testDeleteRacesLikes(t, newRepos) })
	t.Run("Reset", func(t *testing.T) { testReset(t, newRepos) })
}

// NewUser stores a user with the given username and returns it.
func NewUser(t *testing.T, users repository.UserRepository, username string) domain.User {
	t.Helper()
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Name:         "Name of " + username,
		PasswordHash: "hash",
	}
	require.NoError(t, users.Create(context.Background(), &user))
	return user
}

// NewBlog stores a blog created by creatorID and returns it.
func NewBlog(t *testing.T, blogs repository.BlogRepository, creatorID, title string) domain.Blog {
	t.Helper()
	blog := domain.Blog{
		ID:        uuid.NewString(),
		Title:     title,
		Author:    "Martin Hernandez",
		URL:       "http://" + title + ".example",
		CreatorID: creatorID,
	}
	require.NoError(t, blogs.Create(context.Background(), &blog))
	return blog
}

func testUserCreateAndLookup(t *testing.T, newRepos Factory) {
	ctx := context.Background()
	users, _ := newRepos(t)
	created := NewUser(t, users, "dayron")
	assert.False(t, created.CreatedAt.IsZero())

	byName, err := users.GetByUsername(ctx, "dayron")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Equal(t, "Name of dayron", byName.Name)
	assert.Equal(t, "hash", byName.PasswordHash)

	byID, err := users.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "dayron", byID.Username)

	_, err = users.GetByUsername(ctx, "Dayron")
	assert.ErrorIs(t, err, repository.ErrNotFound, "usernames are case-sensitive")
	_, err = users.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testUserDuplicate(t *testing.T, newRepos Factory) {
	users, _ := newRepos(t)
	first := NewUser(t, users, "dayron")

	dup := domain.User{ID: uuid.NewString(), Username: "dayron", PasswordHash: "other"}
	err := users.Create(context.Background(), &dup)
	require.ErrorIs(t, err, repository.ErrAlreadyExists)

	stored, err := users.GetByUsername(context.Background(), "dayron")
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID, "existing user must not be overwritten")
}

func testUserList(t *testing.T, newRepos Factory) {
	users, _ := newRepos(t)
	a := NewUser(t, users, "alice")
	b := NewUser(t, users, "bob")

	list, err := users.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
}

func testBlogCreateGet(t *testing.T, newRepos Factory) {
	users, blogs := newRepos(t)
	owner := NewUser(t, users, "dayron")
	created := NewBlog(t, blogs, owner.ID, "blog1")

	got, err := blogs.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "blog1", got.Title)
	assert.Equal(t, "Martin Hernandez", got.Author)
	assert.Equal(t, int64(0), got.Likes)
	assert.Equal(t, owner.ID, got.CreatorID)

	_, err = blogs.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testBlogListOrder(t *testing.T, newRepos Factory) {
	ctx := context.Background()
	users, blogs := newRepos(t)
	alice := NewUser(t, users, "alice")
	bob := NewUser(t, users, "bob")

	first := NewBlog(t, blogs, alice.ID, "first")
	second := NewBlog(t, blogs, bob.ID, "second")
	third := NewBlog(t, blogs, alice.ID, "third")

	all, err := blogs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, ids(all))

	mine, err := blogs.ListByCreator(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, third.ID}, ids(mine))
}

func testIncrementLikes(t *testing.T, newRepos Factory) {
	ctx := context.Background()
	users, blogs := newRepos(t)
	owner := NewUser(t, users, "dayron")
	blog := NewBlog(t, blogs, owner.ID, "blog1")

	for want := int64(1); want <= 3; want++ {
		got, err := blogs.IncrementLikes(ctx, blog.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got.Likes)
	}

	all, err := blogs.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(3), all[0].Likes)

	_, err = blogs.IncrementLikes(ctx, uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testConcurrentLikes(t *testing.T, newRepos Factory) {
	ctx := context.Background()
	users, blogs := newRepos(t)
	owner := NewUser(t, users, "dayron")
	blog := NewBlog(t, blogs, owner.ID, "blog1")

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := blogs.IncrementLikes(ctx, blog.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := blogs.Get(ctx, blog.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), got.Likes)
}

func testDelete(t *testing.T, newRepos Factory) {
	ctx := context.Background()
	users, blogs := newRepos(t)
	owner := NewUser(t, users, "dayron")
	blog := NewBlog(t, blogs, owner.ID, "blog1")

	require.NoError(t, blogs.Delete(ctx, blog.ID))

	_, err := blogs.Get(ctx, blog.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = blogs.IncrementLikes(ctx, blog.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, blogs.Delete(ctx, blog.ID), repository.ErrNotFound)

	all, err := blogs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testConcurrentDelete(t *testing.T, newRepos Factory) {
	ctx := context.Background()
	users, blogs := newRepos(t)
	owner := NewUser(t, users, "dayron")
	blog := NewBlog(t, blogs, owner.ID, "blog1")

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- blogs.Delete(ctx, blog.ID)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}
	assert.Equal(t, 1, succeeded, "exactly one delete wins")
}

func testDeleteRacesLikes(t *testing.T, newRepos Factory) {
	ctx := context.Background()
	users, blogs := newRepos(t)
	owner := NewUser(t, users, "dayron")
	blog := NewBlog(t, blogs, owner.ID, "blog1")

	const likers = 20
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		likeErr = make(chan error, likers)
		delErr  = make(chan error, 1)
	)
	for range likers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got, err := blogs.IncrementLikes(ctx, blog.ID)
			if err == nil && got.ID != blog.ID {
				err = fmt.Errorf("like returned blog %s", got.ID)
			}
			likeErr <- err
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		delErr <- blogs.Delete(ctx, blog.ID)
	}()
	close(start)
	wg.Wait()
	close(likeErr)

	require.NoError(t, <-delErr)
	for err := range likeErr {
		if err != nil {
			assert.ErrorIs(t, err, repository.ErrNotFound)
		}
	}

	_, err := blogs.IncrementLikes(ctx, blog.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = blogs.Get(ctx, blog.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testReset(t *testing.T, newRepos Factory) {
	ctx := context.Background()
	users, blogs := newRepos(t)
	owner := NewUser(t, users, "dayron")
	blog := NewBlog(t, blogs, owner.ID, "blog1")

	require.NoError(t, blogs.Reset(ctx))
	require.NoError(t, users.Reset(ctx))

	_, err := blogs.Get(ctx, blog.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = users.GetByUsername(ctx, "dayron")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// the username is free again after a reset
	NewUser(t, users, "dayron")
}

func ids(blogs []domain.Blog) []string {
	out := make([]string, len(blogs))
	for i := range blogs {
		out[i] = blogs[i].ID
	}
	return out
}
