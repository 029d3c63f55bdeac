package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bloglist/internal/domain"
	"bloglist/internal/repository"
)

const createBlogsTable = `
CREATE TABLE IF NOT EXISTS blogs (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL,
	likes INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
	creator_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_blogs_creator ON blogs(creator_id);
`

const blogColumns = `id, title, author, url, likes, creator_id, created_at`

type BlogRepository struct {
	db *sql.DB
}

func NewBlogRepository(db *sql.DB) repository.BlogRepository {
	return &BlogRepository{db: db}
}

func (r *BlogRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createBlogsTable); err != nil {
		return fmt.Errorf("create blogs table: %w", err)
	}
	return nil
}

func (r *BlogRepository) Create(ctx context.Context, blog *domain.Blog) error {
	if blog.CreatedAt.IsZero() {
		blog.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO blogs (id, title, author, url, likes, creator_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		blog.ID,
		blog.Title,
		blog.Author,
		blog.URL,
		blog.Likes,
		blog.CreatorID,
		blog.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("blog %s: %w", blog.ID, repository.ErrAlreadyExists)
		}
		return fmt.Errorf("insert blog: %w", err)
	}
	return nil
}

func (r *BlogRepository) Get(ctx context.Context, id string) (*domain.Blog, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+blogColumns+` FROM blogs WHERE id = ?`, id)
	return scanBlog(row)
}

func (r *BlogRepository) List(ctx context.Context) ([]domain.Blog, error) {
	return r.query(ctx, `SELECT `+blogColumns+` FROM blogs ORDER BY seq ASC`)
}

func (r *BlogRepository) ListByCreator(ctx context.Context, creatorID string) ([]domain.Blog, error) {
	return r.query(ctx, `SELECT `+blogColumns+` FROM blogs WHERE creator_id = ? ORDER BY seq ASC`, creatorID)
}

// IncrementLikes bumps the counter and reads it back inside one transaction
// so concurrent likes never lose an update.
func (r *BlogRepository) IncrementLikes(ctx context.Context, id string) (*domain.Blog, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin like tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE blogs SET likes = likes + 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("increment likes: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("increment likes rows affected: %w", err)
	}
	if affected == 0 {
		return nil, repository.ErrNotFound
	}

	blog, err := scanBlog(tx.QueryRowContext(ctx, `SELECT `+blogColumns+` FROM blogs WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit like tx: %w", err)
	}
	return blog, nil
}

func (r *BlogRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blogs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete blog rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *BlogRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM blogs`); err != nil {
		return fmt.Errorf("reset blogs: %w", err)
	}
	return nil
}

func (r *BlogRepository) query(ctx context.Context, query string, args ...any) ([]domain.Blog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list blogs: %w", err)
	}
	defer rows.Close()

	var blogs []domain.Blog
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, *blog)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blogs: %w", err)
	}
	return blogs, nil
}

func scanBlog(row interface {
	Scan(dest ...any) error
}) (*domain.Blog, error) {
	var blog domain.Blog
	if err := row.Scan(
		&blog.ID,
		&blog.Title,
		&blog.Author,
		&blog.URL,
		&blog.Likes,
		&blog.CreatorID,
		&blog.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan blog: %w", err)
	}
	return &blog, nil
}
