package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"bloglist/internal/domain"
	"bloglist/internal/repository"
)

// blogRecord guards a single blog. removed is set under mu by Delete so an
// in-flight like that already holds the pointer still reports ErrNotFound.
type blogRecord struct {
	mu      sync.Mutex
	seq     uint64
	blog    domain.Blog
	removed bool
}

type BlogRepository struct {
	mu      sync.RWMutex
	records map[string]*blogRecord
	nextSeq uint64
}

func NewBlogRepository() *BlogRepository {
	return &BlogRepository{records: make(map[string]*blogRecord)}
}

func (r *BlogRepository) Init(context.Context) error { return nil }

func (r *BlogRepository) Create(_ context.Context, blog *domain.Blog) error {
	if blog.CreatedAt.IsZero() {
		blog.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[blog.ID]; exists {
		return fmt.Errorf("blog %s: %w", blog.ID, repository.ErrAlreadyExists)
	}
	r.nextSeq++
	r.records[blog.ID] = &blogRecord{seq: r.nextSeq, blog: *blog}
	return nil
}

func (r *BlogRepository) Get(_ context.Context, id string) (*domain.Blog, error) {
	rec := r.lookup(id)
	if rec == nil {
		return nil, repository.ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return nil, repository.ErrNotFound
	}
	blog := rec.blog
	return &blog, nil
}

func (r *BlogRepository) List(context.Context) ([]domain.Blog, error) {
	return r.snapshot(func(domain.Blog) bool { return true }), nil
}

func (r *BlogRepository) ListByCreator(_ context.Context, creatorID string) ([]domain.Blog, error) {
	return r.snapshot(func(b domain.Blog) bool { return b.CreatorID == creatorID }), nil
}

func (r *BlogRepository) IncrementLikes(_ context.Context, id string) (*domain.Blog, error) {
	rec := r.lookup(id)
	if rec == nil {
		return nil, repository.ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.removed {
		return nil, repository.ErrNotFound
	}
	rec.blog.Likes++
	blog := rec.blog
	return &blog, nil
}

func (r *BlogRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if ok {
		delete(r.records, id)
	}
	r.mu.Unlock()
	if !ok {
		return repository.ErrNotFound
	}

	rec.mu.Lock()
	rec.removed = true
	rec.mu.Unlock()
	return nil
}

func (r *BlogRepository) Reset(context.Context) error {
	r.mu.Lock()
	old := r.records
	r.records = make(map[string]*blogRecord)
	r.mu.Unlock()

	for _, rec := range old {
		rec.mu.Lock()
		rec.removed = true
		rec.mu.Unlock()
	}
	return nil
}

func (r *BlogRepository) lookup(id string) *blogRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[id]
}

// snapshot copies matching blogs in insertion order.
func (r *BlogRepository) snapshot(keep func(domain.Blog) bool) []domain.Blog {
	r.mu.RLock()
	recs := make([]*blogRecord, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	slices.SortFunc(recs, func(a, b *blogRecord) int { return cmp.Compare(a.seq, b.seq) })

	blogs := make([]domain.Blog, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		blog, removed := rec.blog, rec.removed
		rec.mu.Unlock()
		if removed || !keep(blog) {
			continue
		}
		blogs = append(blogs, blog)
	}
	return blogs
}

var _ repository.BlogRepository = (*BlogRepository)(nil)
