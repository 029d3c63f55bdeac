// Package snapshot periodically exports the ordered blog list to object storage.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bloglist/internal/domain"
	"bloglist/internal/service"
	"bloglist/internal/storage"
)

const keyTimeLayout = "20060102T150405.000000000Z"

// Exporter uploads JSON snapshots of the blog list.
type Exporter interface {
	Start(ctx context.Context) error
	Shutdown()
	Export(ctx context.Context) (string, error)
	List(ctx context.Context) ([]storage.ObjectInfo, error)
}

type Config struct {
	Bucket    string
	KeyPrefix string
	// Interval of zero disables the periodic loop; Export still works on demand.
	Interval time.Duration
	// Retain keeps only the newest snapshots after each export. Zero keeps all.
	Retain int
	Logger *logrus.Logger
	Now    func() time.Time
}

type document struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Blogs       []documentBlog `json:"blogs"`
}

type documentBlog struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	URL       string    `json:"url"`
	Likes     int64     `json:"likes"`
	CreatorID string    `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
}

type exporter struct {
	cfg     Config
	blogs   service.BlogService
	storage storage.Service

	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewExporter(cfg Config, blogs service.BlogService, store storage.Service) Exporter {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &exporter{
		cfg:     cfg,
		blogs:   blogs,
		storage: store,
	}
}

func (e *exporter) Start(ctx context.Context) error {
	if e.cfg.Bucket == "" {
		return fmt.Errorf("snapshot bucket is required")
	}
	if e.cfg.Interval <= 0 {
		e.cfg.Logger.Info("snapshot exporter started in on-demand mode")
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go e.loop(loopCtx)
	e.cfg.Logger.Infof("snapshot exporter started, interval %s", e.cfg.Interval)
	return nil
}

func (e *exporter) Shutdown() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.cfg.Logger.Info("snapshot exporter stopped")
}

func (e *exporter) loop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			location, err := e.Export(ctx)
			if err != nil {
				e.cfg.Logger.WithError(err).Warn("periodic snapshot failed")
				continue
			}
			e.cfg.Logger.WithField("location", location).Debug("snapshot exported")
		}
	}
}

// Export writes one snapshot and prunes old ones beyond Retain.
func (e *exporter) Export(ctx context.Context) (string, error) {
	// serialise exports so pruning never races a concurrent upload
	e.mu.Lock()
	defer e.mu.Unlock()

	blogs, err := e.blogs.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list blogs: %w", err)
	}

	now := e.cfg.Now().UTC()
	doc := document{GeneratedAt: now, Blogs: make([]documentBlog, len(blogs))}
	for i, b := range blogs {
		doc.Blogs[i] = toDocumentBlog(b)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	location, err := e.storage.Put(ctx, &buf, storage.PutOptions{
		Bucket:      e.cfg.Bucket,
		Key:         e.key(now),
		ContentType: "application/json",
	})
	if err != nil {
		return "", err
	}

	if err := e.prune(ctx); err != nil {
		e.cfg.Logger.WithError(err).Warn("prune snapshots")
	}
	return location, nil
}

// List returns stored snapshots, newest first.
func (e *exporter) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	objects, err := e.storage.ListObjects(ctx, e.cfg.Bucket, e.prefix())
	if err != nil {
		return nil, err
	}
	slices.SortFunc(objects, func(a, b storage.ObjectInfo) int {
		return strings.Compare(b.Key, a.Key)
	})
	return objects, nil
}

func (e *exporter) prune(ctx context.Context) error {
	if e.cfg.Retain <= 0 {
		return nil
	}
	objects, err := e.List(ctx)
	if err != nil {
		return err
	}
	if len(objects) <= e.cfg.Retain {
		return nil
	}

	stale := make([]string, 0, len(objects)-e.cfg.Retain)
	for _, obj := range objects[e.cfg.Retain:] {
		stale = append(stale, obj.Key)
	}
	return e.storage.DeleteObjects(ctx, e.cfg.Bucket, stale)
}

func (e *exporter) prefix() string {
	if e.cfg.KeyPrefix == "" {
		return "blogs-"
	}
	return e.cfg.KeyPrefix + "/blogs-"
}

func (e *exporter) key(at time.Time) string {
	name := "blogs-" + at.Format(keyTimeLayout) + ".json"
	if e.cfg.KeyPrefix == "" {
		return name
	}
	return path.Join(e.cfg.KeyPrefix, name)
}

func toDocumentBlog(b domain.Blog) documentBlog {
	return documentBlog{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		URL:       b.URL,
		Likes:     b.Likes,
		CreatorID: b.CreatorID,
		CreatedAt: b.CreatedAt,
	}
}
