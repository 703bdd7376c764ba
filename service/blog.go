// Package service answers the three public reads of the blog and the
// full-text search. Every read takes the current time as an argument and
// applies the publication rule before anything reaches the caller.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"blogicum/models"
	"blogicum/search"
)

// Store is the entity store the service reads from. Every method that takes
// now applies the publication rule itself; none of them return hidden posts.
type Store interface {
	ListVisible(ctx context.Context, now time.Time, limit int) ([]models.Post, error)
	GetVisible(ctx context.Context, id int64, now time.Time) (*models.Post, error)
	ListVisibleByCategory(ctx context.Context, categoryID int64, now time.Time) ([]models.Post, error)
	ListVisibleByIDs(ctx context.Context, ids []int64, now time.Time) ([]models.Post, error)
	ListAll(ctx context.Context) ([]models.Post, error)
	PublishedCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
}

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// ValidSlug reports whether s is a syntactically valid category slug.
func ValidSlug(s string) bool {
	return len(s) <= models.MaxSlugLength && slugPattern.MatchString(s)
}

type Blog struct {
	store  Store
	engine search.Engine
	logger *slog.Logger
}

// New returns a Blog over store. engine may be nil, in which case search
// always comes back empty.
func New(store Store, engine search.Engine) *Blog {
	return &Blog{store: store, engine: engine, logger: slog.Default()}
}

func (b *Blog) WithLogger(l *slog.Logger) *Blog {
	tmp := *b
	tmp.logger = l
	return &tmp
}

// ListRecent returns at most limit visible posts, newest first.
func (b *Blog) ListRecent(ctx context.Context, now time.Time, limit int) ([]models.Post, error) {
	posts, err := b.store.ListVisible(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent posts: %w", err)
	}
	return posts, nil
}

// GetVisible returns models.ErrNotFound for both unknown and hidden posts.
func (b *Blog) GetVisible(ctx context.Context, id int64, now time.Time) (*models.Post, error) {
	p, err := b.store.GetVisible(ctx, id, now)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return p, nil
}

// ListByCategory resolves a published category by slug and returns its
// visible posts, newest first.
func (b *Blog) ListByCategory(ctx context.Context, slug string, now time.Time) (*models.Category, []models.Post, error) {
	if !ValidSlug(slug) {
		return nil, nil, models.ErrNotFound
	}
	cat, err := b.store.PublishedCategoryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("get category %q: %w", slug, err)
	}
	posts, err := b.store.ListVisibleByCategory(ctx, cat.ID, now)
	if err != nil {
		return nil, nil, fmt.Errorf("list posts of category %q: %w", slug, err)
	}
	return cat, posts, nil
}

// Search returns visible posts matching query in relevance order. The store
// re-checks visibility, so a stale index cannot leak a hidden post.
func (b *Blog) Search(ctx context.Context, query string, now time.Time, limit int) ([]models.Post, error) {
	query = strings.TrimSpace(query)
	if b.engine == nil || query == "" || limit <= 0 {
		return []models.Post{}, nil
	}
	ids, err := b.engine.Search(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	posts, err := b.store.ListVisibleByIDs(ctx, ids, now)
	if err != nil {
		return nil, fmt.Errorf("load search hits: %w", err)
	}

	byID := make(map[int64]models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	out := make([]models.Post, 0, len(posts))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	if dropped := len(ids) - len(out); dropped > 0 {
		b.logger.Debug("Search hits dropped by store visibility check", "query", query, "dropped", dropped)
	}
	return out, nil
}

// Reindex pushes every post into the search engine. Hidden posts are indexed
// too; the engine filters them at query time.
func (b *Blog) Reindex(ctx context.Context) (int, error) {
	if b.engine == nil {
		return 0, fmt.Errorf("no search engine configured")
	}
	posts, err := b.store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list posts: %w", err)
	}
	if err := b.engine.IndexPosts(ctx, posts); err != nil {
		return 0, fmt.Errorf("index posts: %w", err)
	}
	b.logger.Info("Reindexed posts", "count", len(posts))
	return len(posts), nil
}
