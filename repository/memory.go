package repository

import (
	"context"
	"slices"
	"sort"
	"time"

	"blogicum/models"
	"blogicum/visibility"
)

// MemoryRepo keeps posts in a slice and filters them with the same
// publication rule the SQL backends render. Relations are stored resolved.
type MemoryRepo struct {
	Posts      []models.Post
	Categories []models.Category
}

func NewMemoryRepo(categories []models.Category, posts []models.Post) *MemoryRepo {
	return &MemoryRepo{Posts: posts, Categories: categories}
}

func (r *MemoryRepo) ListVisible(_ context.Context, now time.Time, limit int) ([]models.Post, error) {
	out := r.filter(now, func(models.Post) bool { return true })
	if limit <= 0 {
		return []models.Post{}, nil
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) GetVisible(_ context.Context, id int64, now time.Time) (*models.Post, error) {
	for i := range r.Posts {
		if r.Posts[i].ID == id && visibility.IsVisible(&r.Posts[i], now) {
			p := r.Posts[i]
			return &p, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryRepo) ListVisibleByCategory(_ context.Context, categoryID int64, now time.Time) ([]models.Post, error) {
	return r.filter(now, func(p models.Post) bool {
		return p.Category != nil && p.Category.ID == categoryID
	}), nil
}

func (r *MemoryRepo) ListVisibleByIDs(_ context.Context, ids []int64, now time.Time) ([]models.Post, error) {
	return r.filter(now, func(p models.Post) bool {
		return slices.Contains(ids, p.ID)
	}), nil
}

func (r *MemoryRepo) ListAll(context.Context) ([]models.Post, error) {
	out := slices.Clone(r.Posts)
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryRepo) PublishedCategoryBySlug(_ context.Context, slug string) (*models.Category, error) {
	for _, c := range r.Categories {
		if c.Slug == slug && c.IsPublished {
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *MemoryRepo) filter(now time.Time, keep func(models.Post) bool) []models.Post {
	out := []models.Post{}
	for i := range r.Posts {
		if keep(r.Posts[i]) && visibility.IsVisible(&r.Posts[i], now) {
			out = append(out, r.Posts[i])
		}
	}
	sortNewestFirst(out)
	return out
}

// sortNewestFirst orders by pub_date desc, then id desc, matching the SQL
// ORDER BY.
func sortNewestFirst(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].PubDate.Equal(posts[j].PubDate) {
			return posts[i].PubDate.After(posts[j].PubDate)
		}
		return posts[i].ID > posts[j].ID
	})
}
