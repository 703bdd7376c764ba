package search

import (
	"context"
	"strconv"
	"time"

	"blogicum/models"
)

// Document is the indexed form of a post. It carries the publication fields
// so the engine can apply the visibility rule at query time.
type Document struct {
	ID                  int64     `json:"id"`
	Title               string    `json:"title"`
	Text                string    `json:"text"`
	Author              string    `json:"author"`
	CategorySlug        string    `json:"category_slug"`
	PubDate             time.Time `json:"pub_date"`
	IsPublished         bool      `json:"is_published"`
	CategoryIsPublished bool      `json:"category_is_published"`
}

func NewDocument(p models.Post) Document {
	d := Document{
		ID:          p.ID,
		Title:       p.Title,
		Text:        p.Text,
		Author:      p.Author.Username,
		PubDate:     p.PubDate.UTC(),
		IsPublished: p.IsPublished,
	}
	if p.Category != nil {
		d.CategorySlug = p.Category.Slug
		d.CategoryIsPublished = p.Category.IsPublished
	}
	return d
}

// Engine is a full-text index over posts. Search returns ids of visible
// posts ordered by relevance.
type Engine interface {
	IndexPosts(ctx context.Context, posts []models.Post) error
	Search(ctx context.Context, query string, now time.Time, size int) ([]int64, error)
	Close() error
}

func docID(id int64) string { return strconv.FormatInt(id, 10) }

func parseIDs(raw []string) ([]int64, error) {
	out := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
