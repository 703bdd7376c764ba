package search

import (
	"context"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"blogicum/models"
	"blogicum/visibility"
)

// Bleve is an embedded full-text index, for deployments without Elasticsearch.
type Bleve struct {
	index bleve.Index
}

// OpenBleve opens the index at path, creating it when it does not exist.
func OpenBleve(path string) (*Bleve, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Bleve{index: idx}, nil
}

// NewMemBleve returns an index that lives only in memory.
func NewMemBleve() (*Bleve, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Bleve{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	keyword := bleve.NewKeywordFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("title", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("text", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("author", keyword)
	docMapping.AddFieldMappingsAt("category_slug", keyword)
	docMapping.AddFieldMappingsAt(string(visibility.FieldPubDate), bleve.NewDateTimeFieldMapping())
	docMapping.AddFieldMappingsAt(string(visibility.FieldIsPublished), bleve.NewBooleanFieldMapping())
	docMapping.AddFieldMappingsAt(string(visibility.FieldCategoryIsPublished), bleve.NewBooleanFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func (b *Bleve) IndexPosts(_ context.Context, posts []models.Post) error {
	batch := b.index.NewBatch()
	for _, p := range posts {
		d := NewDocument(p)
		fields := map[string]any{
			"title":         d.Title,
			"text":          d.Text,
			"author":        d.Author,
			"category_slug": d.CategorySlug,
			string(visibility.FieldPubDate):             d.PubDate,
			string(visibility.FieldIsPublished):         d.IsPublished,
			string(visibility.FieldCategoryIsPublished): d.CategoryIsPublished,
		}
		if err := batch.Index(docID(d.ID), fields); err != nil {
			return fmt.Errorf("batch index %d: %w", d.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (b *Bleve) Search(ctx context.Context, q string, now time.Time, size int) ([]int64, error) {
	title := bleve.NewMatchQuery(q)
	title.SetField("title")
	title.SetBoost(3)
	text := bleve.NewMatchQuery(q)
	text.SetField("text")

	conjuncts := append([]query.Query{bleve.NewDisjunctionQuery(title, text)}, bleveFilter(visibility.PostRule, now)...)
	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), size, 0, false)

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	raw := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		raw = append(raw, hit.ID)
	}
	return parseIDs(raw)
}

func (b *Bleve) Close() error { return b.index.Close() }

func bleveFilter(r visibility.Rule, now time.Time) []query.Query {
	out := make([]query.Query, 0, len(r))
	for _, cond := range r {
		switch cond.Op {
		case visibility.OpIsTrue:
			q := bleve.NewBoolFieldQuery(true)
			q.SetField(string(cond.Field))
			out = append(out, q)
		case visibility.OpNotAfterNow:
			inclusive := true
			q := bleve.NewDateRangeInclusiveQuery(time.Time{}, now.UTC(), nil, &inclusive)
			q.SetField(string(cond.Field))
			out = append(out, q)
		}
	}
	return out
}
