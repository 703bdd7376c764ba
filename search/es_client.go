package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	es8 "github.com/elastic/go-elasticsearch/v8"

	"blogicum/models"
	"blogicum/visibility"
)

type ES struct {
	Client *es8.Client
	Index  string
}

func NewES(esURL, index string) (*ES, error) {
	es, err := es8.NewClient(es8.Config{Addresses: []string{esURL}, Transport: &http.Transport{}})
	if err != nil {
		return nil, err
	}
	return &ES{Client: es, Index: index}, nil
}

// EnsureIndex creates the index with an explicit mapping. An existing index
// is left alone.
func (e *ES) EnsureIndex(ctx context.Context) error {
	mapping := `{
	  "mappings": {
	    "properties": {
	      "id":                    {"type":"long"},
	      "title":                 {"type":"text"},
	      "text":                  {"type":"text"},
	      "author":                {"type":"keyword"},
	      "category_slug":         {"type":"keyword"},
	      "pub_date":              {"type":"date"},
	      "is_published":          {"type":"boolean"},
	      "category_is_published": {"type":"boolean"}
	    }
	  }
	}`
	res, err := e.Client.Indices.Create(e.Index,
		e.Client.Indices.Create.WithContext(ctx),
		e.Client.Indices.Create.WithBody(bytes.NewBufferString(mapping)))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if !res.IsError() {
		return nil
	}
	var body esErrorResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("create index %s: %s", e.Index, res.Status())
	}
	if body.Error.Type == "resource_already_exists_exception" {
		return nil
	}
	return fmt.Errorf("create index %s: %s: %s: %s", e.Index, res.Status(), body.Error.Type, body.Error.Reason)
}

type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

func (e *ES) IndexPosts(ctx context.Context, posts []models.Post) error {
	for _, p := range posts {
		if err := e.indexDoc(ctx, NewDocument(p)); err != nil {
			return fmt.Errorf("index post %d: %w", p.ID, err)
		}
	}
	return nil
}

func (e *ES) indexDoc(ctx context.Context, doc Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := e.Client.Index(e.Index, bytes.NewReader(b),
		e.Client.Index.WithContext(ctx),
		e.Client.Index.WithDocumentID(docID(doc.ID)))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	if res.IsError() {
		return fmt.Errorf("index: %s", res.Status())
	}
	return nil
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ES) Search(ctx context.Context, q string, now time.Time, size int) ([]int64, error) {
	body := map[string]any{
		"size":    size,
		"_source": false,
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":  q,
						"fields": []string{"title^3", "text"},
					},
				},
				"filter": esFilter(visibility.PostRule, now),
			},
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	res, err := e.Client.Search(
		e.Client.Search.WithContext(ctx),
		e.Client.Search.WithIndex(e.Index),
		e.Client.Search.WithBody(bytes.NewReader(b)))
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", e.Index, res.Status())
	}

	var out esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	raw := make([]string, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		raw = append(raw, h.ID)
	}
	return parseIDs(raw)
}

func (e *ES) Close() error { return nil }

// esFilter renders the rule as bool filter clauses. Index field names are the
// rule's field names.
func esFilter(r visibility.Rule, now time.Time) []any {
	out := make([]any, 0, len(r))
	for _, cond := range r {
		field := string(cond.Field)
		switch cond.Op {
		case visibility.OpIsTrue:
			out = append(out, map[string]any{"term": map[string]any{field: true}})
		case visibility.OpNotAfterNow:
			out = append(out, map[string]any{"range": map[string]any{
				field: map[string]any{"lte": now.UTC().Format(time.RFC3339Nano)},
			}})
		}
	}
	return out
}
