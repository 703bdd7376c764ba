package visibility_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"blogicum/models"
	"blogicum/visibility"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestIsVisible(t *testing.T) {
	published := &models.Category{Slug: "news", IsPublished: true}
	hidden := &models.Category{Slug: "drafts", IsPublished: false}

	tests := []struct {
		name     string
		post     *models.Post
		expected bool
	}{
		{
			name:     "published past post in published category",
			post:     &models.Post{IsPublished: true, PubDate: now.Add(-time.Hour), Category: published},
			expected: true,
		},
		{
			name:     "pub date equal to now",
			post:     &models.Post{IsPublished: true, PubDate: now, Category: published},
			expected: true,
		},
		{
			name:     "one second in the future",
			post:     &models.Post{IsPublished: true, PubDate: now.Add(time.Second), Category: published},
			expected: false,
		},
		{
			name:     "unpublished post",
			post:     &models.Post{IsPublished: false, PubDate: now.Add(-time.Hour), Category: published},
			expected: false,
		},
		{
			name:     "unpublished category",
			post:     &models.Post{IsPublished: true, PubDate: now.Add(-time.Hour), Category: hidden},
			expected: false,
		},
		{
			name:     "no category",
			post:     &models.Post{IsPublished: true, PubDate: now.Add(-time.Hour)},
			expected: false,
		},
		{
			name:     "nil post",
			post:     nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			c.Assert(visibility.IsVisible(tt.post, now), qt.Equals, tt.expected)
		})
	}
}

func TestScheduledPostBecomesVisible(t *testing.T) {
	c := qt.New(t)

	p := &models.Post{
		IsPublished: true,
		PubDate:     now.Add(time.Second),
		Category:    &models.Category{IsPublished: true},
	}
	c.Assert(visibility.IsVisible(p, now), qt.IsFalse)
	c.Assert(visibility.IsVisible(p, now.Add(time.Second)), qt.IsTrue)
}

func TestRuleSQL(t *testing.T) {
	c := qt.New(t)

	cols := visibility.Columns{
		visibility.FieldIsPublished:         "p.is_published",
		visibility.FieldPubDate:             "p.pub_date",
		visibility.FieldCategoryIsPublished: "c.is_published",
	}

	clause, args, err := visibility.PostRule.SQL(cols, now, visibility.Postgres, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(clause, qt.Equals, "p.is_published = $3 AND p.pub_date <= $4 AND c.is_published = $5")
	c.Assert(args, qt.DeepEquals, []any{true, now, true})

	clause, _, err = visibility.PostRule.SQL(cols, now, visibility.SQLite, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(clause, qt.Equals, "p.is_published = ? AND julianday(p.pub_date) <= julianday(?) AND c.is_published = ?")
}

func TestRuleSQL_MissingColumn(t *testing.T) {
	c := qt.New(t)

	_, _, err := visibility.PostRule.SQL(visibility.Columns{}, now, visibility.Postgres, 0)
	c.Assert(err, qt.ErrorMatches, `no column for field "is_published"`)
}

func TestDialectTime(t *testing.T) {
	c := qt.New(t)

	c.Assert(visibility.Postgres.Time("p.pub_date"), qt.Equals, "p.pub_date")
	c.Assert(visibility.SQLite.Time("p.pub_date"), qt.Equals, "julianday(p.pub_date)")
}
