package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"blogicum/models"
	"blogicum/repository"
	"blogicum/visibility"
)

var (
	now  = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	west = time.FixedZone("UTC-5", -5*60*60)
	east = time.FixedZone("UTC+3", 3*60*60)
)

type fixture struct {
	db   *sql.DB
	repo *repository.PostRepo
}

func newFixture(c *qt.C) *fixture {
	db, err := repository.OpenSQLite(filepath.Join(c.TempDir(), "blog.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { db.Close() })

	_, err = db.Exec(`INSERT INTO users (id, username, first_name, last_name) VALUES (1, 'admin', 'Ada', 'Lovelace')`)
	c.Assert(err, qt.IsNil)

	return &fixture{db: db, repo: repository.NewSQLPostRepo(db)}
}

func (f *fixture) category(c *qt.C, slug string, published bool) int64 {
	res, err := f.db.Exec(
		`INSERT INTO categories (title, description, slug, is_published, created_at) VALUES (?, ?, ?, ?, ?)`,
		"Title "+slug, "About "+slug, slug, published, now.Add(-48*time.Hour))
	c.Assert(err, qt.IsNil)
	id, err := res.LastInsertId()
	c.Assert(err, qt.IsNil)
	return id
}

func (f *fixture) location(c *qt.C, name string) int64 {
	res, err := f.db.Exec(
		`INSERT INTO locations (name, is_published, created_at) VALUES (?, ?, ?)`,
		name, true, now.Add(-48*time.Hour))
	c.Assert(err, qt.IsNil)
	id, err := res.LastInsertId()
	c.Assert(err, qt.IsNil)
	return id
}

func (f *fixture) post(c *qt.C, title string, published bool, pubDate time.Time, categoryID, locationID *int64) int64 {
	res, err := f.db.Exec(
		`INSERT INTO posts (title, text, pub_date, author_id, location_id, category_id, is_published, created_at)
		 VALUES (?, ?, ?, 1, ?, ?, ?, ?)`,
		title, "Body of "+title, pubDate, locationID, categoryID, published, now.Add(-72*time.Hour))
	c.Assert(err, qt.IsNil)
	id, err := res.LastInsertId()
	c.Assert(err, qt.IsNil)
	return id
}

func TestStoreFilterMatchesPredicate(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	ctx := context.Background()

	published := f.category(c, "published", true)
	hidden := f.category(c, "hidden", false)

	categories := []struct {
		name string
		id   *int64
		cat  *models.Category
	}{
		{"published category", &published, &models.Category{IsPublished: true}},
		{"unpublished category", &hidden, &models.Category{IsPublished: false}},
		{"no category", nil, nil},
	}
	dates := []struct {
		name string
		at   time.Time
	}{
		{"past", now.Add(-time.Hour)},
		{"now", now},
		{"future", now.Add(time.Second)},
		{"future west", now.Add(time.Hour).In(west)},
		{"past east", now.Add(-time.Hour).In(east)},
		{"now east", now.In(east)},
		{"future east", now.Add(time.Second).In(east)},
		{"past west", now.Add(-time.Second).In(west)},
	}

	for _, cat := range categories {
		for _, d := range dates {
			for _, isPublished := range []bool{true, false} {
				name := fmt.Sprintf("%s/%s/published=%v", cat.name, d.name, isPublished)
				t.Run(name, func(t *testing.T) {
					c := qt.New(t)

					id := f.post(c, name, isPublished, d.at, cat.id, nil)
					inMemory := visibility.IsVisible(&models.Post{
						IsPublished: isPublished,
						PubDate:     d.at,
						Category:    cat.cat,
					}, now)

					p, err := f.repo.GetVisible(ctx, id, now)
					if inMemory {
						c.Assert(err, qt.IsNil)
						c.Assert(p.ID, qt.Equals, id)
					} else {
						c.Assert(err, qt.Equals, models.ErrNotFound)
						c.Assert(p, qt.IsNil)
					}
				})
			}
		}
	}
}

func TestListVisible(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	ctx := context.Background()

	news := f.category(c, "news", true)
	for i := 1; i <= 7; i++ {
		f.post(c, fmt.Sprintf("post %d", i), true, now.Add(-time.Duration(i)*time.Hour), &news, nil)
	}
	f.post(c, "scheduled", true, now.Add(time.Hour), &news, nil)
	f.post(c, "draft", false, now.Add(-30*time.Minute), &news, nil)

	posts, err := f.repo.ListVisible(ctx, now, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(posts, qt.HasLen, 5)
	for i, p := range posts {
		c.Assert(visibility.IsVisible(&p, now), qt.IsTrue)
		c.Assert(p.Title, qt.Equals, fmt.Sprintf("post %d", i+1))
		if i > 0 {
			c.Assert(p.PubDate.After(posts[i-1].PubDate), qt.IsFalse)
		}
	}

	posts, err = f.repo.ListVisible(ctx, now, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(posts, qt.HasLen, 0)
}

func TestListVisible_TieBreakByID(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	news := f.category(c, "news", true)
	first := f.post(c, "first", true, now.Add(-time.Hour), &news, nil)
	second := f.post(c, "second", true, now.Add(-time.Hour), &news, nil)

	posts, err := f.repo.ListVisible(context.Background(), now, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(posts, qt.HasLen, 2)
	c.Assert(posts[0].ID, qt.Equals, second)
	c.Assert(posts[1].ID, qt.Equals, first)
}

func TestListVisible_MixedOffsets(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	news := f.category(c, "news", true)
	older := f.post(c, "older", true, now.Add(-2*time.Hour).In(east), &news, nil)
	newer := f.post(c, "newer", true, now.Add(-time.Hour).In(west), &news, nil)
	f.post(c, "scheduled", true, now.Add(time.Hour).In(west), &news, nil)

	posts, err := f.repo.ListVisible(context.Background(), now.In(east), 10)
	c.Assert(err, qt.IsNil)
	c.Assert(posts, qt.HasLen, 2)
	c.Assert(posts[0].ID, qt.Equals, newer)
	c.Assert(posts[1].ID, qt.Equals, older)
}

func TestGetVisible_ResolvesRelations(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	news := f.category(c, "news", true)
	loc := f.location(c, "Moscow")
	id := f.post(c, "with relations", true, now.Add(-time.Hour), &news, &loc)

	p, err := f.repo.GetVisible(context.Background(), id, now)
	c.Assert(err, qt.IsNil)
	c.Assert(p.Author.Username, qt.Equals, "admin")
	c.Assert(p.Author.FullName(), qt.Equals, "Ada Lovelace")
	c.Assert(p.Location, qt.IsNotNil)
	c.Assert(p.Location.Name, qt.Equals, "Moscow")
	c.Assert(p.Category, qt.IsNotNil)
	c.Assert(p.Category.Slug, qt.Equals, "news")
	c.Assert(p.PubDate.Equal(now.Add(-time.Hour)), qt.IsTrue)
}

func TestGetVisible_Missing(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	p, err := f.repo.GetVisible(context.Background(), 42, now)
	c.Assert(err, qt.Equals, models.ErrNotFound)
	c.Assert(p, qt.IsNil)
}

func TestListVisibleByCategory(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	ctx := context.Background()

	news := f.category(c, "news", true)
	other := f.category(c, "other", true)
	p1 := f.post(c, "P1", true, now.Add(-24*time.Hour), &news, nil)
	f.post(c, "P2", true, now.Add(24*time.Hour), &news, nil)
	f.post(c, "P3", true, now.Add(-24*time.Hour), &other, nil)

	posts, err := f.repo.ListVisibleByCategory(ctx, news, now)
	c.Assert(err, qt.IsNil)
	c.Assert(posts, qt.HasLen, 1)
	c.Assert(posts[0].ID, qt.Equals, p1)
}

func TestPublishedCategoryBySlug(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	ctx := context.Background()

	f.category(c, "news", true)
	f.category(c, "hidden", false)

	cat, err := f.repo.PublishedCategoryBySlug(ctx, "news")
	c.Assert(err, qt.IsNil)
	c.Assert(cat.Slug, qt.Equals, "news")
	c.Assert(cat.Description, qt.Equals, "About news")

	_, err = f.repo.PublishedCategoryBySlug(ctx, "hidden")
	c.Assert(err, qt.Equals, models.ErrNotFound)

	_, err = f.repo.PublishedCategoryBySlug(ctx, "missing")
	c.Assert(err, qt.Equals, models.ErrNotFound)
}

func TestCategorySlugConstraint(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	for _, slug := range []string{"news", "long-read_2024", "A-Z"} {
		f.category(c, slug, true)
	}
	for _, slug := range []string{"", "two words", "../etc", "новости", strings.Repeat("a", models.MaxSlugLength+1)} {
		_, err := f.db.Exec(
			`INSERT INTO categories (title, slug, is_published) VALUES (?, ?, ?)`, "Bad", slug, true)
		c.Assert(err, qt.ErrorMatches, `.*CHECK constraint failed.*`, qt.Commentf("slug %q", slug))
	}
}

func TestListVisibleByIDs(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	ctx := context.Background()

	news := f.category(c, "news", true)
	a := f.post(c, "a", true, now.Add(-2*time.Hour), &news, nil)
	b := f.post(c, "b", false, now.Add(-time.Hour), &news, nil)
	d := f.post(c, "d", true, now.Add(-time.Hour), &news, nil)

	posts, err := f.repo.ListVisibleByIDs(ctx, []int64{a, b, d}, now)
	c.Assert(err, qt.IsNil)
	c.Assert(posts, qt.HasLen, 2)
	c.Assert(posts[0].ID, qt.Equals, d)
	c.Assert(posts[1].ID, qt.Equals, a)

	posts, err = f.repo.ListVisibleByIDs(ctx, nil, now)
	c.Assert(err, qt.IsNil)
	c.Assert(posts, qt.HasLen, 0)
}

func TestListAll(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	news := f.category(c, "news", true)
	f.post(c, "visible", true, now.Add(-time.Hour), &news, nil)
	f.post(c, "draft", false, now.Add(-time.Hour), &news, nil)
	f.post(c, "orphan", true, now.Add(-time.Hour), nil, nil)

	posts, err := f.repo.ListAll(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(posts, qt.HasLen, 3)
}

func TestCategoryDeleteNullsReference(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	news := f.category(c, "news", true)
	id := f.post(c, "survivor", true, now.Add(-time.Hour), &news, nil)

	_, err := f.db.Exec(`DELETE FROM categories WHERE id = ?`, news)
	c.Assert(err, qt.IsNil)

	posts, err := f.repo.ListAll(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(posts, qt.HasLen, 1)
	c.Assert(posts[0].ID, qt.Equals, id)
	c.Assert(posts[0].Category, qt.IsNil)

	_, err = f.repo.GetVisible(context.Background(), id, now)
	c.Assert(err, qt.Equals, models.ErrNotFound)
}
