package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"blogicum/models"
	"blogicum/visibility"
)

// Posts come back with author, location and category joined in, so callers
// never issue a follow-up lookup per item.
const postSelect = `SELECT p.id, p.title, p.text, p.pub_date, p.is_published, p.created_at,
	u.id, u.username, u.first_name, u.last_name,
	l.id, l.name, l.is_published, l.created_at,
	c.id, c.title, c.description, c.slug, c.is_published, c.created_at
FROM posts p
JOIN users u ON u.id = p.author_id
LEFT JOIN locations l ON l.id = p.location_id
LEFT JOIN categories c ON c.id = p.category_id`


var postColumns = visibility.Columns{
	visibility.FieldIsPublished:         "p.is_published",
	visibility.FieldPubDate:             "p.pub_date",
	visibility.FieldCategoryIsPublished: "c.is_published",
}

type PostRepo struct {
	q querier
}

func NewPostRepo(db *pgxpool.Pool) *PostRepo { return &PostRepo{q: pgxQuerier{pool: db}} }

// NewSQLPostRepo serves the same queries from a database/sql handle in the
// SQLite dialect: "?" placeholders and timestamps compared through julianday.
func NewSQLPostRepo(db *sql.DB) *PostRepo { return &PostRepo{q: sqlQuerier{db: db}} }

// visibleWhere renders the publication rule plus any extra conditions.
// Extra conditions come first so their placeholders are numbered 1..len(args).
func (r *PostRepo) visibleWhere(now time.Time, extra string, args ...any) (string, []any, error) {
	clause, ruleArgs, err := visibility.PostRule.SQL(postColumns, now.UTC(), r.q.dialect(), len(args))
	if err != nil {
		return "", nil, err
	}
	if extra != "" {
		clause = extra + " AND " + clause
	}
	return " WHERE " + clause, append(args, ruleArgs...), nil
}

// order sorts newest first by instant, breaking ties by id.
func (r *PostRepo) order() string {
	return " ORDER BY " + r.q.dialect().Time("p.pub_date") + " DESC, p.id DESC"
}

func (r *PostRepo) ph(n int) string { return r.q.dialect().Placeholder(n) }

func (r *PostRepo) ListVisible(ctx context.Context, now time.Time, limit int) ([]models.Post, error) {
	if limit <= 0 {
		return []models.Post{}, nil
	}
	where, args, err := r.visibleWhere(now, "")
	if err != nil {
		return nil, err
	}
	args = append(args, limit)
	stmt := postSelect + where + r.order() + " LIMIT " + r.ph(len(args))
	return r.list(ctx, stmt, args...)
}

func (r *PostRepo) GetVisible(ctx context.Context, id int64, now time.Time) (*models.Post, error) {
	where, args, err := r.visibleWhere(now, "p.id = "+r.ph(1), id)
	if err != nil {
		return nil, err
	}
	p, err := scanPost(r.q.queryRow(ctx, postSelect+where, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *PostRepo) ListVisibleByCategory(ctx context.Context, categoryID int64, now time.Time) ([]models.Post, error) {
	where, args, err := r.visibleWhere(now, "p.category_id = "+r.ph(1), categoryID)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, postSelect+where+r.order(), args...)
}

// ListVisibleByIDs returns the visible subset of ids in store order.
func (r *PostRepo) ListVisibleByIDs(ctx context.Context, ids []int64, now time.Time) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = r.ph(i + 1)
		args[i] = id
	}
	where, args, err := r.visibleWhere(now, "p.id IN ("+strings.Join(marks, ",")+")", args...)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, postSelect+where+r.order(), args...)
}

// ListAll ignores publication state. It feeds the search indexer only.
func (r *PostRepo) ListAll(ctx context.Context) ([]models.Post, error) {
	return r.list(ctx, postSelect+r.order())
}

// PublishedCategoryBySlug resolves a category only when it is published.
func (r *PostRepo) PublishedCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	row := r.q.queryRow(ctx,
		`SELECT id, title, description, slug, is_published, created_at
		 FROM categories
		 WHERE slug = `+r.ph(1)+` AND is_published = `+r.ph(2), slug, true)
	var c models.Category
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Slug, &c.IsPublished, &c.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *PostRepo) list(ctx context.Context, stmt string, args ...any) ([]models.Post, error) {
	rs, err := r.q.query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rs.Close()

	out := []models.Post{}
	for rs.Next() {
		p, err := scanPost(rs)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, *p)
	}
	return out, rs.Err()
}

func scanPost(r row) (*models.Post, error) {
	var (
		p models.Post

		locID        *int64
		locName      *string
		locPublished *bool
		locCreated   *time.Time

		catID          *int64
		catTitle       *string
		catDescription *string
		catSlug        *string
		catPublished   *bool
		catCreated     *time.Time
	)
	err := r.Scan(
		&p.ID, &p.Title, &p.Text, &p.PubDate, &p.IsPublished, &p.CreatedAt,
		&p.Author.ID, &p.Author.Username, &p.Author.FirstName, &p.Author.LastName,
		&locID, &locName, &locPublished, &locCreated,
		&catID, &catTitle, &catDescription, &catSlug, &catPublished, &catCreated,
	)
	if err != nil {
		return nil, err
	}
	if locID != nil {
		p.Location = &models.Location{
			ID:          *locID,
			Name:        deref(locName),
			IsPublished: deref(locPublished),
			CreatedAt:   deref(locCreated),
		}
	}
	if catID != nil {
		p.Category = &models.Category{
			ID:          *catID,
			Title:       deref(catTitle),
			Description: deref(catDescription),
			Slug:        deref(catSlug),
			IsPublished: deref(catPublished),
			CreatedAt:   deref(catCreated),
		}
	}
	return &p, nil
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
