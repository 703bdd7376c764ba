// Package visibility defines when a post may be shown to anonymous readers.
//
// The rule is declared once, as data, in PostRule. The in-memory predicate,
// the SQL clause and the search engine filters are all derived from it.
package visibility

import (
	"fmt"
	"strings"
	"time"

	"blogicum/models"
)

// Field names a post attribute that a Condition inspects.
type Field string

const (
	FieldIsPublished         Field = "is_published"
	FieldPubDate             Field = "pub_date"
	FieldCategoryIsPublished Field = "category_is_published"
)

// Op is the comparison a Condition applies to its field.
type Op int

const (
	// OpIsTrue holds when the boolean field is true. A missing value fails.
	OpIsTrue Op = iota + 1
	// OpNotAfterNow holds when the time field is at or before now.
	OpNotAfterNow
)

type Condition struct {
	Field Field
	Op    Op
}

// Rule is a conjunction of conditions.
type Rule []Condition

// PostRule is the publication rule for posts.
var PostRule = Rule{
	{Field: FieldIsPublished, Op: OpIsTrue},
	{Field: FieldPubDate, Op: OpNotAfterNow},
	{Field: FieldCategoryIsPublished, Op: OpIsTrue},
}

// IsVisible reports whether p is publicly visible at now.
func IsVisible(p *models.Post, now time.Time) bool {
	return PostRule.Match(p, now)
}

// Match evaluates the rule against a post with its category resolved.
func (r Rule) Match(p *models.Post, now time.Time) bool {
	if p == nil {
		return false
	}
	for _, cond := range r {
		if !cond.match(p, now) {
			return false
		}
	}
	return true
}

func (c Condition) match(p *models.Post, now time.Time) bool {
	switch c.Op {
	case OpIsTrue:
		v, ok := boolValue(p, c.Field)
		return ok && v
	case OpNotAfterNow:
		v, ok := timeValue(p, c.Field)
		return ok && !v.After(now)
	}
	return false
}

func boolValue(p *models.Post, f Field) (bool, bool) {
	switch f {
	case FieldIsPublished:
		return p.IsPublished, true
	case FieldCategoryIsPublished:
		if p.Category == nil {
			return false, false
		}
		return p.Category.IsPublished, true
	}
	return false, false
}

func timeValue(p *models.Post, f Field) (time.Time, bool) {
	if f == FieldPubDate {
		return p.PubDate, true
	}
	return time.Time{}, false
}

// Columns maps rule fields to qualified SQL column names.
type Columns map[Field]string

// Placeholder renders the n-th (1-based) bind parameter.
type Placeholder func(n int) string

func Dollar(n int) string   { return fmt.Sprintf("$%d", n) }
func Question(_ int) string { return "?" }

// Dialect describes how a database takes bind parameters and compares
// timestamps.
type Dialect struct {
	Placeholder Placeholder
	// Instant wraps a timestamp expression so that comparing and ordering
	// the result follows the point in time rather than its text. Nil when
	// the column type already compares instants.
	Instant func(expr string) string
}

var (
	// Postgres stores pub_date as TIMESTAMPTZ, which compares instants.
	Postgres = Dialect{Placeholder: Dollar}
	// SQLite keeps timestamps as text with whatever offset they were written
	// with. julianday normalizes them to UTC at millisecond precision.
	SQLite = Dialect{Placeholder: Question, Instant: julianday}
)

func julianday(expr string) string { return "julianday(" + expr + ")" }

// Time renders expr as a comparable instant.
func (d Dialect) Time(expr string) string {
	if d.Instant == nil {
		return expr
	}
	return d.Instant(expr)
}

// SQL renders the rule as a WHERE fragment. Bind parameters are numbered
// from offset+1; the returned args line up with them.
func (r Rule) SQL(cols Columns, now time.Time, d Dialect, offset int) (string, []any, error) {
	parts := make([]string, 0, len(r))
	args := make([]any, 0, len(r))
	for _, cond := range r {
		col, ok := cols[cond.Field]
		if !ok {
			return "", nil, fmt.Errorf("no column for field %q", cond.Field)
		}
		switch cond.Op {
		case OpIsTrue:
			args = append(args, true)
			parts = append(parts, fmt.Sprintf("%s = %s", col, d.Placeholder(offset+len(args))))
		case OpNotAfterNow:
			args = append(args, now)
			parts = append(parts, fmt.Sprintf("%s <= %s", d.Time(col), d.Time(d.Placeholder(offset+len(args)))))
		default:
			return "", nil, fmt.Errorf("unsupported op %d on field %q", cond.Op, cond.Field)
		}
	}
	return strings.Join(parts, " AND "), args, nil
}
