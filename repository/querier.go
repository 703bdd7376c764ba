package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blogicum/models"
	"blogicum/visibility"
)

type row interface {
	Scan(dest ...any) error
}

type rows interface {
	row
	Next() bool
	Err() error
	Close()
}

// querier hides the difference between pgxpool and database/sql.
type querier interface {
	query(ctx context.Context, stmt string, args ...any) (rows, error)
	queryRow(ctx context.Context, stmt string, args ...any) row
	dialect() visibility.Dialect
}

type pgxQuerier struct {
	pool *pgxpool.Pool
}

func (q pgxQuerier) query(ctx context.Context, stmt string, args ...any) (rows, error) {
	return q.pool.Query(ctx, stmt, args...)
}

func (q pgxQuerier) queryRow(ctx context.Context, stmt string, args ...any) row {
	return q.pool.QueryRow(ctx, stmt, args...)
}

func (pgxQuerier) dialect() visibility.Dialect { return visibility.Postgres }

type sqlQuerier struct {
	db *sql.DB
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

func (q sqlQuerier) query(ctx context.Context, stmt string, args ...any) (rows, error) {
	rs, err := q.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rs}, nil
}

func (q sqlQuerier) queryRow(ctx context.Context, stmt string, args ...any) row {
	return q.db.QueryRowContext(ctx, stmt, args...)
}

func (sqlQuerier) dialect() visibility.Dialect { return visibility.SQLite }

// notFound turns a driver "no rows" error into models.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}
