// Package migrate applies the blog's versioned SQL migrations to Postgres.
package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Status describes where the database stands relative to the known migrations.
type Status struct {
	CurrentVersion    int   `json:"current_version"`
	PendingMigrations []int `json:"pending_migrations"`
	TotalMigrations   int   `json:"total_migrations"`
	HasPendingChanges bool  `json:"has_pending_changes"`
}

type Migrator struct {
	pool       *pgxpool.Pool
	migrations []*Migration
	logger     *slog.Logger
}

// NewFSMigrator loads migrations from fsys; see Load for the file layout.
func NewFSMigrator(pool *pgxpool.Pool, fsys fs.FS) (*Migrator, error) {
	migrations, err := Load(fsys)
	if err != nil {
		return nil, err
	}
	return New(pool, migrations), nil
}

func New(pool *pgxpool.Pool, migrations []*Migration) *Migrator {
	return &Migrator{pool: pool, migrations: migrations, logger: slog.Default()}
}

func (m *Migrator) WithLogger(l *slog.Logger) *Migrator {
	tmp := *m
	tmp.logger = l
	return &tmp
}

func (m *Migrator) Migrations() []*Migration { return m.migrations }

func (m *Migrator) initialize(ctx context.Context) error {
	if _, err := m.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// CurrentVersion returns the highest applied version, or 0.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.initialize(ctx); err != nil {
		return 0, err
	}
	var version int
	err := m.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

func (m *Migrator) Status(ctx context.Context) (*Status, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	pending := Pending(m.migrations, current)
	versions := make([]int, len(pending))
	for i, mig := range pending {
		versions[i] = mig.Version
	}
	return &Status{
		CurrentVersion:    current,
		PendingMigrations: versions,
		TotalMigrations:   len(m.migrations),
		HasPendingChanges: len(versions) > 0,
	}, nil
}

// Pending returns the migrations newer than current, in order.
func Pending(migrations []*Migration, current int) []*Migration {
	var out []*Migration
	for _, mig := range migrations {
		if mig.Version > current {
			out = append(out, mig)
		}
	}
	return out
}

// Up applies every pending migration, each in its own transaction.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}
	pending := Pending(m.migrations, current)
	for _, mig := range pending {
		m.logger.Info("Applying migration", "version", mig.Version, "name", mig.Name)
		err := m.inTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("failed to apply migration %d_%s: %w", mig.Version, mig.Name, err)
		}
	}
	return len(pending), nil
}

// Down rolls back the most recently applied migration. It reports false when
// nothing was applied.
func (m *Migrator) Down(ctx context.Context) (bool, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return false, err
	}
	if current == 0 {
		return false, nil
	}
	var target *Migration
	for _, mig := range m.migrations {
		if mig.Version == current {
			target = mig
			break
		}
	}
	if target == nil {
		return false, fmt.Errorf("applied version %d has no migration files", current)
	}

	m.logger.Info("Rolling back migration", "version", target.Version, "name", target.Name)
	err = m.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, target.Down); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, target.Version)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to roll back migration %d_%s: %w", target.Version, target.Name, err)
	}
	return true, nil
}

func (m *Migrator) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
