// Package pgtest hands integration tests an isolated Postgres schema.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnvDatabaseURL names the variable holding the test server's connection
// string. Tests using NewPool are skipped when it is empty.
const EnvDatabaseURL = "BLOGICUM_TEST_DATABASE_URL"

// NewPool creates a fresh schema and returns a pool whose search_path points
// at it. The schema is dropped when the test ends.
func NewPool(c *qt.C) *pgxpool.Pool {
	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		c.Skipf("%s is not set", EnvDatabaseURL)
	}
	ctx := context.Background()

	admin, err := pgx.Connect(ctx, url)
	c.Assert(err, qt.IsNil)
	schema := fmt.Sprintf("blogicum_test_%d", time.Now().UnixNano())
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(context.Background())
	})

	cfg, err := pgxpool.ParseConfig(url)
	c.Assert(err, qt.IsNil)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	c.Assert(err, qt.IsNil)
	c.Cleanup(pool.Close)
	return pool
}
