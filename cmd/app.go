package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"

	"blogicum/config"
	"blogicum/repository"
	"blogicum/search"
	"blogicum/service"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *repository.PostRepo
	engine  search.Engine
	closers []func()
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.DBMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: newLogger(cfg.LogLevel)}
	slog.SetDefault(a.logger)

	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { db.Close() })
		a.store = repository.NewSQLPostRepo(db)
		a.logger.Info("SQLite opened", "path", cfg.SQLitePath)
	default:
		pool, err := openPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.store = repository.NewPostRepo(pool)
		a.logger.Info("DB connected", "max_conns", cfg.DBMaxConns)
	}

	switch cfg.SearchEngine {
	case config.EngineElastic:
		es, err := search.NewES(cfg.ESAddr, cfg.ESIndex)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("es init error: %w", err)
		}
		if err := es.EnsureIndex(ctx); err != nil {
			a.logger.Warn("Could not ensure search index", "index", cfg.ESIndex, "error", err)
		}
		a.engine = es
	case config.EngineBleve:
		idx, err := search.OpenBleve(cfg.BlevePath)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { idx.Close() })
		a.engine = idx
	}
	return a, nil
}

func (a *app) blog() *service.Blog {
	return service.New(a.store, a.engine).WithLogger(a.logger)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
