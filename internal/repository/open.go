package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"smooshr/backend/internal/config"
)

// Open connects to the database selected by cfg.DB.Driver and applies
// migrations.
func Open(ctx context.Context, cfg *config.Config) (Repository, error) {
	var repo Repository
	switch strings.ToLower(cfg.DB.Driver) {
	case "postgres", "postgresql", "pgx":
		poolConfig, err := pgxpool.ParseConfig(cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to parse database config: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		repo = NewPostgresStore(pool)
	case "sqlite", "sqlite3", "":
		store, err := NewSQLiteStore(cfg.DB.Path)
		if err != nil {
			return nil, err
		}
		repo = store
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DB.Driver)
	}

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}
