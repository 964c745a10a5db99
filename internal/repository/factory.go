package repository

import (
	"context"
	"fmt"

	"github.com/postboard/postboard-backend/internal/posts"
	"go.uber.org/zap"
)

// Store is a posts.Repository with connection lifecycle
type Store interface {
	posts.Repository
	Ping(ctx context.Context) error
	Close()
}

// Config selects and configures a backend
type Config struct {
	Type     string // "postgres" or "memory"
	DSN      string
	MaxConns int32
}

// New creates the configured backend. The memory backend is seeded with DefaultCategories.
func New(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (Store, error) {
	switch cfg.Type {
	case "memory":
		logger.Infow("Using in-memory database")
		return NewMemory(DefaultCategories...), nil
	case "postgres", "":
		pg, err := NewPostgres(ctx, cfg.DSN, cfg.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		logger.Infow("Connected to postgres", "max_conns", cfg.MaxConns)
		return pg, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
