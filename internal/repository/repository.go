package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/postboard/postboard-backend/internal/posts"
	"go.uber.org/zap"
)

// Postgres implements posts.Repository on a pgx connection pool
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewPostgres opens a pool against dsn and verifies it with a ping
func NewPostgres(ctx context.Context, dsn string, maxConns int32, logger *zap.SugaredLogger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &Postgres{pool: pool, logger: logger}, nil
}

func (r *Postgres) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Postgres) Close() {
	r.pool.Close()
}

const postColumns = `id, title, content, img_url, img_id, category_id, user_id, created_at, updated_at`

func (r *Postgres) ListSummaries(ctx context.Context, userID int64) ([]posts.Summary, error) {
	query := `
		SELECT posts.id, posts.title, LEFT(posts.content, 100), posts.img_url,
		       categories.name, posts.created_at, posts.updated_at
		FROM posts
		INNER JOIN categories ON categories.id = posts.category_id
		WHERE posts.user_id = $1
		ORDER BY posts.id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query summaries for user %d: %w", userID, err)
	}

	summaries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[posts.Summary])
	if err != nil {
		return nil, fmt.Errorf("scan summaries: %w", err)
	}
	return summaries, nil
}

func (r *Postgres) GetByID(ctx context.Context, id int64) (*posts.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 LIMIT 1`
	return r.fetchPost(ctx, query, id)
}

func (r *Postgres) GetOwned(ctx context.Context, id, userID int64) (*posts.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1 AND user_id = $2 LIMIT 1`
	return r.fetchPost(ctx, query, id, userID)
}

// fetchPost returns (nil, nil) when no row matches
func (r *Postgres) fetchPost(ctx context.Context, query string, args ...interface{}) (*posts.Post, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query post: %w", err)
	}

	post, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByPos[posts.Post])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}
	return post, nil
}

func (r *Postgres) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM categories WHERE id = $1 LIMIT 1`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query category %d: %w", id, err)
	}
	return true, nil
}

func (r *Postgres) Insert(ctx context.Context, post *posts.Post) (int64, error) {
	query := `
		INSERT INTO posts (title, content, img_url, img_id, user_id, category_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		post.Title,
		post.Content,
		post.ImageURL,
		post.ImageID,
		post.UserID,
		post.CategoryID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	return id, nil
}

// Update is keyed on id only; callers check ownership before calling it
func (r *Postgres) Update(ctx context.Context, post *posts.Post) error {
	query := `
		UPDATE posts
		SET title = $1, content = $2, img_url = $3, img_id = $4, category_id = $5, updated_at = NOW()
		WHERE id = $6
	`

	tag, err := r.pool.Exec(ctx, query,
		post.Title,
		post.Content,
		post.ImageURL,
		post.ImageID,
		post.CategoryID,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("update post %d: %w", post.ID, err)
	}

	r.logger.Debugw("Updated post", "post_id", post.ID, "rows", tag.RowsAffected())
	return nil
}

func (r *Postgres) DeleteOwned(ctx context.Context, id, userID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}

	r.logger.Debugw("Deleted post", "post_id", id, "user_id", userID, "rows", tag.RowsAffected())
	return nil
}

func (r *Postgres) ListCategories(ctx context.Context) ([]posts.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}

	categories, err := pgx.CollectRows(rows, pgx.RowToStructByPos[posts.Category])
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	return categories, nil
}
