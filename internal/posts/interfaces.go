package posts

import (
	"context"
	"time"

	"github.com/postboard/postboard-backend/internal/media"
)

// Repository is the persistence gateway for posts and categories.
// Every method maps to exactly one SQL statement. Single-row lookups that
// find nothing return (nil, nil).
type Repository interface {
	// ListSummaries returns the user's posts, newest id first
	ListSummaries(ctx context.Context, userID int64) ([]Summary, error)

	// GetByID loads a post regardless of owner
	GetByID(ctx context.Context, id int64) (*Post, error)

	// GetOwned loads a post only if userID owns it
	GetOwned(ctx context.Context, id, userID int64) (*Post, error)

	CategoryExists(ctx context.Context, id int64) (bool, error)

	// Insert stores a new post and returns the assigned id
	Insert(ctx context.Context, post *Post) (int64, error)

	// Update rewrites title, content, image fields and category of post.ID
	Update(ctx context.Context, post *Post) error

	// DeleteOwned removes the post with id owned by userID
	DeleteOwned(ctx context.Context, id, userID int64) error

	ListCategories(ctx context.Context) ([]Category, error)
}

// MediaStore is the image host gateway
type MediaStore interface {
	Upload(ctx context.Context, payload string) (*media.Asset, error)
	Remove(ctx context.Context, id string) error
}

// Cache is the cache-aside store used for the category listing
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}
