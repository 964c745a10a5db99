package posts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// KeyCategories is the cache key for the category listing
const KeyCategories = "pb:categories"

// Service implements the post operations: list, get, create, update, delete.
// It owns the ordering of persistence and media calls; it holds no per-request state.
type Service struct {
	repo   Repository
	media  MediaStore
	logger *zap.SugaredLogger

	cache       Cache
	categoryTTL time.Duration
	loads       singleflight.Group
	scopeReads  bool
}

type ServiceOption func(*Service)

// WithCategoryCache enables cache-aside for ListCategories
func WithCategoryCache(cache Cache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = cache
		s.categoryTTL = ttl
	}
}

// WithScopedReads restricts Get to posts owned by the caller
func WithScopedReads(enabled bool) ServiceOption {
	return func(s *Service) {
		s.scopeReads = enabled
	}
}

func NewService(repo Repository, media MediaStore, logger *zap.SugaredLogger, opts ...ServiceOption) *Service {
	s := &Service{
		repo:   repo,
		media:  media,
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// List returns summaries of the user's posts, newest first
func (s *Service) List(ctx context.Context, userID int64) ([]Summary, error) {
	summaries, err := s.repo.ListSummaries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	if summaries == nil {
		summaries = []Summary{}
	}
	return summaries, nil
}

// Get loads a post by id. A missing post yields (nil, nil).
// Unless scoped reads are enabled the lookup ignores ownership.
func (s *Service) Get(ctx context.Context, postID, callerID int64) (*Post, error) {
	var (
		post *Post
		err  error
	)
	if s.scopeReads {
		post, err = s.repo.GetOwned(ctx, postID, callerID)
	} else {
		post, err = s.repo.GetByID(ctx, postID)
		if err == nil && post != nil && post.UserID != callerID {
			s.logger.Debugw("Post read by non-owner", "post_id", postID, "caller_id", callerID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post %d: %w", postID, err)
	}
	return post, nil
}

// Create checks the category, uploads the image and stores the post.
// Nothing is uploaded when the category does not exist.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (int64, error) {
	if err := s.requireCategory(ctx, in.CategoryID); err != nil {
		return 0, err
	}

	asset, err := s.media.Upload(ctx, in.Image)
	if err != nil {
		return 0, fmt.Errorf("failed to upload image: %w", err)
	}

	post := &Post{
		Title:      in.Title,
		Content:    in.Content,
		ImageURL:   &asset.URL,
		ImageID:    &asset.ID,
		CategoryID: in.CategoryID,
		UserID:     userID,
	}

	// An insert failure here orphans the uploaded asset
	id, err := s.repo.Insert(ctx, post)
	if err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}

	s.logger.Infow("Post created", "post_id", id, "user_id", userID, "category_id", in.CategoryID)
	return id, nil
}

// Update rewrites an owned post. A new image replaces the old one, which is
// removed from the media store first.
func (s *Service) Update(ctx context.Context, userID int64, in UpdateInput) error {
	if err := s.requireCategory(ctx, in.CategoryID); err != nil {
		return err
	}

	post, err := s.repo.GetOwned(ctx, in.PostID, userID)
	if err != nil {
		return fmt.Errorf("failed to load post %d: %w", in.PostID, err)
	}
	if post == nil {
		return ErrPostNotFound
	}

	if in.Image != "" {
		if handle := post.ImageHandle(); handle != "" {
			if err := s.media.Remove(ctx, handle); err != nil {
				return fmt.Errorf("failed to remove previous image: %w", err)
			}
		}

		asset, err := s.media.Upload(ctx, in.Image)
		if err != nil {
			return fmt.Errorf("failed to upload image: %w", err)
		}
		post.ImageURL = &asset.URL
		post.ImageID = &asset.ID
	}

	post.Title = in.Title
	post.Content = in.Content
	post.CategoryID = in.CategoryID

	if err := s.repo.Update(ctx, post); err != nil {
		return fmt.Errorf("failed to update post %d: %w", in.PostID, err)
	}

	s.logger.Infow("Post updated", "post_id", in.PostID, "user_id", userID, "image_replaced", in.Image != "")
	return nil
}

// Delete removes an owned post and its hosted image.
// The image check looks at the URL while removal uses the stored handle.
func (s *Service) Delete(ctx context.Context, userID, postID int64) error {
	post, err := s.repo.GetOwned(ctx, postID, userID)
	if err != nil {
		return fmt.Errorf("failed to load post %d: %w", postID, err)
	}
	if post == nil {
		return ErrPostNotFound
	}

	if post.HasImageURL() {
		if err := s.media.Remove(ctx, post.ImageHandle()); err != nil {
			return fmt.Errorf("failed to remove image: %w", err)
		}
	}

	if err := s.repo.DeleteOwned(ctx, postID, userID); err != nil {
		return fmt.Errorf("failed to delete post %d: %w", postID, err)
	}

	s.logger.Infow("Post deleted", "post_id", postID, "user_id", userID)
	return nil
}

// ListCategories returns all categories, served from cache when configured
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	if s.cache != nil {
		var cached []Category
		err := s.cache.Get(ctx, KeyCategories, &cached)
		if err == nil {
			return cached, nil
		}
		s.logger.Debugw("Category cache lookup failed", "error", err)
	}

	// Concurrent misses share one query
	v, err, _ := s.loads.Do(KeyCategories, func() (interface{}, error) {
		categories, err := s.repo.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		if categories == nil {
			categories = []Category{}
		}

		if s.cache != nil {
			if err := s.cache.Set(ctx, KeyCategories, categories, s.categoryTTL); err != nil {
				s.logger.Warnw("Failed to cache categories", "error", err)
			}
		}
		return categories, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return v.([]Category), nil
}

func (s *Service) requireCategory(ctx context.Context, categoryID int64) error {
	exists, err := s.repo.CategoryExists(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("failed to check category %d: %w", categoryID, err)
	}
	if !exists {
		return ErrCategoryNotFound
	}
	return nil
}

// IsNotFound reports whether err is one of the not-found sentinels
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCategoryNotFound) || errors.Is(err, ErrPostNotFound)
}
