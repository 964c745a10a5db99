package posts

import "errors"

// Sentinel errors for post operations
var (
	// ErrCategoryNotFound is returned when the referenced category does not exist
	ErrCategoryNotFound = errors.New("category not found")

	// ErrPostNotFound is returned when the post does not exist or is not owned by the caller
	ErrPostNotFound = errors.New("post not found")
)
