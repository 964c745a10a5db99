package api

import "github.com/postboard/postboard-backend/internal/posts"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrorResponse is the 422 body; Errors lists every rejected field
type ValidationErrorResponse struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Errors  []posts.FieldError `json:"errors"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthDTO struct {
	Status  string   `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
}

const (
	MsgPostAdded   = "Post added successfully"
	MsgPostUpdated = "Post updated successfully"
	MsgPostDeleted = "Post deleted successfully"

	MsgCategoryNotFound = "Category not found"
	MsgPostNotFound     = "Post not found"
)
