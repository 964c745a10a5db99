package posts

import (
	"time"
	"unicode/utf8"
)

// SummaryContentLength is the number of characters of content kept in a list summary
const SummaryContentLength = 100

// Post is a single article owned by exactly one user.
// ImageURL and ImageID are nullable columns; both are set together on upload.
type Post struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	ImageURL   *string   `json:"imageUrl"`
	ImageID    *string   `json:"imageId"`
	CategoryID int64     `json:"categoryId"`
	UserID     int64     `json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HasImageURL reports whether the post points at a hosted image
func (p *Post) HasImageURL() bool {
	return p.ImageURL != nil && *p.ImageURL != ""
}

// ImageHandle returns the media deletion handle, or "" when none is stored
func (p *Post) ImageHandle() string {
	if p.ImageID == nil {
		return ""
	}
	return *p.ImageID
}

// Summary is the list view of a post, joined with its category name
type Summary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  *string   `json:"imageUrl"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Category classifies posts. Posts reference categories; this service never writes them.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TruncateContent cuts s to at most n characters (not bytes)
func TruncateContent(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
