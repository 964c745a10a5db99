package repository

import "github.com/postboard/postboard-backend/internal/posts"

// DefaultCategories mirrors the rows seeded by the categories migration
var DefaultCategories = []posts.Category{
	{ID: 1, Name: "General"},
	{ID: 2, Name: "Technology"},
	{ID: 3, Name: "Travel"},
	{ID: 4, Name: "Food"},
	{ID: 5, Name: "Lifestyle"},
}
