package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/postboard/postboard-backend/internal/posts"
)

// Memory implements posts.Repository in process memory.
// It mirrors the SQL semantics of Postgres: auto-increment ids,
// database-maintained timestamps and an inner join for summaries.
type Memory struct {
	mu         sync.RWMutex
	posts      map[int64]posts.Post
	categories map[int64]posts.Category
	nextID     int64
	now        func() time.Time
}

// NewMemory creates an empty store seeded with the given categories
func NewMemory(categories ...posts.Category) *Memory {
	m := &Memory{
		posts:      make(map[int64]posts.Post),
		categories: make(map[int64]posts.Category),
		now:        time.Now,
	}
	for _, c := range categories {
		m.categories[c.ID] = c
	}
	return m
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() {}

func (m *Memory) ListSummaries(ctx context.Context, userID int64) ([]posts.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []posts.Summary
	for _, p := range m.posts {
		if p.UserID != userID {
			continue
		}
		category, ok := m.categories[p.CategoryID]
		if !ok {
			continue
		}
		out = append(out, posts.Summary{
			ID:        p.ID,
			Title:     p.Title,
			Content:   posts.TruncateContent(p.Content, posts.SummaryContentLength),
			ImageURL:  cloneString(p.ImageURL),
			Category:  category.Name,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) GetByID(ctx context.Context, id int64) (*posts.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

func (m *Memory) GetOwned(ctx context.Context, id, userID int64) (*posts.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	return clonePost(p), nil
}

func (m *Memory) CategoryExists(ctx context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.categories[id]
	return ok, nil
}

func (m *Memory) Insert(ctx context.Context, post *posts.Post) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := m.now()

	stored := *clonePost(*post)
	stored.ID = m.nextID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.posts[stored.ID] = stored

	return stored.ID, nil
}

// Update touches nothing when the id does not exist, like an UPDATE matching zero rows
func (m *Memory) Update(ctx context.Context, post *posts.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.posts[post.ID]
	if !ok {
		return nil
	}
	stored.Title = post.Title
	stored.Content = post.Content
	stored.ImageURL = cloneString(post.ImageURL)
	stored.ImageID = cloneString(post.ImageID)
	stored.CategoryID = post.CategoryID
	stored.UpdatedAt = m.now()
	m.posts[post.ID] = stored

	return nil
}

func (m *Memory) DeleteOwned(ctx context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.posts[id]; ok && p.UserID == userID {
		delete(m.posts, id)
	}
	return nil
}

func (m *Memory) ListCategories(ctx context.Context) ([]posts.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]posts.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Count returns the number of stored posts
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.posts)
}

// Deep copy so callers can't mutate stored rows
func clonePost(p posts.Post) *posts.Post {
	p.ImageURL = cloneString(p.ImageURL)
	p.ImageID = cloneString(p.ImageID)
	return &p
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
