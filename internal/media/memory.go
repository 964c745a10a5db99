package media

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store for development and tests.
// Assets are never served; URLs only need to be unique.
type Memory struct {
	mu      sync.Mutex
	baseURL string
	assets  map[string]string // id -> url
}

func NewMemory(baseURL string) *Memory {
	return &Memory{
		baseURL: strings.TrimRight(baseURL, "/"),
		assets:  make(map[string]string),
	}
}

func (m *Memory) Upload(ctx context.Context, payload string) (*Asset, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}

	id := uuid.NewString()
	url := fmt.Sprintf("%s/%s", m.baseURL, id)

	m.mu.Lock()
	m.assets[id] = url
	m.mu.Unlock()

	return &Asset{URL: url, ID: id}, nil
}

// Remove deletes the asset; unknown ids are ignored like the hosted API does
func (m *Memory) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.assets, id)
	m.mu.Unlock()
	return nil
}

// Has reports whether id is currently stored
func (m *Memory) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.assets[id]
	return ok
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assets)
}
