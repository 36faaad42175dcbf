// Package session keeps per-browser state behind an opaque cookie id.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var ErrNotFound = errors.New("session not found")

const DefaultTTL = 30 * 24 * time.Hour

// Data is everything remembered about one browser session.
type Data struct {
	ID        string        `json:"id"`
	Token     *oauth2.Token `json:"token,omitempty"`
	SheetID   string        `json:"sheet_id,omitempty"`
	FirstName string        `json:"first_name,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// New returns an empty session with a fresh random id.
func New() *Data {
	now := time.Now()
	return &Data{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (d *Data) Authenticated() bool {
	return d != nil && d.Token != nil && d.Token.AccessToken != ""
}

// Logout drops everything except the id.
func (d *Data) Logout() {
	d.Token = nil
	d.SheetID = ""
	d.FirstName = ""
}

type Store interface {
	Get(ctx context.Context, id string) (*Data, error)
	Save(ctx context.Context, data *Data) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a process-local Store. Sessions older than ttl since their
// last save are treated as missing and dropped on access.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Data
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Data),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Data, error) {
	s.mu.RLock()
	data, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.ttl > 0 && s.now().Sub(data.UpdatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return &data, nil
}

func (s *MemoryStore) Save(_ context.Context, data *Data) error {
	if data == nil || data.ID == "" {
		return errors.New("session id is required")
	}
	data.UpdatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[data.ID] = *data
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
