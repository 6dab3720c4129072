// Package memory implements storage.Store in process memory.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ulauncher/extapi/pkg/extension"
	"github.com/ulauncher/extapi/pkg/storage"
)

// Store is a mutex-guarded map of records keyed by ID.
type Store struct {
	mu   sync.RWMutex
	exts map[string]*extension.Extension
	now  func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{exts: make(map[string]*extension.Extension), now: time.Now}
}

// SetClock replaces the time source used for CreatedAt/UpdatedAt.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) Create(_ context.Context, ext *extension.Extension) (*extension.Extension, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := ext.Clone()
	if c.ID == "" {
		c.ID = extension.IDFor(c.ProjectPath)
	}
	if _, ok := s.exts[c.ID]; ok {
		return nil, storage.ErrExists()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	s.exts[c.ID] = c
	return c.Clone(), nil
}

func (s *Store) Get(_ context.Context, id string) (*extension.Extension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ext, ok := s.exts[id]
	if !ok {
		return nil, storage.ErrNotFound(id)
	}
	return ext.Clone(), nil
}

// All returns matching records ordered by CreatedAt for deterministic passes.
func (s *Store) All(_ context.Context, f storage.Filter) ([]*extension.Extension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*extension.Extension, 0, len(s.exts))
	for _, ext := range s.exts {
		if f.Matches(ext) {
			out = append(out, ext.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *extension.Extension) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) List(ctx context.Context, q storage.Query) (*storage.Page, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	all, _ := s.All(ctx, storage.Filter{Published: storage.Ptr(true), Versions: q.Versions})

	slices.SortStableFunc(all, func(a, b *extension.Extension) int {
		var c int
		switch q.SortBy {
		case storage.SortCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		default:
			c = cmp.Compare(a.GithubStars, b.GithubStars)
		}
		return c * q.SortOrder
	})

	page := &storage.Page{Offset: q.Offset, Data: []*extension.Extension{}}
	if q.Offset >= len(all) {
		return page, nil
	}
	rest := all[q.Offset:]
	if len(rest) > q.Limit {
		page.HasMore = true
		rest = rest[:q.Limit]
	}
	page.Data = rest
	return page, nil
}

func (s *Store) ListByUser(ctx context.Context, user string, limit int) ([]*extension.Extension, error) {
	all, _ := s.All(ctx, storage.Filter{User: user})
	slices.Reverse(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) Update(_ context.Context, id string, f storage.Fields) (*extension.Extension, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ext, ok := s.exts[id]
	if !ok {
		return nil, storage.ErrNotFound(id)
	}
	f.Apply(ext, s.now())
	return ext.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ext, ok := s.exts[id]
	if !ok {
		return storage.ErrNotFound(id)
	}
	if user != "" && ext.User != user {
		return storage.ErrNotOwner(id)
	}
	delete(s.exts, id)
	return nil
}

func (s *Store) Close(context.Context) error { return nil }

var _ storage.Store = (*Store)(nil)
