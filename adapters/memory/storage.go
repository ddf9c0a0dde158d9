// Package memory provides an in-process Store used as the reference
// implementation and in tests. A single mutex stands in for the storage
// transaction; the version check mirrors what the SQL and Redis adapters
// enforce natively.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"learnquest/core"
)

// Store is a concurrent in-memory engine.Store implementation.
type Store struct {
	mu      sync.Mutex
	users   map[core.UserID]core.Progress
	events  map[core.UserID][]core.Event
	badges  map[core.UserID][]string
	unlocks map[core.UserID][]string
	catalog core.Catalog
}

// New returns a Store seeded with the default catalog.
func New() *Store { return NewWithCatalog(core.DefaultCatalog()) }

// NewWithCatalog returns a Store evaluating against the given catalog.
func NewWithCatalog(catalog core.Catalog) *Store {
	return &Store{
		users:   map[core.UserID]core.Progress{},
		events:  map[core.UserID][]core.Event{},
		badges:  map[core.UserID][]string{},
		unlocks: map[core.UserID][]string{},
		catalog: catalog,
	}
}

func (s *Store) GetUser(_ context.Context, user core.UserID) (core.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[user]
	if !ok {
		return core.Progress{}, core.ErrUserNotFound
	}
	return p.Clone(), nil
}

func (s *Store) CreateUser(_ context.Context, user core.UserID) (core.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.users[user]; ok {
		return p.Clone(), nil
	}
	p := core.Progress{UserID: user, Level: 1, Updated: time.Now().UTC()}
	s.users[user] = p
	return p.Clone(), nil
}

func (s *Store) ApplyEvaluation(_ context.Context, updated core.Progress, events []core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[updated.UserID]
	if !ok {
		return core.ErrUserNotFound
	}
	if current.Version != updated.Version {
		return core.ErrConflict
	}
	next := updated.Clone()
	next.Version++
	s.users[updated.UserID] = next
	s.events[updated.UserID] = append(s.events[updated.UserID], events...)
	return nil
}

// AppendEvents backfills log entries directly, bypassing the version check.
// Intended for seeding histories in tests and demos.
func (s *Store) AppendEvents(_ context.Context, user core.UserID, events ...core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[user] = append(s.events[user], events...)
}

func (s *Store) CountEventsByType(_ context.Context, user core.UserID, typ core.EventType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, ev := range s.events[user] {
		if ev.Type == typ {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountEventsByTypeSince(_ context.Context, user core.UserID, typ core.EventType, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, ev := range s.events[user] {
		if ev.Type == typ && !ev.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListRecentEventsByType(_ context.Context, user core.UserID, typ core.EventType, limit int) ([]core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]core.Event, 0, limit)
	for _, ev := range s.events[user] {
		if ev.Type == typ {
			matched = append(matched, ev)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) ListBadges(_ context.Context) ([]core.Badge, error) {
	return append([]core.Badge{}, s.catalog.Badges...), nil
}

func (s *Store) ListPointRules(_ context.Context) ([]core.PointRule, error) {
	return append([]core.PointRule{}, s.catalog.PointRules...), nil
}

func (s *Store) ListUnlockRules(_ context.Context) ([]core.UnlockRule, error) {
	return append([]core.UnlockRule{}, s.catalog.UnlockRules...), nil
}

func (s *Store) ListUserBadgeSlugs(_ context.Context, user core.UserID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.badges[user]...), nil
}

func (s *Store) GrantBadge(_ context.Context, user core.UserID, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.badges[user] {
		if have == slug {
			return false, nil
		}
	}
	s.badges[user] = append(s.badges[user], slug)
	return true, nil
}

func (s *Store) GrantUnlock(_ context.Context, user core.UserID, contentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.unlocks[user] {
		if have == contentID {
			return false, nil
		}
	}
	s.unlocks[user] = append(s.unlocks[user], contentID)
	return true, nil
}

// ListUserUnlocks returns granted content ids in grant order.
func (s *Store) ListUserUnlocks(_ context.Context, user core.UserID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.unlocks[user]...), nil
}
