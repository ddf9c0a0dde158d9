// Package jsonfile persists entire state to a single JSON file.
// Suitable for demos and small deployments.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"learnquest/core"
)

type fileState struct {
	Users   map[string]core.Progress `json:"users"`
	Events  map[string][]core.Event  `json:"events"`
	Badges  map[string][]string      `json:"badges"`
	Unlocks map[string][]string      `json:"unlocks"`
}

// Store keeps everything in memory and rewrites the file on each mutation.
// The write goes to a temp file first and is swapped in with a rename, so a
// crash mid-write never corrupts existing state.
type Store struct {
	path    string
	catalog core.Catalog

	mu    sync.Mutex
	state fileState
}

func New(path string, catalog core.Catalog) (*Store, error) {
	s := &Store{
		path:    path,
		catalog: catalog,
		state: fileState{
			Users:   map[string]core.Progress{},
			Events:  map[string][]core.Event{},
			Badges:  map[string][]string{},
			Unlocks: map[string][]string{},
		},
	}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw fileState
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Users != nil {
		s.state.Users = raw.Users
	}
	if raw.Events != nil {
		s.state.Events = raw.Events
	}
	if raw.Badges != nil {
		s.state.Badges = raw.Badges
	}
	if raw.Unlocks != nil {
		s.state.Unlocks = raw.Unlocks
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) GetUser(_ context.Context, user core.UserID) (core.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prog, ok := s.state.Users[string(user)]
	if !ok {
		return core.Progress{}, core.ErrUserNotFound
	}
	return prog.Clone(), nil
}

func (s *Store) CreateUser(_ context.Context, user core.UserID) (core.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prog, ok := s.state.Users[string(user)]; ok {
		return prog.Clone(), nil
	}
	fresh := core.Progress{UserID: user, Level: 1, Updated: time.Now().UTC()}
	s.state.Users[string(user)] = fresh
	if err := s.persist(); err != nil {
		return core.Progress{}, err
	}
	return fresh.Clone(), nil
}

func (s *Store) ApplyEvaluation(_ context.Context, updated core.Progress, events []core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.state.Users[string(updated.UserID)]
	if !ok {
		return core.ErrUserNotFound
	}
	if current.Version != updated.Version {
		return core.ErrConflict
	}
	next := updated.Clone()
	next.Version++
	s.state.Users[string(updated.UserID)] = next
	s.state.Events[string(updated.UserID)] = append(s.state.Events[string(updated.UserID)], events...)
	return s.persist()
}

func (s *Store) CountEventsByType(_ context.Context, user core.UserID, typ core.EventType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, ev := range s.state.Events[string(user)] {
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
	for _, ev := range s.state.Events[string(user)] {
		if ev.Type == typ && !ev.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListRecentEventsByType(_ context.Context, user core.UserID, typ core.EventType, limit int) ([]core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []core.Event
	for _, ev := range s.state.Events[string(user)] {
		if ev.Type == typ {
			matched = append(matched, ev)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
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
	return append([]string{}, s.state.Badges[string(user)]...), nil
}

func (s *Store) GrantBadge(_ context.Context, user core.UserID, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, owned := range s.state.Badges[string(user)] {
		if owned == slug {
			return false, nil
		}
	}
	s.state.Badges[string(user)] = append(s.state.Badges[string(user)], slug)
	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GrantUnlock(_ context.Context, user core.UserID, contentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, owned := range s.state.Unlocks[string(user)] {
		if owned == contentID {
			return false, nil
		}
	}
	s.state.Unlocks[string(user)] = append(s.state.Unlocks[string(user)], contentID)
	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}
