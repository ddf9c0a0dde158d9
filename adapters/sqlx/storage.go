// Package sqlx implements engine.Store on a relational database via
// jmoiron/sqlx. PostgreSQL and MySQL are supported.
//
// Schema:
//   - users        one row per user, carries the version column used for
//     optimistic concurrency
//   - events       append-only log, meta serialized as JSON text
//   - user_badges  (user_id, badge_slug) primary key makes grants
//     insert-if-absent
//   - user_unlocks same shape for content unlocks
//
// ApplyEvaluation runs in one transaction: the UPDATE is guarded by
// `WHERE version = ?` and a zero row count maps to core.ErrConflict.
package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"learnquest/core"
)

// Supported SQL drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sensible defaults for the given driver.
func DefaultConfig(driver string) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements the engine.Store interface on a SQL database.
type Store struct {
	db      *sqlx.DB
	driver  string
	catalog core.Catalog
}

// New opens a connection pool and verifies it.
func New(config Config, catalog core.Catalog) (*Store, error) {
	if config.Driver != DriverPostgres && config.Driver != DriverMySQL {
		return nil, fmt.Errorf("unsupported sql driver %q", config.Driver)
	}
	db, err := sqlx.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.Driver, err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: connect to %s: %v", core.ErrStorageUnavailable, config.Driver, err)
	}
	store := NewWithDB(db, config.Driver)
	store.catalog = catalog
	return store, nil
}

// NewWithDB wraps an existing sqlx.DB (useful for testing).
func NewWithDB(db *sqlx.DB, driver string) *Store {
	return &Store{db: db, driver: driver, catalog: core.DefaultCatalog()}
}

// SetCatalog replaces the rule catalog served by the List* methods.
func (s *Store) SetCatalog(catalog core.Catalog) { s.catalog = catalog }

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(128) PRIMARY KEY,
			points BIGINT NOT NULL DEFAULT 0,
			level BIGINT NOT NULL DEFAULT 1,
			streak_days BIGINT NOT NULL DEFAULT 0,
			longest_streak BIGINT NOT NULL DEFAULT 0,
			last_active_at TIMESTAMP NULL,
			version BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(128) NOT NULL,
			type VARCHAR(64) NOT NULL,
			points BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			meta TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user_type_created
			ON events (user_id, type, created_at)`,
		`CREATE TABLE IF NOT EXISTS user_badges (
			user_id VARCHAR(128) NOT NULL,
			badge_slug VARCHAR(128) NOT NULL,
			earned_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, badge_slug)
		)`,
		`CREATE TABLE IF NOT EXISTS user_unlocks (
			user_id VARCHAR(128) NOT NULL,
			content_id VARCHAR(128) NOT NULL,
			content_type VARCHAR(32) NOT NULL DEFAULT 'module',
			status VARCHAR(32) NOT NULL DEFAULT 'in_progress',
			percent_complete INT NOT NULL DEFAULT 0,
			unlocked_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, content_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type userRow struct {
	ID            string       `db:"id"`
	Points        int64        `db:"points"`
	Level         int64        `db:"level"`
	StreakDays    int64        `db:"streak_days"`
	LongestStreak int64        `db:"longest_streak"`
	LastActiveAt  sql.NullTime `db:"last_active_at"`
	Version       int64        `db:"version"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

func (r userRow) progress() core.Progress {
	p := core.Progress{
		UserID:        core.UserID(r.ID),
		Points:        r.Points,
		Level:         r.Level,
		StreakDays:    r.StreakDays,
		LongestStreak: r.LongestStreak,
		Version:       r.Version,
		Updated:       r.UpdatedAt,
	}
	if r.LastActiveAt.Valid {
		at := r.LastActiveAt.Time
		p.LastActiveAt = &at
	}
	return p
}

type eventRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Type      string    `db:"type"`
	Points    int64     `db:"points"`
	CreatedAt time.Time `db:"created_at"`
	Meta      []byte    `db:"meta"`
}

func (r eventRow) event() core.Event {
	ev := core.Event{
		ID:        r.ID,
		UserID:    core.UserID(r.UserID),
		Type:      core.EventType(r.Type),
		Points:    r.Points,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Meta) > 0 {
		_ = json.Unmarshal(r.Meta, &ev.Meta)
	}
	return ev
}

func (s *Store) GetUser(ctx context.Context, user core.UserID) (core.Progress, error) {
	var row userRow
	query := s.db.Rebind(`SELECT id, points, level, streak_days, longest_streak, last_active_at, version, updated_at FROM users WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Progress{}, core.ErrUserNotFound
		}
		return core.Progress{}, storageErr("get user", err)
	}
	return row.progress(), nil
}

func (s *Store) CreateUser(ctx context.Context, user core.UserID) (core.Progress, error) {
	insert := `INSERT INTO users (id, level, updated_at) VALUES (?, 1, ?) ON CONFLICT (id) DO NOTHING`
	if s.driver == DriverMySQL {
		insert = `INSERT IGNORE INTO users (id, level, updated_at) VALUES (?, 1, ?)`
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(insert), user, time.Now().UTC()); err != nil {
		return core.Progress{}, storageErr("create user", err)
	}
	return s.GetUser(ctx, user)
}

func (s *Store) ApplyEvaluation(ctx context.Context, updated core.Progress, events []core.Event) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	update := s.db.Rebind(`UPDATE users
		SET points = ?, level = ?, streak_days = ?, longest_streak = ?,
			last_active_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`)
	var lastActive sql.NullTime
	if updated.LastActiveAt != nil {
		lastActive = sql.NullTime{Time: *updated.LastActiveAt, Valid: true}
	}
	res, err := tx.ExecContext(ctx, update,
		updated.Points, updated.Level, updated.StreakDays, updated.LongestStreak,
		lastActive, updated.Updated, updated.UserID, updated.Version)
	if err != nil {
		return storageErr("update user", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("update user", err)
	}
	if affected == 0 {
		return core.ErrConflict
	}

	insert := s.db.Rebind(`INSERT INTO events (id, user_id, type, points, created_at, meta) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, ev := range events {
		var meta []byte
		if len(ev.Meta) > 0 {
			if meta, err = json.Marshal(ev.Meta); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, insert, ev.ID, ev.UserID, ev.Type, ev.Points, ev.CreatedAt, meta); err != nil {
			return storageErr("insert event", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func (s *Store) CountEventsByType(ctx context.Context, user core.UserID, typ core.EventType) (int64, error) {
	var n int64
	query := s.db.Rebind(`SELECT COUNT(*) FROM events WHERE user_id = ? AND type = ?`)
	if err := s.db.GetContext(ctx, &n, query, user, typ); err != nil {
		return 0, storageErr("count events", err)
	}
	return n, nil
}

func (s *Store) CountEventsByTypeSince(ctx context.Context, user core.UserID, typ core.EventType, since time.Time) (int64, error) {
	var n int64
	query := s.db.Rebind(`SELECT COUNT(*) FROM events WHERE user_id = ? AND type = ? AND created_at >= ?`)
	if err := s.db.GetContext(ctx, &n, query, user, typ, since); err != nil {
		return 0, storageErr("count events since", err)
	}
	return n, nil
}

func (s *Store) ListRecentEventsByType(ctx context.Context, user core.UserID, typ core.EventType, limit int) ([]core.Event, error) {
	var rows []eventRow
	query := s.db.Rebind(`SELECT id, user_id, type, points, created_at, meta FROM events
		WHERE user_id = ? AND type = ? ORDER BY created_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, user, typ, limit); err != nil {
		return nil, storageErr("list events", err)
	}
	events := make([]core.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.event())
	}
	return events, nil
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

func (s *Store) ListUserBadgeSlugs(ctx context.Context, user core.UserID) ([]string, error) {
	var slugs []string
	query := s.db.Rebind(`SELECT badge_slug FROM user_badges WHERE user_id = ? ORDER BY earned_at`)
	if err := s.db.SelectContext(ctx, &slugs, query, user); err != nil {
		return nil, storageErr("list user badges", err)
	}
	return slugs, nil
}

func (s *Store) GrantBadge(ctx context.Context, user core.UserID, slug string) (bool, error) {
	insert := `INSERT INTO user_badges (user_id, badge_slug, earned_at) VALUES (?, ?, ?) ON CONFLICT (user_id, badge_slug) DO NOTHING`
	if s.driver == DriverMySQL {
		insert = `INSERT IGNORE INTO user_badges (user_id, badge_slug, earned_at) VALUES (?, ?, ?)`
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(insert), user, slug, time.Now().UTC())
	if err != nil {
		return false, storageErr("grant badge", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("grant badge", err)
	}
	return affected == 1, nil
}

func (s *Store) GrantUnlock(ctx context.Context, user core.UserID, contentID string) (bool, error) {
	insert := `INSERT INTO user_unlocks (user_id, content_id, unlocked_at) VALUES (?, ?, ?) ON CONFLICT (user_id, content_id) DO NOTHING`
	if s.driver == DriverMySQL {
		insert = `INSERT IGNORE INTO user_unlocks (user_id, content_id, unlocked_at) VALUES (?, ?, ?)`
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(insert), user, contentID, time.Now().UTC())
	if err != nil {
		return false, storageErr("grant unlock", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("grant unlock", err)
	}
	return affected == 1, nil
}

func storageErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", core.ErrStorageUnavailable, op, err)
}
