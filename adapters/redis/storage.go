// Package redis implements engine.Store on Redis.
//
// Data structure:
//   - user:{user_id}:progress -> JSON blob of core.Progress
//   - user:{user_id}:version  -> int64 optimistic-concurrency token
//   - user:{user_id}:events          -> list of event JSON, newest first
//   - user:{user_id}:events:{type}   -> per-type list, newest first
//   - user:{user_id}:badges  -> set of badge slugs
//   - user:{user_id}:unlocks -> set of content ids
//
// The version key is the serialization point: the apply script checks and
// bumps it atomically, so two concurrent evaluations for one user cannot
// both commit. Badge and unlock grants ride on SADD, whose reply tells the
// single winning caller apart.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"learnquest/core"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine.Store interface using Redis as the backend.
type Store struct {
	client  *redis.Client
	catalog core.Catalog
}

// New creates a Redis-backed store and verifies the connection.
func New(config Config, catalog core.Catalog) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: connect to redis: %v", core.ErrStorageUnavailable, err)
	}
	return &Store{client: client, catalog: catalog}, nil
}

// NewWithClient creates a Store on an existing client (useful for testing).
func NewWithClient(client *redis.Client, catalog core.Catalog) *Store {
	return &Store{client: client, catalog: catalog}
}

// Close closes the Redis connection.
func (s *Store) Close() error { return s.client.Close() }

func progressKey(user core.UserID) string { return fmt.Sprintf("user:%s:progress", user) }
func versionKey(user core.UserID) string  { return fmt.Sprintf("user:%s:version", user) }
func badgesKey(user core.UserID) string   { return fmt.Sprintf("user:%s:badges", user) }
func unlocksKey(user core.UserID) string  { return fmt.Sprintf("user:%s:unlocks", user) }
func eventsKey(user core.UserID) string   { return fmt.Sprintf("user:%s:events", user) }
func eventsTypeKey(user core.UserID, typ core.EventType) string {
	return fmt.Sprintf("user:%s:events:%s", user, typ)
}

// applyScript checks the version token, bumps it, replaces the progress
// blob, and pushes the event JSON payloads, all in one atomic step.
var applyScript = redis.NewScript(`
	local v = tonumber(redis.call('GET', KEYS[1]) or '-1')
	if v ~= tonumber(ARGV[1]) then
		return redis.error_reply('version conflict')
	end
	redis.call('SET', KEYS[1], v + 1)
	redis.call('SET', KEYS[2], ARGV[2])
	for i = 3, #KEYS do
		redis.call('LPUSH', KEYS[i], ARGV[i])
	end
	return v + 1
`)

func (s *Store) GetUser(ctx context.Context, user core.UserID) (core.Progress, error) {
	vals, err := s.client.MGet(ctx, progressKey(user), versionKey(user)).Result()
	if err != nil {
		return core.Progress{}, storageErr("get user", err)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return core.Progress{}, core.ErrUserNotFound
	}
	var prog core.Progress
	if err := json.Unmarshal([]byte(raw), &prog); err != nil {
		return core.Progress{}, fmt.Errorf("decode progress for %s: %w", user, err)
	}
	if ver, ok := vals[1].(string); ok {
		if v, err := strconv.ParseInt(ver, 10, 64); err == nil {
			prog.Version = v
		}
	}
	return prog, nil
}

func (s *Store) CreateUser(ctx context.Context, user core.UserID) (core.Progress, error) {
	fresh := core.Progress{UserID: user, Level: 1, Updated: time.Now().UTC()}
	data, err := json.Marshal(fresh)
	if err != nil {
		return core.Progress{}, err
	}
	created, err := s.client.SetNX(ctx, progressKey(user), data, 0).Result()
	if err != nil {
		return core.Progress{}, storageErr("create user", err)
	}
	if created {
		if err := s.client.Set(ctx, versionKey(user), 0, 0).Err(); err != nil {
			return core.Progress{}, storageErr("create user version", err)
		}
	}
	return s.GetUser(ctx, user)
}

func (s *Store) ApplyEvaluation(ctx context.Context, updated core.Progress, events []core.Event) error {
	next := updated.Clone()
	next.Version++
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}

	keys := []string{versionKey(updated.UserID), progressKey(updated.UserID)}
	argv := []interface{}{updated.Version, string(data)}
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		keys = append(keys, eventsKey(updated.UserID), eventsTypeKey(updated.UserID, ev.Type))
		argv = append(argv, string(payload), string(payload))
	}

	if err := applyScript.Run(ctx, s.client, keys, argv...).Err(); err != nil {
		if strings.Contains(err.Error(), "version conflict") {
			return core.ErrConflict
		}
		return storageErr("apply evaluation", err)
	}
	return nil
}

func (s *Store) CountEventsByType(ctx context.Context, user core.UserID, typ core.EventType) (int64, error) {
	n, err := s.client.LLen(ctx, eventsTypeKey(user, typ)).Result()
	if err != nil {
		return 0, storageErr("count events", err)
	}
	return n, nil
}

func (s *Store) CountEventsByTypeSince(ctx context.Context, user core.UserID, typ core.EventType, since time.Time) (int64, error) {
	// Lists are newest first, so walk pages until an entry predates the
	// window.
	key := eventsTypeKey(user, typ)
	var count int64
	const page = 100
	for start := int64(0); ; start += page {
		raws, err := s.client.LRange(ctx, key, start, start+page-1).Result()
		if err != nil {
			return 0, storageErr("range events", err)
		}
		if len(raws) == 0 {
			return count, nil
		}
		for _, raw := range raws {
			var ev core.Event
			if err := json.Unmarshal([]byte(raw), &ev); err != nil {
				continue
			}
			if ev.CreatedAt.Before(since) {
				return count, nil
			}
			count++
		}
	}
}

func (s *Store) ListRecentEventsByType(ctx context.Context, user core.UserID, typ core.EventType, limit int) ([]core.Event, error) {
	raws, err := s.client.LRange(ctx, eventsTypeKey(user, typ), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, storageErr("list events", err)
	}
	events := make([]core.Event, 0, len(raws))
	for _, raw := range raws {
		var ev core.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		events = append(events, ev)
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
	slugs, err := s.client.SMembers(ctx, badgesKey(user)).Result()
	if err != nil {
		return nil, storageErr("list user badges", err)
	}
	return slugs, nil
}

func (s *Store) GrantBadge(ctx context.Context, user core.UserID, slug string) (bool, error) {
	added, err := s.client.SAdd(ctx, badgesKey(user), slug).Result()
	if err != nil {
		return false, storageErr("grant badge", err)
	}
	return added == 1, nil
}

func (s *Store) GrantUnlock(ctx context.Context, user core.UserID, contentID string) (bool, error) {
	added, err := s.client.SAdd(ctx, unlocksKey(user), contentID).Result()
	if err != nil {
		return false, storageErr("grant unlock", err)
	}
	return added == 1, nil
}

func storageErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", core.ErrStorageUnavailable, op, err)
}
