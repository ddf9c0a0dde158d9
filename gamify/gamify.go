// Package gamify is the embedding facade: one constructor that assembles an
// evaluator from options, defaulting to in-memory storage and async dispatch.
package gamify

import (
	"context"

	mem "learnquest/adapters/memory"
	"learnquest/core"
	"learnquest/engine"
	"learnquest/leaderboard"
	"learnquest/realtime"
)

// Option configures the evaluator builder.
type Option func(*config)

type config struct {
	store   engine.Store
	catalog *core.Catalog
	mode    engine.DispatchMode
	retry   engine.RetryPolicy
	hub     *realtime.Hub
	board   leaderboard.Board
}

// WithStore sets the persistence adapter.
func WithStore(s engine.Store) Option { return func(c *config) { c.store = s } }

// WithCatalog overrides the rule catalog used by the default in-memory
// store. It has no effect when WithStore supplies an adapter, since the
// adapter carries its own catalog.
func WithCatalog(cat core.Catalog) Option { return func(c *config) { c.catalog = &cat } }

// WithDispatchMode selects sync or async notification dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRetry sets the conflict retry policy.
func WithRetry(r engine.RetryPolicy) Option { return func(c *config) { c.retry = r } }

// WithRealtime wires a realtime hub to receive all notifications.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithLeaderboard keeps a board current from points notifications.
func WithLeaderboard(b leaderboard.Board) Option { return func(c *config) { c.board = b } }

// New builds a configured Evaluator. Defaults:
//   - storage: in-memory with the default catalog
//   - dispatch: async
//   - retry: DefaultRetryPolicy
func New(opts ...Option) *engine.Evaluator {
	cfg := &config{mode: engine.DispatchAsync, retry: engine.DefaultRetryPolicy()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.store == nil {
		if cfg.catalog != nil {
			cfg.store = mem.NewWithCatalog(*cfg.catalog)
		} else {
			cfg.store = mem.New()
		}
	}
	bus := engine.NewEventBus(cfg.mode)
	eval := engine.NewEvaluator(cfg.store, bus, cfg.retry)
	if cfg.hub != nil {
		forward := func(ctx context.Context, n core.Notification) { cfg.hub.Broadcast(ctx, n) }
		bus.Subscribe(core.NotifyPointsAwarded, forward)
		bus.Subscribe(core.NotifyLevelUp, forward)
		bus.Subscribe(core.NotifyBadgeEarned, forward)
		bus.Subscribe(core.NotifyStreakAdvanced, forward)
		bus.Subscribe(core.NotifyContentUnlocked, forward)
	}
	if cfg.board != nil {
		leaderboard.AttachBus(bus, cfg.board)
	}
	return eval
}
