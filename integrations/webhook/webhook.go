package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"learnquest/core"
)

// Sink posts notifications to configured HTTP endpoints.
// It is synchronous for determinism; keep endpoints fast or subscribe it on
// an async bus.
type Sink struct {
	client    *http.Client
	endpoints []string
	types     map[core.NotificationType]bool
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTypes restricts delivery to the given notification types.
func WithTypes(types ...core.NotificationType) Option {
	return func(s *Sink) {
		s.types = make(map[core.NotificationType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// OnNotification posts the notification JSON to all endpoints; delivery
// failures are dropped.
func (s *Sink) OnNotification(ctx context.Context, n core.Notification) {
	if len(s.endpoints) == 0 {
		return
	}
	if s.types != nil && !s.types[n.Type] {
		return
	}
	body, err := json.Marshal(n)
	if err != nil {
		return
	}
	for _, ep := range s.endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep, bytes.NewReader(body))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
		}
	}
}

// Subscriber is the notification source the sink listens on.
type Subscriber interface {
	Subscribe(typ core.NotificationType, handler func(context.Context, core.Notification)) func()
}

// Attach subscribes the sink to every notification type on the bus and
// returns a function that detaches it.
func (s *Sink) Attach(bus Subscriber) func() {
	types := []core.NotificationType{
		core.NotifyPointsAwarded,
		core.NotifyLevelUp,
		core.NotifyBadgeEarned,
		core.NotifyStreakAdvanced,
		core.NotifyContentUnlocked,
	}
	offs := make([]func(), 0, len(types))
	for _, t := range types {
		offs = append(offs, bus.Subscribe(t, s.OnNotification))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}
