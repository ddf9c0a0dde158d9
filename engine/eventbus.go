package engine

import (
	"context"
	"sync"
	"time"

	"learnquest/core"
)

type DispatchMode int

const (
	DispatchSync DispatchMode = iota
	DispatchAsync
)

type subscription struct {
	id  int64
	typ core.NotificationType
	fn  func(context.Context, core.Notification)
}

// EventBus provides thread-safe pub/sub for evaluation notifications with
// sync and async dispatch.
type EventBus struct {
	mode         DispatchMode
	mu           sync.RWMutex
	subs         map[core.NotificationType]map[int64]subscription
	nextID       int64
	asyncQueue   chan core.Notification
	asyncWorkers int
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewEventBus(mode DispatchMode) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		mode:         mode,
		subs:         make(map[core.NotificationType]map[int64]subscription),
		asyncQueue:   make(chan core.Notification, 2048),
		asyncWorkers: 4,
		ctx:          ctx,
		cancel:       cancel,
	}
	if mode == DispatchAsync {
		eb.startWorkers()
	}
	return eb
}

func (e *EventBus) startWorkers() {
	for i := 0; i < e.asyncWorkers; i++ {
		go func() {
			for {
				select {
				case n := <-e.asyncQueue:
					e.dispatchSync(context.Background(), n)
				case <-e.ctx.Done():
					return
				}
			}
		}()
	}
}

// Close stops async workers.
func (e *EventBus) Close() {
	e.cancel()
	// allow workers to drain briefly
	time.Sleep(10 * time.Millisecond)
}

// Subscribe registers a handler for a notification type. Returns an
// unsubscribe func.
func (e *EventBus) Subscribe(typ core.NotificationType, handler func(context.Context, core.Notification)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	if e.subs[typ] == nil {
		e.subs[typ] = make(map[int64]subscription)
	}
	e.subs[typ][id] = subscription{id: id, typ: typ, fn: handler}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if m := e.subs[typ]; m != nil {
			delete(m, id)
		}
	}
}

// Publish sends a notification to subscribers.
func (e *EventBus) Publish(ctx context.Context, n core.Notification) {
	if e.mode == DispatchAsync {
		select {
		case e.asyncQueue <- n:
		default:
			// Drop if queue full to preserve latency; alternative is blocking
		}
		return
	}
	e.dispatchSync(ctx, n)
}

func (e *EventBus) dispatchSync(ctx context.Context, n core.Notification) {
	e.mu.RLock()
	subs := e.subs[n.Type]
	// copy to avoid holding lock during callbacks
	handlers := make([]func(context.Context, core.Notification), 0, len(subs))
	for _, s := range subs {
		handlers = append(handlers, s.fn)
	}
	e.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, n)
	}
}
