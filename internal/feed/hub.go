package feed

import (
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Handler receives events for one subscription. It runs on the publisher's
// goroutine and must not block.
type Handler func(subID string, ev Event)

// Publisher accepts events from a change source
type Publisher interface {
	Publish(ev Event) int
}

type hubSub struct {
	id  string
	key Key
	fn  Handler
}

// Hub fans change events out to subscriptions. It is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*hubSub
	logger  *zap.Logger
	metrics *Metrics
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:    make(map[string]*hubSub),
		logger:  logger,
		metrics: metrics,
	}
}

// Subscribe registers fn for events matching key and returns the
// subscription id.
func (h *Hub) Subscribe(key Key, fn Handler) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	if fn == nil {
		return "", errors.New("handler is required")
	}

	sub := &hubSub{id: ulid.Make().String(), key: key, fn: fn}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	h.metrics.subscribed(1)
	h.logger.Debug("feed subscribe", zap.String("id", sub.id), zap.Stringer("key", key))
	return sub.id, nil
}

// Unsubscribe removes a subscription. It reports false for unknown ids.
func (h *Hub) Unsubscribe(id string) bool {
	h.mu.Lock()
	_, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()

	if ok {
		h.metrics.subscribed(-1)
		h.logger.Debug("feed unsubscribe", zap.String("id", id))
	}
	return ok
}

// Publish delivers ev to every matching subscription and returns how many
// handlers ran. Gap events go to every subscription.
func (h *Hub) Publish(ev Event) int {
	h.mu.RLock()
	targets := make([]*hubSub, 0, len(h.subs))
	for _, sub := range h.subs {
		if ev.Type == EventGap || sub.key.Matches(ev) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		sub.fn(sub.id, ev)
	}
	h.metrics.publish(ev, len(targets))
	return len(targets)
}

// Len returns the number of active subscriptions
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
