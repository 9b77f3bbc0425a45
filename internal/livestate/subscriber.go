package livestate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fkhayef/studysync/internal/feed"
)

// Feed opens change-feed subscriptions
type Feed interface {
	Subscribe(ctx context.Context, key feed.Key, deliver func(feed.Event)) (Subscription, error)
}

// Subscription is one open change-feed subscription
type Subscription interface {
	// Close stops delivery. No event is delivered once Close returns.
	Close() error
	// Done is closed when the subscription ends for any reason.
	Done() <-chan struct{}
}

// Subscriber holds at most one live subscription. Switching to a new key
// closes the previous subscription before the new one is opened.
type Subscriber struct {
	feed    Feed
	deliver func(feed.Event)

	mu  sync.Mutex
	key feed.Key
	sub Subscription
	gen atomic.Uint64
}

// NewSubscriber creates a subscriber that hands events to deliver
func NewSubscriber(f Feed, deliver func(feed.Event)) *Subscriber {
	return &Subscriber{feed: f, deliver: deliver}
}

// Switch makes key the live subscription. Switching to the current key is a
// no-op.
func (s *Subscriber) Switch(ctx context.Context, key feed.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil && s.key == key {
		return nil
	}
	s.closeLocked()

	gen := s.gen.Add(1)
	sub, err := s.feed.Subscribe(ctx, key, func(ev feed.Event) {
		// Events still in flight for a replaced subscription are dropped.
		if s.gen.Load() == gen {
			s.deliver(ev)
		}
	})
	if err != nil {
		return &SubscriptionFailure{Key: key, Err: err}
	}
	s.key, s.sub = key, sub
	return nil
}

// Key returns the live subscription's identity
func (s *Subscriber) Key() (feed.Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, s.sub != nil
}

// Done is closed when the live subscription ends. It is nil when there is no
// live subscription.
func (s *Subscriber) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return nil
	}
	return s.sub.Done()
}

// Close ends the live subscription, if any
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Subscriber) closeLocked() error {
	s.gen.Add(1)
	if s.sub == nil {
		return nil
	}
	err := s.sub.Close()
	s.sub = nil
	s.key = feed.Key{}
	return err
}
