package livestate

import (
	"context"
	"sync"
	"time"

	"github.com/fkhayef/studysync/internal/feed"
)

type item struct {
	ID        string    `json:"id"`
	Pos       int       `json:"pos"`
	Body      string    `json:"body"`
	Author    string    `json:"author,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func keyOf(i item) string      { return i.ID }
func byPos(a, b item) bool     { return a.Pos < b.Pos }
func version(i item) time.Time { return i.UpdatedAt }

type fakeFeed struct {
	mu     sync.Mutex
	subs   []*fakeSub
	err    error
	opened int
}

type fakeSub struct {
	feed    *fakeFeed
	key     feed.Key
	deliver func(feed.Event)
	done    chan struct{}
	once    sync.Once
}

func (f *fakeFeed) Subscribe(_ context.Context, key feed.Key, deliver func(feed.Event)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSub{feed: f, key: key, deliver: deliver, done: make(chan struct{})}
	f.subs = append(f.subs, s)
	f.opened++
	return s, nil
}

func (s *fakeSub) Close() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	for i, other := range s.feed.subs {
		if other == s {
			s.feed.subs = append(s.feed.subs[:i], s.feed.subs[i+1:]...)
			break
		}
	}
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeSub) Done() <-chan struct{} { return s.done }

// drop ends every live subscription as if the connection was lost
func (f *fakeFeed) drop() {
	f.mu.Lock()
	subs := f.subs
	f.subs = nil
	f.mu.Unlock()
	for _, s := range subs {
		s.once.Do(func() { close(s.done) })
	}
}

func (f *fakeFeed) live() []feed.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]feed.Key, 0, len(f.subs))
	for _, s := range f.subs {
		keys = append(keys, s.key)
	}
	return keys
}

func (f *fakeFeed) emit(ev feed.Event) {
	f.mu.Lock()
	subs := append([]*fakeSub(nil), f.subs...)
	f.mu.Unlock()
	for _, s := range subs {
		if ev.Type == feed.EventGap || s.key.Matches(ev) {
			s.deliver(ev)
		}
	}
}
