// Package livestate keeps a local, ordered copy of a remote collection in
// step with the backend: a snapshot from a Loader, incremental patches from
// the change feed, and speculative writes under a uniform Policy.
package livestate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fkhayef/studysync/internal/feed"
)

// Loader fetches a fully-hydrated, ordered snapshot of a scope
type Loader[T any] func(ctx context.Context) ([]T, error)

// Status of a view
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusDegraded
	StatusFailed
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const eventQueueSize = 64

// Config describes one view
type Config[K comparable, T any] struct {
	Name  string
	Key   feed.Key
	Load  Loader[T]
	KeyOf func(T) K
	Less  func(a, b T) bool

	// Decode converts a feed row. Defaults to JSON decoding into T.
	Decode func(raw json.RawMessage) (T, error)
	// Hydrate resolves display data for rows arriving from the feed.
	Hydrate func(ctx context.Context, item T) (T, error)
	// Carry copies display data from the held record into a fresh row whose
	// Hydrate failed. Without it the row is stored as decoded.
	Carry func(held, fresh T) T
	// Keep reports whether a row belongs to the view's scope. Rows it
	// rejects are removed instead of stored.
	Keep func(T) bool
	// Version returns the server timestamp used to discard stale write
	// confirmations.
	Version func(T) time.Time

	Policy    Policy
	OnChange  func(items []T)
	OnWarning func(err error)
	Logger    *zap.Logger
}

// View is the local state of one scope
type View[K comparable, T any] struct {
	cfg  Config[K, T]
	feed Feed
	sub  *Subscriber

	mu     sync.Mutex
	coll   *Collection[K, T]
	gen    map[K]uint64
	next   uint64
	status Status
	seq    uint64

	emitMu  sync.Mutex
	emitted uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewView creates a closed view. Call Open to load and subscribe.
func NewView[K comparable, T any](f Feed, cfg Config[K, T]) *View[K, T] {
	if cfg.Decode == nil {
		cfg.Decode = feed.Decode[T]
	}
	if cfg.Policy == nil {
		cfg.Policy = OptimisticPolicy{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &View[K, T]{
		cfg:  cfg,
		feed: f,
		coll: NewCollection(cfg.KeyOf, cfg.Less),
		gen:  make(map[K]uint64),
	}
}

// Open subscribes, loads the snapshot and starts applying events. Feed
// events that arrive while the snapshot loads are applied after it. A load
// error returns *LoadFailure and leaves the view in StatusFailed; a feed
// error leaves it in StatusDegraded with the snapshot in place.
func (v *View[K, T]) Open(ctx context.Context) error {
	v.mu.Lock()
	switch v.status {
	case StatusLoading, StatusReady, StatusDegraded:
		v.mu.Unlock()
		return ErrViewOpen
	}
	v.status = StatusLoading
	events := make(chan feed.Event, eventQueueSize)
	done := make(chan struct{})
	v.done = done
	v.ctx, v.cancel = context.WithCancel(context.Background())
	v.sub = NewSubscriber(v.feed, func(ev feed.Event) {
		select {
		case events <- ev:
		case <-done:
		}
	})
	sub, cancel := v.sub, v.cancel
	v.mu.Unlock()

	subErr := sub.Switch(ctx, v.cfg.Key)
	items, err := v.cfg.Load(ctx)

	v.mu.Lock()
	if v.status != StatusLoading {
		// Closed while loading.
		v.mu.Unlock()
		sub.Close()
		return ErrViewClosed
	}
	if err != nil {
		v.status = StatusFailed
		v.mu.Unlock()
		sub.Close()
		cancel()
		close(done)
		v.cfg.Logger.Warn("view load failed", zap.String("view", v.cfg.Name), zap.Error(err))
		return &LoadFailure{View: v.cfg.Name, Err: err}
	}
	v.coll.Reset(items)
	v.seq++
	v.status = StatusReady
	if subErr != nil {
		v.status = StatusDegraded
	}
	v.wg.Add(1)
	v.mu.Unlock()

	go v.loop(events, done, sub.Done())
	v.emit()
	if subErr != nil {
		v.cfg.Logger.Warn("view degraded", zap.String("view", v.cfg.Name), zap.Error(subErr))
		v.notify(subErr)
	}
	return nil
}

// Close stops the feed and waits for the event loop. No event is applied
// once Close has started. In-flight writes complete without touching state.
func (v *View[K, T]) Close() error {
	v.mu.Lock()
	prev := v.status
	v.status = StatusClosed
	if prev == StatusClosed || prev == StatusIdle || prev == StatusFailed {
		v.mu.Unlock()
		return nil
	}
	sub, cancel, done := v.sub, v.cancel, v.done
	v.mu.Unlock()

	err := sub.Close()
	cancel()
	close(done)
	v.wg.Wait()
	return err
}

// Status returns the current status
func (v *View[K, T]) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

// Items returns a copy of the records in order
func (v *View[K, T]) Items() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.coll.Items()
}

// Get returns the record with key k
func (v *View[K, T]) Get(k K) (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.coll.Get(k)
}

// Merge stores a record confirmed by the backend, unless the view already
// holds a newer version of it.
func (v *View[K, T]) Merge(item T) {
	v.mu.Lock()
	changed := v.mergeLocked(item)
	v.mu.Unlock()
	if changed {
		v.emit()
	}
}

// Remove drops the record with key k
func (v *View[K, T]) Remove(k K) {
	v.mu.Lock()
	changed := false
	if v.live() {
		changed = v.coll.Delete(k)
		v.touch(k)
	}
	v.mu.Unlock()
	if changed {
		v.emit()
	}
}

func (v *View[K, T]) loop(events <-chan feed.Event, done, dropped <-chan struct{}) {
	defer v.wg.Done()
	for {
		select {
		case <-done:
			return
		case ev := <-events:
			v.apply(ev)
		case <-dropped:
			dropped = nil
			select {
			case <-done:
				return
			default:
			}
			v.degrade(&SubscriptionFailure{Key: v.cfg.Key, Err: ErrFeedClosed})
		}
	}
}

func (v *View[K, T]) apply(ev feed.Event) {
	switch ev.Type {
	case feed.EventGap:
		v.reload()
	case feed.EventInsert, feed.EventUpdate:
		item, err := v.cfg.Decode(ev.New)
		if err != nil {
			v.cfg.Logger.Warn("dropping undecodable feed row", zap.String("view", v.cfg.Name), zap.Error(err))
			return
		}
		if v.cfg.Keep != nil && !v.cfg.Keep(item) {
			v.Remove(v.cfg.KeyOf(item))
			return
		}
		var hydrateErr error
		if v.cfg.Hydrate != nil {
			hydrated, err := v.cfg.Hydrate(v.ctx, item)
			if err != nil {
				if v.ctx.Err() != nil {
					return
				}
				hydrateErr = err
			} else {
				item = hydrated
			}
		}

		// A row that failed to hydrate still replaces one already held; an
		// unseen one is left out until the next reload.
		v.mu.Lock()
		k := v.cfg.KeyOf(item)
		held, present := v.coll.Get(k)
		changed := v.live() && (hydrateErr == nil || present)
		if changed {
			if hydrateErr != nil && v.cfg.Carry != nil {
				item = v.cfg.Carry(held, item)
			}
			v.coll.Upsert(item)
			v.touch(k)
		}
		v.mu.Unlock()
		if changed {
			v.emit()
		}

		switch {
		case hydrateErr == nil:
		case present:
			v.warn(hydrateErr)
		default:
			v.degrade(hydrateErr)
		}
	case feed.EventDelete:
		item, err := v.cfg.Decode(ev.Old)
		if err != nil {
			v.cfg.Logger.Warn("dropping undecodable feed row", zap.String("view", v.cfg.Name), zap.Error(err))
			return
		}
		v.Remove(v.cfg.KeyOf(item))
	}
}

// reload replaces the snapshot after the feed reported lost events
func (v *View[K, T]) reload() {
	items, err := v.cfg.Load(v.ctx)
	if err != nil {
		if v.ctx.Err() == nil {
			v.degrade(&LoadFailure{View: v.cfg.Name, Err: err})
		}
		return
	}
	v.mu.Lock()
	live := v.live()
	if live {
		v.coll.Reset(items)
		for k := range v.gen {
			v.touch(k)
		}
	}
	v.mu.Unlock()
	if live {
		v.emit()
	}
}

func (v *View[K, T]) degrade(err error) {
	v.mu.Lock()
	if v.status == StatusReady {
		v.status = StatusDegraded
	}
	v.mu.Unlock()
	v.cfg.Logger.Warn("view degraded", zap.String("view", v.cfg.Name), zap.Error(err))
	v.notify(err)
}

func (v *View[K, T]) warn(err error) {
	v.cfg.Logger.Warn("view warning", zap.String("view", v.cfg.Name), zap.Error(err))
	v.notify(err)
}

func (v *View[K, T]) notify(err error) {
	if v.cfg.OnWarning != nil {
		v.cfg.OnWarning(err)
	}
}

func (v *View[K, T]) mergeLocked(item T) bool {
	if !v.live() {
		return false
	}
	k := v.cfg.KeyOf(item)
	if v.cfg.Keep != nil && !v.cfg.Keep(item) {
		if !v.coll.Delete(k) {
			return false
		}
		v.touch(k)
		return true
	}
	if current, ok := v.coll.Get(k); ok && v.cfg.Version != nil {
		if v.cfg.Version(current).After(v.cfg.Version(item)) {
			return false
		}
	}
	v.coll.Upsert(item)
	v.touch(k)
	return true
}

// touch marks k as changed and returns its new generation
func (v *View[K, T]) touch(k K) uint64 {
	v.next++
	v.gen[k] = v.next
	v.seq++
	return v.next
}

func (v *View[K, T]) live() bool {
	return v.status == StatusReady || v.status == StatusDegraded
}

// emit hands the latest snapshot to OnChange. Snapshots older than one
// already delivered are skipped.
func (v *View[K, T]) emit() {
	if v.cfg.OnChange == nil {
		return
	}
	v.emitMu.Lock()
	defer v.emitMu.Unlock()

	v.mu.Lock()
	seq, items := v.seq, v.coll.Items()
	v.mu.Unlock()

	if seq < v.emitted {
		return
	}
	v.emitted = seq
	v.cfg.OnChange(items)
}
