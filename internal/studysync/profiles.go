package studysync

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fkhayef/studysync/internal/profile"
)

const maxConcurrentLookups = 8

// Profiles caches profile lookups. Concurrent lookups of one id share a
// single request.
type Profiles struct {
	api   ProfileAPI
	group singleflight.Group

	mu    sync.RWMutex
	cache map[uuid.UUID]*profile.Profile
}

// NewProfiles creates an empty cache
func NewProfiles(api ProfileAPI) *Profiles {
	return &Profiles{api: api, cache: make(map[uuid.UUID]*profile.Profile)}
}

// Get returns the profile of id
func (p *Profiles) Get(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	p.mu.RLock()
	cached, ok := p.cache[id]
	p.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := p.group.Do(id.String(), func() (any, error) {
		prof, err := p.api.GetProfile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile %s: %w", id, err)
		}
		p.mu.Lock()
		p.cache[id] = prof
		p.mu.Unlock()
		return prof, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*profile.Profile), nil
}

// Resolve looks up every id concurrently. Any failure fails the whole call.
func (p *Profiles) Resolve(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*profile.Profile, error) {
	out := make(map[uuid.UUID]*profile.Profile, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		g.Go(func() error {
			prof, err := p.Get(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = prof
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Forget drops a cached profile so the next lookup refetches it
func (p *Profiles) Forget(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, id)
}
