package feed

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	ids    []string
}

func (r *recorder) handle(id string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	r.events = append(r.events, ev)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestHubDeliversMatchingEvents(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)

	var g1, all recorder
	id1, err := hub.Subscribe(Key{Table: "messages", Event: EventInsert, Filter: Filter{Column: "group_id", Value: "g1"}}, g1.handle)
	require.NoError(t, err)
	_, err = hub.Subscribe(Key{Table: "messages", Event: EventAll}, all.handle)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Len())

	n := hub.Publish(Event{Table: "messages", Type: EventInsert, New: json.RawMessage(`{"group_id":"g1"}`)})
	assert.Equal(t, 2, n)
	n = hub.Publish(Event{Table: "messages", Type: EventInsert, New: json.RawMessage(`{"group_id":"g2"}`)})
	assert.Equal(t, 1, n)
	n = hub.Publish(Event{Table: "groups", Type: EventInsert, New: json.RawMessage(`{}`)})
	assert.Equal(t, 0, n)

	assert.Equal(t, 1, g1.len())
	assert.Equal(t, []string{id1}, g1.ids)
	assert.Equal(t, 2, all.len())
}

func TestHubGapReachesEverySubscription(t *testing.T) {
	hub := NewHub(nil, nil)
	var a, b recorder
	_, err := hub.Subscribe(Key{Table: "messages", Event: EventInsert, Filter: Filter{Column: "group_id", Value: "g1"}}, a.handle)
	require.NoError(t, err)
	_, err = hub.Subscribe(Key{Table: "sessions", Event: EventAll}, b.handle)
	require.NoError(t, err)

	assert.Equal(t, 2, hub.Publish(Event{Type: EventGap}))
	assert.Equal(t, EventGap, a.events[0].Type)
	assert.Equal(t, EventGap, b.events[0].Type)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(nil, nil)
	var r recorder
	id, err := hub.Subscribe(Key{Table: "groups", Event: EventAll}, r.handle)
	require.NoError(t, err)

	assert.True(t, hub.Unsubscribe(id))
	assert.False(t, hub.Unsubscribe(id))
	assert.Equal(t, 0, hub.Publish(Event{Table: "groups", Type: EventUpdate, New: json.RawMessage(`{}`)}))
	assert.Equal(t, 0, hub.Len())
}

func TestHubRejectsInvalidSubscriptions(t *testing.T) {
	hub := NewHub(nil, nil)
	_, err := hub.Subscribe(Key{Table: "groups", Event: "BOGUS"}, func(string, Event) {})
	assert.Error(t, err)
	_, err = hub.Subscribe(Key{Table: "groups", Event: EventAll}, nil)
	assert.Error(t, err)
}

func TestHubMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	hub := NewHub(nil, m)

	id, err := hub.Subscribe(Key{Table: "groups", Event: EventAll}, func(string, Event) {})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscriptions))

	hub.Publish(Event{Table: "groups", Type: EventInsert, New: json.RawMessage(`{}`)})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues("groups", "INSERT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.delivered))

	hub.Unsubscribe(id)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.subscriptions))
}

func TestHubConcurrentPublish(t *testing.T) {
	hub := NewHub(nil, nil)
	var r recorder
	_, err := hub.Subscribe(Key{Table: "messages", Event: EventAll}, r.handle)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Publish(Event{Table: "messages", Type: EventInsert, New: json.RawMessage(`{}`)})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, r.len())
}
