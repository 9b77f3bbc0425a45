package livestate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestCollectionOrderedInsert(t *testing.T) {
	c := NewCollection(keyOf, byPos)
	c.Reset([]item{{ID: "c", Pos: 3}, {ID: "a", Pos: 1}})

	assert.True(t, c.Upsert(item{ID: "b", Pos: 2}))
	assert.True(t, c.Upsert(item{ID: "d", Pos: 9}))
	assert.True(t, c.Upsert(item{ID: "z", Pos: 0}))

	want := []item{{ID: "z", Pos: 0}, {ID: "a", Pos: 1}, {ID: "b", Pos: 2}, {ID: "c", Pos: 3}, {ID: "d", Pos: 9}}
	if diff := cmp.Diff(want, c.Items()); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectionUpdateKeepsPosition(t *testing.T) {
	c := NewCollection(keyOf, byPos)
	c.Reset([]item{{ID: "a", Pos: 1}, {ID: "b", Pos: 2}, {ID: "c", Pos: 3}})

	// An update whose ordering key changed still stays where it was.
	assert.False(t, c.Upsert(item{ID: "a", Pos: 99, Body: "edited"}))

	want := []item{{ID: "a", Pos: 99, Body: "edited"}, {ID: "b", Pos: 2}, {ID: "c", Pos: 3}}
	if diff := cmp.Diff(want, c.Items()); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectionDeleteIdempotent(t *testing.T) {
	c := NewCollection(keyOf, byPos)
	c.Reset([]item{{ID: "a", Pos: 1}, {ID: "b", Pos: 2}})

	assert.True(t, c.Delete("a"))
	before := c.Items()
	assert.False(t, c.Delete("a"))
	assert.False(t, c.Delete("missing"))
	assert.Empty(t, cmp.Diff(before, c.Items()))
	assert.Equal(t, 1, c.Len())
}

func TestCollectionResetDeduplicates(t *testing.T) {
	c := NewCollection[string, item](keyOf, nil)
	c.Reset([]item{{ID: "a", Body: "old"}, {ID: "b"}, {ID: "a", Body: "new"}})

	want := []item{{ID: "a", Body: "new"}, {ID: "b"}}
	assert.Empty(t, cmp.Diff(want, c.Items()))

	c.Upsert(item{ID: "c"})
	got, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "c", got.ID)
	assert.Equal(t, "c", c.Items()[2].ID)
}

// Replaying any event sequence against the snapshot yields the same state as
// applying it to the collection incrementally.
func TestCollectionReplayMatchesIncremental(t *testing.T) {
	snapshot := []item{{ID: "a", Pos: 1}, {ID: "b", Pos: 2}}
	type op struct {
		del  bool
		item item
	}
	ops := []op{
		{item: item{ID: "c", Pos: 3}},
		{item: item{ID: "a", Pos: 1, Body: "v2"}},
		{del: true, item: item{ID: "b"}},
		{del: true, item: item{ID: "b"}},
		{item: item{ID: "b", Pos: 2, Body: "back"}},
		{item: item{ID: "a", Pos: 1, Body: "v3"}},
	}

	incremental := NewCollection(keyOf, byPos)
	incremental.Reset(snapshot)
	for _, o := range ops {
		if o.del {
			incremental.Delete(o.item.ID)
		} else {
			incremental.Upsert(o.item)
		}
	}

	state := map[string]item{}
	for _, i := range snapshot {
		state[i.ID] = i
	}
	for _, o := range ops {
		if o.del {
			delete(state, o.item.ID)
		} else {
			state[o.item.ID] = o.item
		}
	}
	replayed := NewCollection(keyOf, byPos)
	var all []item
	for _, i := range state {
		all = append(all, i)
	}
	replayed.Reset(all)

	if diff := cmp.Diff(replayed.Items(), incremental.Items()); diff != "" {
		t.Errorf("replay mismatch (-replayed +incremental):\n%s", diff)
	}
}
