package feed

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("group_id=eq.42")
	require.NoError(t, err)
	assert.Equal(t, Filter{Column: "group_id", Value: "42"}, f)
	assert.Equal(t, "group_id=eq.42", f.String())

	f, err = ParseFilter("")
	require.NoError(t, err)
	assert.True(t, f.IsZero())
	assert.Equal(t, "", f.String())

	_, err = ParseFilter("group_id")
	assert.Error(t, err)
	_, err = ParseFilter("group_id=gt.4")
	assert.Error(t, err)
	_, err = ParseFilter("=eq.4")
	assert.Error(t, err)
}

func TestFilterMatch(t *testing.T) {
	id := uuid.New()
	row := json.RawMessage(`{"group_id":"` + id.String() + `","capacity":8,"is_public":true,"bio":null}`)

	assert.True(t, Eq("group_id", id).Match(row))
	assert.False(t, Eq("group_id", uuid.New()).Match(row))
	assert.True(t, Filter{Column: "capacity", Value: "8"}.Match(row))
	assert.True(t, Filter{Column: "is_public", Value: "true"}.Match(row))
	assert.True(t, Filter{Column: "bio", Value: "null"}.Match(row))
	assert.False(t, Filter{Column: "missing", Value: "x"}.Match(row))
	assert.True(t, Filter{}.Match(row))
	assert.False(t, Filter{Column: "group_id", Value: "x"}.Match(nil))
	assert.False(t, Filter{Column: "group_id", Value: "x"}.Match(json.RawMessage(`not json`)))
}

func TestKeyMatchesUsesOldRowForDeletes(t *testing.T) {
	key := Key{Table: "messages", Event: EventAll, Filter: Filter{Column: "group_id", Value: "g1"}}

	assert.True(t, key.Matches(Event{Table: "messages", Type: EventInsert, New: json.RawMessage(`{"group_id":"g1"}`)}))
	assert.True(t, key.Matches(Event{Table: "messages", Type: EventDelete, Old: json.RawMessage(`{"group_id":"g1"}`)}))
	assert.False(t, key.Matches(Event{Table: "messages", Type: EventDelete, New: json.RawMessage(`{"group_id":"g1"}`)}))
	assert.False(t, key.Matches(Event{Table: "resources", Type: EventInsert, New: json.RawMessage(`{"group_id":"g1"}`)}))

	inserts := Key{Table: "messages", Event: EventInsert}
	assert.False(t, inserts.Matches(Event{Table: "messages", Type: EventUpdate, New: json.RawMessage(`{}`)}))
}

func TestKeyValidate(t *testing.T) {
	assert.NoError(t, Key{Table: "groups", Event: EventAll}.Validate())
	assert.Error(t, Key{Event: EventAll}.Validate())
	assert.Error(t, Key{Table: "groups", Event: EventGap}.Validate())
	assert.Error(t, Key{Table: "groups"}.Validate())
}

func TestDecode(t *testing.T) {
	type row struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	r, err := Decode[row](json.RawMessage(`{"id":"1","name":"Calc"}`))
	require.NoError(t, err)
	assert.Equal(t, row{ID: "1", Name: "Calc"}, r)

	_, err = Decode[row](json.RawMessage(`null`))
	assert.Error(t, err)
	_, err = Decode[row](json.RawMessage(`{"id":1}`))
	assert.Error(t, err)
}

func TestClientMessageKey(t *testing.T) {
	k, err := ClientMessage{Type: MsgSubscribe, Table: "messages", Event: EventInsert, Filter: "group_id=eq.7"}.Key()
	require.NoError(t, err)
	assert.Equal(t, "messages:INSERT:group_id=eq.7", k.String())

	_, err = ClientMessage{Type: MsgSubscribe, Table: "messages", Event: "UPSERT"}.Key()
	assert.Error(t, err)
}
