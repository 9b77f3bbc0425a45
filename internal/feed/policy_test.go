package feed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPolicyDeniesUnknownTables(t *testing.T) {
	p := NewPolicy().Allow("groups")
	user := uuid.New()

	assert.NoError(t, p.Authorize(context.Background(), user, Key{Table: "groups", Event: EventAll}))
	assert.ErrorIs(t, p.Authorize(context.Background(), user, Key{Table: "users", Event: EventAll}), ErrForbidden)
}

func TestRequireFilterOn(t *testing.T) {
	member := uuid.New()
	group := uuid.New()
	rule := RequireFilterOn("group_id", func(_ context.Context, userID, groupID uuid.UUID) error {
		if userID == member && groupID == group {
			return nil
		}
		return ErrForbidden
	})
	p := NewPolicy().Require("messages", rule)
	ctx := context.Background()

	assert.NoError(t, p.Authorize(ctx, member, Key{Table: "messages", Event: EventInsert, Filter: Eq("group_id", group)}))
	assert.ErrorIs(t, p.Authorize(ctx, uuid.New(), Key{Table: "messages", Event: EventInsert, Filter: Eq("group_id", group)}), ErrForbidden)
	assert.ErrorIs(t, p.Authorize(ctx, member, Key{Table: "messages", Event: EventInsert}), ErrForbidden)
	assert.ErrorIs(t, p.Authorize(ctx, member, Key{Table: "messages", Event: EventInsert, Filter: Filter{Column: "group_id", Value: "nope"}}), ErrForbidden)
}

func TestOwnRows(t *testing.T) {
	me := uuid.New()
	p := NewPolicy().Require("notifications", OwnRows("recipient_id"))
	ctx := context.Background()

	assert.NoError(t, p.Authorize(ctx, me, Key{Table: "notifications", Event: EventInsert, Filter: Eq("recipient_id", me)}))
	err := p.Authorize(ctx, me, Key{Table: "notifications", Event: EventInsert, Filter: Eq("recipient_id", uuid.New())})
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestPolicyApplyRedacts(t *testing.T) {
	p := NewPolicy().Allow("groups").Redact("groups", "invitation_code")

	ev := p.Apply(Event{
		Table: "groups",
		Type:  EventUpdate,
		New:   json.RawMessage(`{"id":"1","name":"Calc","invitation_code":"ABC123"}`),
		Old:   json.RawMessage(`{"id":"1","invitation_code":"ABC123"}`),
	})
	assert.JSONEq(t, `{"id":"1","name":"Calc"}`, string(ev.New))
	assert.JSONEq(t, `{"id":"1"}`, string(ev.Old))

	untouched := json.RawMessage(`{"id":"m1","content":"hi"}`)
	assert.Equal(t, untouched, p.Apply(Event{Table: "messages", New: untouched}).New)
}
