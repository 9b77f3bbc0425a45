package studysync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fkhayef/studysync/internal/feed"
	"github.com/fkhayef/studysync/internal/group"
)

func TestMemberViewFollowsJoins(t *testing.T) {
	b, f := newBackend(), newFakeFeed()
	groupID := uuid.New()
	ana, bo := b.addProfile("Ana"), b.addProfile("Bo")
	now := time.Now()
	b.members = []*group.GroupMember{
		{ID: uuid.New(), GroupID: groupID, UserID: ana, Role: group.MemberRoleAdmin, JoinedAt: now.Add(-time.Hour), Name: "Ana"},
	}

	v := NewMemberView(b, f, NewProfiles(b), groupID, Hooks[group.GroupMember]{}, zaptest.NewLogger(t))
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()

	joined := group.GroupMember{ID: uuid.New(), GroupID: groupID, UserID: bo, Role: group.MemberRoleMember, JoinedAt: now}
	f.publish(rowEvent("group_members", feed.EventInsert, joined))

	require.Eventually(t, func() bool { return len(v.Items()) == 2 }, time.Second, 5*time.Millisecond)
	items := v.Items()
	assert.Equal(t, "Ana", items[0].Name)
	assert.Equal(t, "Bo", items[1].Name)

	admins := v.Admins()
	require.Len(t, admins, 1)
	assert.Equal(t, ana, admins[0].UserID)

	f.publish(rowEvent("group_members", feed.EventDelete, joined))
	require.Eventually(t, func() bool { return len(v.Items()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestMemberViewReloadsAfterGap(t *testing.T) {
	b, f := newBackend(), newFakeFeed()
	groupID := uuid.New()
	ana := b.addProfile("Ana")

	v := NewMemberView(b, f, NewProfiles(b), groupID, Hooks[group.GroupMember]{}, zaptest.NewLogger(t))
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()
	assert.Empty(t, v.Items())

	b.mu.Lock()
	b.members = append(b.members, &group.GroupMember{ID: uuid.New(), GroupID: groupID, UserID: ana, Role: group.MemberRoleAdmin})
	b.mu.Unlock()
	f.publish(feed.Event{Type: feed.EventGap})

	require.Eventually(t, func() bool { return len(v.Items()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.count())
}
