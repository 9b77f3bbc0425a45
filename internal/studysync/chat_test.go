package studysync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fkhayef/studysync/internal/feed"
	"github.com/fkhayef/studysync/internal/livestate"
	"github.com/fkhayef/studysync/internal/message"
)

func openChat(t *testing.T, b *backend, f *fakeFeed, groupID uuid.UUID) *ChatView {
	t.Helper()
	v := NewChatView(b, f, NewProfiles(b), groupID, 50, Hooks[ChatMessage]{}, zaptest.NewLogger(t))
	require.NoError(t, v.Open(context.Background()))
	t.Cleanup(func() { v.Close() })
	return v
}

func TestChatLoadsHydratedHistory(t *testing.T) {
	b, f := newBackend(), newFakeFeed()
	groupID := uuid.New()
	ana, bo := b.addProfile("Ana"), b.addProfile("Bo")
	now := time.Now()
	b.messages = []*message.Message{
		{ID: uuid.New(), GroupID: groupID, UserID: bo, Content: "second", CreatedAt: now},
		{ID: uuid.New(), GroupID: groupID, UserID: ana, Content: "first", CreatedAt: now.Add(-time.Minute)},
		{ID: uuid.New(), GroupID: uuid.New(), UserID: ana, Content: "elsewhere", CreatedAt: now},
	}

	v := openChat(t, b, f, groupID)

	items := v.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].Content)
	assert.Equal(t, "Ana", items[0].AuthorName)
	assert.Equal(t, "second", items[1].Content)
	assert.Equal(t, "Bo", items[1].AuthorName)
}

func TestChatAppliesFeedInserts(t *testing.T) {
	b, f := newBackend(), newFakeFeed()
	groupID := uuid.New()
	ana := b.addProfile("Ana")
	v := openChat(t, b, f, groupID)

	f.publish(rowEvent("messages", feed.EventInsert, message.Message{ID: uuid.New(), GroupID: uuid.New(), UserID: ana, Content: "other group"}))
	f.publish(rowEvent("messages", feed.EventInsert, message.Message{ID: uuid.New(), GroupID: groupID, UserID: ana, Content: "hello", CreatedAt: time.Now()}))

	require.Eventually(t, func() bool { return len(v.Items()) == 1 }, time.Second, 5*time.Millisecond)
	got := v.Items()[0]
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, "Ana", got.AuthorName)
}

func TestChatSkipsRowsWithUnknownAuthor(t *testing.T) {
	b, f := newBackend(), newFakeFeed()
	groupID := uuid.New()
	warnings := make(chan error, 1)
	v := NewChatView(b, f, NewProfiles(b), groupID, 50, Hooks[ChatMessage]{
		OnWarning: func(err error) { warnings <- err },
	}, zaptest.NewLogger(t))
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()

	f.publish(rowEvent("messages", feed.EventInsert, message.Message{ID: uuid.New(), GroupID: groupID, UserID: uuid.New(), Content: "ghost"}))

	select {
	case err := <-warnings:
		assert.Contains(t, err.Error(), "failed to load profile")
	case <-time.After(time.Second):
		t.Fatal("no warning for unresolvable author")
	}
	assert.Empty(t, v.Items())
}

func TestChatSendValidates(t *testing.T) {
	b, f := newBackend(), newFakeFeed()
	v := openChat(t, b, f, uuid.New())

	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "  \n\t"},
		{"too long", strings.Repeat("é", message.MaxContentLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Send(context.Background(), tt.content)
			var vf *livestate.ValidationFailure
			require.True(t, errors.As(err, &vf))
			assert.Equal(t, "content", vf.Field)
		})
	}
	assert.Empty(t, b.messages)
}

func TestChatSendShowsStoredMessage(t *testing.T) {
	b, f := newBackend(), newFakeFeed()
	groupID := uuid.New()
	b.me = b.addProfile("Ana")
	v := openChat(t, b, f, groupID)

	sent, err := v.Send(context.Background(), strings.Repeat("é", message.MaxContentLength))
	require.NoError(t, err)
	assert.Equal(t, "Ana", sent.AuthorName)

	got, ok := v.Get(sent.ID)
	require.True(t, ok)
	assert.Equal(t, sent.Content, got.Content)

	// The feed echo of the same row leaves one entry.
	f.publish(rowEvent("messages", feed.EventInsert, sent.Message))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, v.Items(), 1)
}
