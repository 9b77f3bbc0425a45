package studysync

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fkhayef/studysync/internal/feed"
	"github.com/fkhayef/studysync/internal/livestate"
	"github.com/fkhayef/studysync/internal/message"
)

// ChatMessage is a message with its author's display data
type ChatMessage struct {
	message.Message
	AuthorName   string  `json:"author_name,omitempty"`
	AuthorAvatar *string `json:"author_avatar,omitempty"`
}

// ChatView is one group's chat, oldest message first
type ChatView struct {
	*livestate.View[uuid.UUID, ChatMessage]
	api     MessageAPI
	groupID uuid.UUID
	hydrate func(context.Context, ChatMessage) (ChatMessage, error)
}

// NewChatView loads up to limit recent messages of groupID and follows new ones
func NewChatView(api MessageAPI, f livestate.Feed, profiles *Profiles, groupID uuid.UUID, limit int, hooks Hooks[ChatMessage], logger *zap.Logger) *ChatView {
	hydrate := func(ctx context.Context, m ChatMessage) (ChatMessage, error) {
		prof, err := profiles.Get(ctx, m.UserID)
		if err != nil {
			return m, err
		}
		m.AuthorName, m.AuthorAvatar = prof.Name, prof.Avatar
		return m, nil
	}

	load := func(ctx context.Context) ([]ChatMessage, error) {
		msgs, err := api.ListMessages(ctx, groupID, limit)
		if err != nil {
			return nil, err
		}
		authors := make([]uuid.UUID, len(msgs))
		for i, m := range msgs {
			authors[i] = m.UserID
		}
		byID, err := profiles.Resolve(ctx, authors)
		if err != nil {
			return nil, err
		}
		out := make([]ChatMessage, len(msgs))
		for i, m := range msgs {
			out[i] = ChatMessage{Message: *m}
			if prof := byID[m.UserID]; prof != nil {
				out[i].AuthorName, out[i].AuthorAvatar = prof.Name, prof.Avatar
			}
		}
		return out, nil
	}

	v := livestate.NewView(f, livestate.Config[uuid.UUID, ChatMessage]{
		Name:  "chat",
		Key:   feed.Key{Table: "messages", Event: feed.EventInsert, Filter: feed.Eq("group_id", groupID)},
		Load:  load,
		KeyOf: func(m ChatMessage) uuid.UUID { return m.ID },
		Less: func(a, b ChatMessage) bool {
			return a.CreatedAt.Before(b.CreatedAt)
		},
		Hydrate:   hydrate,
		Policy:    livestate.OptimisticPolicy{},
		OnChange:  hooks.OnChange,
		OnWarning: hooks.OnWarning,
		Logger:    logger.Named("chat"),
	})
	return &ChatView{View: v, api: api, groupID: groupID, hydrate: hydrate}
}

// ValidateContent checks a message before it is sent
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &livestate.ValidationFailure{Field: "content", Reason: "message is empty"}
	}
	if n := utf8.RuneCountInString(content); n > message.MaxContentLength {
		return &livestate.ValidationFailure{Field: "content", Reason: fmt.Sprintf("%d characters, at most %d allowed", n, message.MaxContentLength)}
	}
	return nil
}

// Send posts content. The stored message is shown without waiting for the
// feed once its author is resolved.
func (v *ChatView) Send(ctx context.Context, content string) (*ChatMessage, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	m, err := v.api.SendMessage(ctx, v.groupID, content)
	if err != nil {
		return nil, &livestate.WriteFailure{Op: "send message", Err: err}
	}
	out, err := v.hydrate(ctx, ChatMessage{Message: *m})
	if err != nil {
		// The feed delivers it once the author resolves.
		return &out, nil
	}
	v.Merge(out)
	return &out, nil
}
