package studysync

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fkhayef/studysync/internal/feed"
	"github.com/fkhayef/studysync/internal/group"
	"github.com/fkhayef/studysync/internal/livestate"
)

// MemberView lists a group's members in join order
type MemberView struct {
	*livestate.View[uuid.UUID, group.GroupMember]
}

// NewMemberView follows the members of groupID
func NewMemberView(api MemberAPI, f livestate.Feed, profiles *Profiles, groupID uuid.UUID, hooks Hooks[group.GroupMember], logger *zap.Logger) *MemberView {
	v := livestate.NewView(f, livestate.Config[uuid.UUID, group.GroupMember]{
		Name: "members",
		Key:  feed.Key{Table: "group_members", Event: feed.EventAll, Filter: feed.Eq("group_id", groupID)},
		Load: func(ctx context.Context) ([]group.GroupMember, error) {
			rows, err := api.GroupMembers(ctx, groupID)
			if err != nil {
				return nil, err
			}
			out := make([]group.GroupMember, len(rows))
			for i, m := range rows {
				out[i] = *m
			}
			return out, nil
		},
		KeyOf: func(m group.GroupMember) uuid.UUID { return m.ID },
		Less: func(a, b group.GroupMember) bool {
			return a.JoinedAt.Before(b.JoinedAt)
		},
		Hydrate: func(ctx context.Context, m group.GroupMember) (group.GroupMember, error) {
			prof, err := profiles.Get(ctx, m.UserID)
			if err != nil {
				return m, err
			}
			m.Name, m.Avatar = prof.Name, prof.Avatar
			return m, nil
		},
		Carry: func(held, fresh group.GroupMember) group.GroupMember {
			fresh.Name, fresh.Avatar = held.Name, held.Avatar
			return fresh
		},
		Policy:    livestate.OptimisticPolicy{},
		OnChange:  hooks.OnChange,
		OnWarning: hooks.OnWarning,
		Logger:    logger.Named("members"),
	})
	return &MemberView{View: v}
}

// Admins returns the members with the admin role
func (v *MemberView) Admins() []group.GroupMember {
	var out []group.GroupMember
	for _, m := range v.Items() {
		if m.Role == group.MemberRoleAdmin {
			out = append(out, m)
		}
	}
	return out
}
