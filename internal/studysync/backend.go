// Package studysync holds the client-side views: chat, resources, sessions
// with RSVP, and group members. Each view keeps a livestate.View in step with
// the backend and exposes the operations a user performs on it.
package studysync

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/fkhayef/studysync/internal/client"
	"github.com/fkhayef/studysync/internal/group"
	"github.com/fkhayef/studysync/internal/message"
	"github.com/fkhayef/studysync/internal/profile"
	"github.com/fkhayef/studysync/internal/resource"
	"github.com/fkhayef/studysync/internal/session"
)

// Bucket holds every uploaded resource
const Bucket = "studysync"

// ProfileAPI resolves user display data
type ProfileAPI interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*profile.Profile, error)
}

// MessageAPI is the chat backend
type MessageAPI interface {
	ListMessages(ctx context.Context, groupID uuid.UUID, limit int) ([]*message.Message, error)
	SendMessage(ctx context.Context, groupID uuid.UUID, content string) (*message.Message, error)
}

// ResourceAPI is the resource and object storage backend
type ResourceAPI interface {
	ListResources(ctx context.Context, groupID uuid.UUID) ([]*resource.Resource, error)
	CreateResource(ctx context.Context, groupID uuid.UUID, req *resource.CreateResourceRequest) (*resource.Resource, error)
	DeleteResource(ctx context.Context, id uuid.UUID) error
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, opts client.PutOptions) (string, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

// SessionAPI is the scheduling backend
type SessionAPI interface {
	ListSessions(ctx context.Context, groupID uuid.UUID, upcomingOnly bool) ([]*session.Session, error)
	CreateSession(ctx context.Context, groupID uuid.UUID, req *session.CreateSessionRequest) (*session.Session, error)
	Attendees(ctx context.Context, sessionID uuid.UUID) ([]*session.Attendance, error)
	SetAttendance(ctx context.Context, sessionID uuid.UUID, status session.AttendanceStatus) (*session.Attendance, error)
}

// MemberAPI lists group members
type MemberAPI interface {
	GroupMembers(ctx context.Context, groupID uuid.UUID) ([]*group.GroupMember, error)
}

// Hooks are called from the view's goroutines. They must not block.
type Hooks[T any] struct {
	OnChange  func(items []T)
	OnWarning func(err error)
}
