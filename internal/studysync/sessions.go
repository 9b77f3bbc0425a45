package studysync

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fkhayef/studysync/internal/feed"
	"github.com/fkhayef/studysync/internal/livestate"
	"github.com/fkhayef/studysync/internal/session"
)

// ScheduleView lists a group's sessions by start time
type ScheduleView struct {
	*livestate.View[uuid.UUID, session.Session]
	api     SessionAPI
	groupID uuid.UUID
}

// NewScheduleView follows the sessions of groupID. With upcomingOnly, sessions
// that have already ended are dropped as they arrive, matching the server's
// end_time filter.
func NewScheduleView(api SessionAPI, f livestate.Feed, groupID uuid.UUID, upcomingOnly bool, hooks Hooks[session.Session], logger *zap.Logger) *ScheduleView {
	var keep func(session.Session) bool
	if upcomingOnly {
		keep = func(s session.Session) bool { return !s.EndTime.Before(time.Now()) }
	}
	v := livestate.NewView(f, livestate.Config[uuid.UUID, session.Session]{
		Name: "sessions",
		Key:  feed.Key{Table: "sessions", Event: feed.EventAll, Filter: feed.Eq("group_id", groupID)},
		Load: func(ctx context.Context) ([]session.Session, error) {
			rows, err := api.ListSessions(ctx, groupID, upcomingOnly)
			if err != nil {
				return nil, err
			}
			out := make([]session.Session, len(rows))
			for i, s := range rows {
				out[i] = *s
			}
			return out, nil
		},
		KeyOf: func(s session.Session) uuid.UUID { return s.ID },
		Less: func(a, b session.Session) bool {
			return a.StartTime.Before(b.StartTime)
		},
		Keep:      keep,
		Policy:    livestate.OptimisticPolicy{},
		OnChange:  hooks.OnChange,
		OnWarning: hooks.OnWarning,
		Logger:    logger.Named("sessions"),
	})
	return &ScheduleView{View: v, api: api, groupID: groupID}
}

// ValidateSchedule checks a session before it is created
func ValidateSchedule(req *session.CreateSessionRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return &livestate.ValidationFailure{Field: "title", Reason: "title is required"}
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return &livestate.ValidationFailure{Field: "time", Reason: "start and end time are required"}
	}
	if !req.EndTime.After(req.StartTime) {
		return &livestate.ValidationFailure{Field: "end_time", Reason: "end time must be after start time"}
	}
	return nil
}

// Schedule creates a session in the group
func (v *ScheduleView) Schedule(ctx context.Context, req *session.CreateSessionRequest) (*session.Session, error) {
	if err := ValidateSchedule(req); err != nil {
		return nil, err
	}
	s, err := v.api.CreateSession(ctx, v.groupID, req)
	if err != nil {
		return nil, &livestate.WriteFailure{Op: "schedule session", Err: err}
	}
	v.Merge(*s)
	return s, nil
}

// AttendanceView holds one session's RSVPs keyed by user. RSVP changes are
// applied optimistically and rolled back if the write fails.
type AttendanceView struct {
	*livestate.View[uuid.UUID, session.Attendance]
	api       SessionAPI
	auth      *Session
	profiles  *Profiles
	sessionID uuid.UUID
}

// NewAttendanceView follows the attendees of sessionID
func NewAttendanceView(api SessionAPI, f livestate.Feed, auth *Session, profiles *Profiles, sessionID uuid.UUID, hooks Hooks[session.Attendance], logger *zap.Logger) *AttendanceView {
	av := &AttendanceView{api: api, auth: auth, profiles: profiles, sessionID: sessionID}
	av.View = livestate.NewView(f, livestate.Config[uuid.UUID, session.Attendance]{
		Name: "attendance",
		Key:  feed.Key{Table: "session_attendees", Event: feed.EventAll, Filter: feed.Eq("session_id", sessionID)},
		Load: func(ctx context.Context) ([]session.Attendance, error) {
			rows, err := api.Attendees(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			out := make([]session.Attendance, len(rows))
			for i, a := range rows {
				out[i] = *a
			}
			return out, nil
		},
		KeyOf: func(a session.Attendance) uuid.UUID { return a.UserID },
		Less: func(a, b session.Attendance) bool {
			return a.CreatedAt.Before(b.CreatedAt)
		},
		Hydrate: av.hydrate,
		Carry: func(held, fresh session.Attendance) session.Attendance {
			fresh.Name = held.Name
			return fresh
		},
		Version:   func(a session.Attendance) time.Time { return a.UpdatedAt },
		Policy:    livestate.OptimisticPolicy{},
		OnChange:  hooks.OnChange,
		OnWarning: hooks.OnWarning,
		Logger:    logger.Named("attendance"),
	})
	return av
}

func (v *AttendanceView) hydrate(ctx context.Context, a session.Attendance) (session.Attendance, error) {
	if a.Name != "" {
		return a, nil
	}
	prof, err := v.profiles.Get(ctx, a.UserID)
	if err != nil {
		return a, err
	}
	a.Name = prof.Name
	return a, nil
}

// Mine returns the caller's current RSVP
func (v *AttendanceView) Mine() (session.AttendanceStatus, bool) {
	userID, err := v.auth.UserID()
	if err != nil {
		return "", false
	}
	a, ok := v.Get(userID)
	return a.Status, ok
}

// RSVP sets the caller's status. Choosing the current status again re-sends
// the write.
func (v *AttendanceView) RSVP(ctx context.Context, status session.AttendanceStatus) error {
	if !status.Valid() {
		return &livestate.ValidationFailure{Field: "status", Reason: "must be confirmed, tentative or declined"}
	}
	userID, err := v.auth.UserID()
	if err != nil {
		return &livestate.WriteFailure{Op: "rsvp", Err: err}
	}
	var name string
	if prof, err := v.profiles.Get(ctx, userID); err == nil {
		name = prof.Name
	}

	return v.Mutate(ctx, livestate.Mutation[uuid.UUID, session.Attendance]{
		Op:  "rsvp",
		Key: userID,
		Patch: func(current session.Attendance, present bool) session.Attendance {
			if !present {
				current = session.Attendance{SessionID: v.sessionID, UserID: userID, Name: name, CreatedAt: time.Now()}
			}
			current.Status = status
			return current
		},
		Write: func(ctx context.Context) (session.Attendance, error) {
			stored, err := v.api.SetAttendance(ctx, v.sessionID, status)
			if err != nil {
				return session.Attendance{}, err
			}
			out, err := v.hydrate(ctx, *stored)
			if err != nil {
				// Keep the name already shown.
				if cur, ok := v.Get(userID); ok {
					out.Name = cur.Name
				}
			}
			return out, nil
		},
	})
}
