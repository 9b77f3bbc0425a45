package studysync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fkhayef/studysync/internal/client"
	"github.com/fkhayef/studysync/internal/feed"
	"github.com/fkhayef/studysync/internal/livestate"
	"github.com/fkhayef/studysync/internal/session"
)

func TestValidateSchedule(t *testing.T) {
	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		req   session.CreateSessionRequest
		field string
	}{
		{"ok", session.CreateSessionRequest{Title: "Review", StartTime: start, EndTime: start.Add(time.Hour)}, ""},
		{"no title", session.CreateSessionRequest{StartTime: start, EndTime: start.Add(time.Hour)}, "title"},
		{"no end", session.CreateSessionRequest{Title: "Review", StartTime: start}, "time"},
		{"ends at start", session.CreateSessionRequest{Title: "Review", StartTime: start, EndTime: start}, "end_time"},
		{"ends before start", session.CreateSessionRequest{Title: "Review", StartTime: start, EndTime: start.Add(-time.Minute)}, "end_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(&tt.req)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var vf *livestate.ValidationFailure
			require.True(t, errors.As(err, &vf))
			assert.Equal(t, tt.field, vf.Field)
		})
	}
}

func TestScheduleOrdersByStartTime(t *testing.T) {
	b, f := newBackend(), newFakeFeed()
	groupID := uuid.New()
	start := time.Now().Add(24 * time.Hour)
	b.sessions = []*session.Session{{ID: uuid.New(), GroupID: groupID, Title: "Later", StartTime: start, EndTime: start.Add(time.Hour)}}

	v := NewScheduleView(b, f, groupID, true, Hooks[session.Session]{}, zaptest.NewLogger(t))
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()

	_, err := v.Schedule(context.Background(), &session.CreateSessionRequest{
		Title: "Sooner", StartTime: start.Add(-2 * time.Hour), EndTime: start.Add(-time.Hour),
	})
	require.NoError(t, err)

	items := v.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Sooner", items[0].Title)
	assert.Equal(t, "Later", items[1].Title)

	_, err = v.Schedule(context.Background(), &session.CreateSessionRequest{Title: "Broken", StartTime: start})
	var vf *livestate.ValidationFailure
	assert.True(t, errors.As(err, &vf))
	assert.Len(t, v.Items(), 2)
}

func openAttendance(t *testing.T, b *backend, signedIn bool) (*AttendanceView, *fakeFeed, uuid.UUID) {
	t.Helper()
	f := newFakeFeed()
	stub := &authStub{}
	if signedIn {
		stub.current = &client.Session{UserID: b.me}
	}
	auth := NewSession(stub)
	t.Cleanup(auth.Close)

	sessionID := uuid.New()
	v := NewAttendanceView(b, f, auth, NewProfiles(b), sessionID, Hooks[session.Attendance]{}, zaptest.NewLogger(t))
	require.NoError(t, v.Open(context.Background()))
	t.Cleanup(func() { v.Close() })
	return v, f, sessionID
}

func TestRSVPCreatesAndUpdatesOneRow(t *testing.T) {
	b := newBackend()
	b.me = b.addProfile("Ana")
	v, _, _ := openAttendance(t, b, true)

	_, ok := v.Mine()
	assert.False(t, ok)

	require.NoError(t, v.RSVP(context.Background(), session.StatusConfirmed))
	status, ok := v.Mine()
	require.True(t, ok)
	assert.Equal(t, session.StatusConfirmed, status)

	require.NoError(t, v.RSVP(context.Background(), session.StatusConfirmed))
	require.NoError(t, v.RSVP(context.Background(), session.StatusTentative))

	items := v.Items()
	require.Len(t, items, 1)
	assert.Equal(t, session.StatusTentative, items[0].Status)
	assert.Equal(t, "Ana", items[0].Name)
	assert.Len(t, b.attendees, 1)
	assert.Equal(t, 3, b.rsvpWrites)
}

func TestRSVPRollsBackFailedWrite(t *testing.T) {
	b := newBackend()
	b.me = b.addProfile("Ana")
	v, _, _ := openAttendance(t, b, true)
	require.NoError(t, v.RSVP(context.Background(), session.StatusConfirmed))

	b.failRSVP = true
	err := v.RSVP(context.Background(), session.StatusDeclined)

	var wf *livestate.WriteFailure
	require.True(t, errors.As(err, &wf))
	assert.True(t, wf.RolledBack)
	assert.ErrorIs(t, err, errBackend)
	status, ok := v.Mine()
	require.True(t, ok)
	assert.Equal(t, session.StatusConfirmed, status)
}

func TestRSVPRollbackRemovesNewRow(t *testing.T) {
	b := newBackend()
	b.me = b.addProfile("Ana")
	b.failRSVP = true
	v, _, _ := openAttendance(t, b, true)

	err := v.RSVP(context.Background(), session.StatusConfirmed)
	require.Error(t, err)
	_, ok := v.Mine()
	assert.False(t, ok)
	assert.Empty(t, v.Items())
}

func TestRSVPRejectsBadInput(t *testing.T) {
	b := newBackend()
	b.me = b.addProfile("Ana")

	v, _, _ := openAttendance(t, b, true)
	err := v.RSVP(context.Background(), session.AttendanceStatus("maybe"))
	var vf *livestate.ValidationFailure
	assert.True(t, errors.As(err, &vf))

	anon, _, _ := openAttendance(t, b, false)
	err = anon.RSVP(context.Background(), session.StatusConfirmed)
	var wf *livestate.WriteFailure
	require.True(t, errors.As(err, &wf))
	assert.ErrorIs(t, err, ErrSignedOut)
	assert.Zero(t, b.rsvpWrites)
}

func TestAttendanceIgnoresOlderConfirmation(t *testing.T) {
	b := newBackend()
	b.me = b.addProfile("Ana")
	other := b.addProfile("Bo")
	v, f, sessionID := openAttendance(t, b, true)

	now := time.Now()
	newer := session.Attendance{ID: uuid.New(), SessionID: sessionID, UserID: other, Status: session.StatusDeclined, CreatedAt: now, UpdatedAt: now}
	f.publish(rowEvent("session_attendees", feed.EventUpdate, newer))
	require.Eventually(t, func() bool { _, ok := v.Get(other); return ok }, time.Second, 5*time.Millisecond)

	stale := newer
	stale.Status = session.StatusConfirmed
	stale.UpdatedAt = now.Add(-time.Minute)
	v.Merge(stale)

	got, _ := v.Get(other)
	assert.Equal(t, session.StatusDeclined, got.Status)
	assert.Equal(t, "Bo", got.Name)
}

func TestAttendanceUpdateAppliesWhenProfileMissing(t *testing.T) {
	b := newBackend()
	b.me = b.addProfile("Ana")
	v, f, sessionID := openAttendance(t, b, true)

	// Bo's profile is gone, but the row already carries the joined name.
	bo := uuid.New()
	now := time.Now()
	row := session.Attendance{ID: uuid.New(), SessionID: sessionID, UserID: bo, Status: session.StatusConfirmed, CreatedAt: now, UpdatedAt: now, Name: "Bo"}
	f.publish(rowEvent("session_attendees", feed.EventInsert, row))
	require.Eventually(t, func() bool { _, ok := v.Get(bo); return ok }, time.Second, 5*time.Millisecond)

	row.Name = ""
	row.Status = session.StatusDeclined
	row.UpdatedAt = now.Add(time.Minute)
	f.publish(rowEvent("session_attendees", feed.EventUpdate, row))

	require.Eventually(t, func() bool {
		got, _ := v.Get(bo)
		return got.Status == session.StatusDeclined
	}, time.Second, 5*time.Millisecond)
	got, _ := v.Get(bo)
	assert.Equal(t, "Bo", got.Name)
	assert.Equal(t, livestate.StatusReady, v.Status())
}

func TestAttendanceUnknownProfileDegrades(t *testing.T) {
	b := newBackend()
	b.me = b.addProfile("Ana")
	v, f, sessionID := openAttendance(t, b, true)

	ghost := uuid.New()
	now := time.Now()
	f.publish(rowEvent("session_attendees", feed.EventInsert, session.Attendance{
		ID: uuid.New(), SessionID: sessionID, UserID: ghost, Status: session.StatusConfirmed, CreatedAt: now, UpdatedAt: now,
	}))

	require.Eventually(t, func() bool { return v.Status() == livestate.StatusDegraded }, time.Second, 5*time.Millisecond)
	_, ok := v.Get(ghost)
	assert.False(t, ok)
}

func TestUpcomingScheduleDropsEndedSessions(t *testing.T) {
	b, f := newBackend(), newFakeFeed()
	groupID := uuid.New()
	start := time.Now().Add(time.Hour)
	soon := &session.Session{ID: uuid.New(), GroupID: groupID, Title: "Soon", StartTime: start, EndTime: start.Add(time.Hour)}
	b.sessions = []*session.Session{soon}

	v := NewScheduleView(b, f, groupID, true, Hooks[session.Session]{}, zaptest.NewLogger(t))
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()

	past := time.Now().Add(-3 * time.Hour)
	ended := session.Session{ID: uuid.New(), GroupID: groupID, Title: "Ended", StartTime: past, EndTime: past.Add(time.Hour)}
	later := session.Session{ID: uuid.New(), GroupID: groupID, Title: "Later", StartTime: start.Add(time.Hour), EndTime: start.Add(2 * time.Hour)}
	f.publish(rowEvent("sessions", feed.EventInsert, ended))
	f.publish(rowEvent("sessions", feed.EventInsert, later))
	require.Eventually(t, func() bool { return len(v.Items()) == 2 }, time.Second, 5*time.Millisecond)
	_, ok := v.Get(ended.ID)
	assert.False(t, ok)

	moved := *soon
	moved.StartTime, moved.EndTime = past, past.Add(time.Hour)
	f.publish(rowEvent("sessions", feed.EventUpdate, moved))
	require.Eventually(t, func() bool { _, ok := v.Get(soon.ID); return !ok }, time.Second, 5*time.Millisecond)
	assert.Len(t, v.Items(), 1)
}

func TestFullScheduleKeepsEndedSessions(t *testing.T) {
	b, f := newBackend(), newFakeFeed()
	groupID := uuid.New()
	v := NewScheduleView(b, f, groupID, false, Hooks[session.Session]{}, zaptest.NewLogger(t))
	require.NoError(t, v.Open(context.Background()))
	defer v.Close()

	past := time.Now().Add(-3 * time.Hour)
	ended := session.Session{ID: uuid.New(), GroupID: groupID, Title: "Ended", StartTime: past, EndTime: past.Add(time.Hour)}
	f.publish(rowEvent("sessions", feed.EventInsert, ended))
	require.Eventually(t, func() bool { _, ok := v.Get(ended.ID); return ok }, time.Second, 5*time.Millisecond)
}
