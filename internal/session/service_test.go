package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/fkhayef/studysync/internal/group"
)

type nobody struct{}

func (nobody) RequireMember(context.Context, uuid.UUID, uuid.UUID) error { return group.ErrNotMember }
func (nobody) MemberIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) { return nil, nil }

func TestAttendanceStatusValid(t *testing.T) {
	assert.True(t, StatusConfirmed.Valid())
	assert.True(t, StatusTentative.Valid())
	assert.True(t, StatusDeclined.Valid())
	assert.False(t, AttendanceStatus("maybe").Valid())
	assert.False(t, AttendanceStatus("").Valid())
}

func TestValidateCreate(t *testing.T) {
	start := time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC)

	req := &CreateSessionRequest{Title: "  Midterm prep ", StartTime: start, EndTime: start.Add(time.Hour)}
	assert.NoError(t, ValidateCreate(req))
	assert.Equal(t, "Midterm prep", req.Title)

	assert.ErrorIs(t, ValidateCreate(&CreateSessionRequest{Title: "x", StartTime: start, EndTime: start}), ErrInvalidSession)
	assert.ErrorIs(t, ValidateCreate(&CreateSessionRequest{Title: "x", StartTime: start, EndTime: start.Add(-time.Minute)}), ErrInvalidSession)
	assert.ErrorIs(t, ValidateCreate(&CreateSessionRequest{Title: " ", StartTime: start, EndTime: start.Add(time.Hour)}), ErrInvalidSession)
}

func TestCreateRequiresMembership(t *testing.T) {
	svc := NewService(nil, nobody{}, nil, zaptest.NewLogger(t))
	start := time.Now().Add(time.Hour)

	_, err := svc.Create(context.Background(), uuid.New(), uuid.New(),
		&CreateSessionRequest{Title: "Review", StartTime: start, EndTime: start.Add(time.Hour)})
	assert.ErrorIs(t, err, group.ErrNotMember)
}

func TestSetAttendanceRejectsUnknownStatus(t *testing.T) {
	svc := NewService(nil, nobody{}, nil, zaptest.NewLogger(t))
	_, err := svc.SetAttendance(context.Background(), uuid.New(), uuid.New(), "maybe")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
