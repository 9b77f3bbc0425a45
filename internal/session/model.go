package session

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceStatus is a member's RSVP for a session
type AttendanceStatus string

const (
	StatusConfirmed AttendanceStatus = "confirmed"
	StatusTentative AttendanceStatus = "tentative"
	StatusDeclined  AttendanceStatus = "declined"
)

// Valid reports whether s is one of the known statuses
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusTentative, StatusDeclined:
		return true
	}
	return false
}

// Session is a scheduled study meeting
type Session struct {
	ID          uuid.UUID `json:"id"`
	GroupID     uuid.UUID `json:"group_id"`
	HostID      uuid.UUID `json:"host_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Location    *string   `json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Attendance is one row of session_attendees, unique per (session, user)
type Attendance struct {
	ID        uuid.UUID        `json:"id"`
	SessionID uuid.UUID        `json:"session_id"`
	UserID    uuid.UUID        `json:"user_id"`
	Status    AttendanceStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	// Populated from JOIN
	Name string `json:"name,omitempty"`
}
