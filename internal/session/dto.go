package session

import "time"

// CreateSessionRequest represents the request to schedule a session
type CreateSessionRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description *string   `json:"description,omitempty"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	Location    *string   `json:"location,omitempty"`
}

// AttendanceRequest sets the caller's RSVP
type AttendanceRequest struct {
	Status AttendanceStatus `json:"status" validate:"required,oneof=confirmed tentative declined"`
}
