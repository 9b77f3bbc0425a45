package group

import (
	"time"

	"github.com/google/uuid"
)

// MemberRole represents the role of a group member
type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

// Capacity bounds for a study group
const (
	DefaultCapacity = 10
	MinCapacity     = 5
	MaxCapacity     = 30
)

// Group represents a study group
type Group struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Subject        string    `json:"subject"`
	Capacity       int       `json:"capacity"`
	IsPublic       bool      `json:"is_public"`
	InvitationCode *string   `json:"invitation_code,omitempty"`
	SubjectTags    []string  `json:"subject_tags"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GroupMember represents a user's membership in a group
type GroupMember struct {
	ID       uuid.UUID  `json:"id"`
	GroupID  uuid.UUID  `json:"group_id"`
	UserID   uuid.UUID  `json:"user_id"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`

	// Populated from JOIN
	Name   string  `json:"name,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}
