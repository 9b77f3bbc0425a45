package group

import (
	"strings"

	"github.com/google/uuid"
)

// CreateGroupRequest represents the request to create a new group
type CreateGroupRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=100"`
	Description string   `json:"description,omitempty"`
	Subject     string   `json:"subject" validate:"required"`
	Capacity    *int     `json:"capacity,omitempty" validate:"omitempty,min=5,max=30"`
	IsPublic    *bool    `json:"is_public,omitempty"`
	SubjectTags []string `json:"subject_tags,omitempty"`
}

// UpdateGroupRequest represents the request to update a group
type UpdateGroupRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string  `json:"description,omitempty"`
	Capacity    *int     `json:"capacity,omitempty" validate:"omitempty,min=5,max=30"`
	SubjectTags []string `json:"subject_tags,omitempty"`
}

// JoinGroupRequest carries the invitation code for private groups
type JoinGroupRequest struct {
	InvitationCode string `json:"invitation_code,omitempty"`
}

// GroupResponse represents the response for a group
type GroupResponse struct {
	ID             uuid.UUID         `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Subject        string            `json:"subject"`
	Capacity       int               `json:"capacity"`
	IsPublic       bool              `json:"is_public"`
	InvitationCode *string           `json:"invitation_code,omitempty"`
	SubjectTags    []string          `json:"subject_tags"`
	MemberCount    *int              `json:"member_count,omitempty"`
	CreatedAt      string            `json:"created_at"`
	Members        []*MemberResponse `json:"members,omitempty"`
}

// MemberResponse represents a member in a group response
type MemberResponse struct {
	ID       uuid.UUID  `json:"id"`
	GroupID  uuid.UUID  `json:"group_id"`
	UserID   uuid.UUID  `json:"user_id"`
	Name     string     `json:"name"`
	Avatar   *string    `json:"avatar,omitempty"`
	Role     MemberRole `json:"role"`
	JoinedAt string     `json:"joined_at"`
}

// ToResponse converts a Group model to a GroupResponse DTO. The invitation
// code is only included when showCode is set.
func (g *Group) ToResponse(showCode bool) *GroupResponse {
	resp := &GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Subject:     g.Subject,
		Capacity:    g.Capacity,
		IsPublic:    g.IsPublic,
		SubjectTags: g.SubjectTags,
		CreatedAt:   g.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if showCode {
		resp.InvitationCode = g.InvitationCode
	}
	return resp
}

// ToResponse converts a GroupMember model to a MemberResponse DTO
func (m *GroupMember) ToResponse() *MemberResponse {
	return &MemberResponse{
		ID:       m.ID,
		GroupID:  m.GroupID,
		UserID:   m.UserID,
		Name:     m.Name,
		Avatar:   m.Avatar,
		Role:     m.Role,
		JoinedAt: m.JoinedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
