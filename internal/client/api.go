package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fkhayef/studysync/internal/group"
	"github.com/fkhayef/studysync/internal/message"
	"github.com/fkhayef/studysync/internal/notification"
	"github.com/fkhayef/studysync/internal/profile"
	"github.com/fkhayef/studysync/internal/resource"
	"github.com/fkhayef/studysync/internal/session"
)

// Groups

// SearchGroups lists public groups matching q
func (c *Client) SearchGroups(ctx context.Context, q string, page, perPage int) ([]*group.GroupResponse, int, error) {
	params := url.Values{}
	if q != "" {
		params.Set("q", q)
	}
	setPage(params, page, perPage)
	var out []*group.GroupResponse
	meta, err := c.apiCall(ctx, http.MethodGet, "/groups"+query(params), nil, &out)
	if err != nil {
		return nil, 0, err
	}
	total := len(out)
	if meta != nil {
		total = meta.Total
	}
	return out, total, nil
}

// MyGroups lists the groups the caller belongs to
func (c *Client) MyGroups(ctx context.Context) ([]*group.GroupResponse, error) {
	var out []*group.GroupResponse
	_, err := c.apiCall(ctx, http.MethodGet, "/groups/mine?per_page=100", nil, &out)
	return out, err
}

// GetGroup fetches a group with its members
func (c *Client) GetGroup(ctx context.Context, id uuid.UUID) (*group.GroupResponse, error) {
	var out group.GroupResponse
	if _, err := c.apiCall(ctx, http.MethodGet, "/groups/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGroup creates a group with the caller as admin
func (c *Client) CreateGroup(ctx context.Context, req *group.CreateGroupRequest) (*group.GroupResponse, error) {
	var out group.GroupResponse
	if _, err := c.apiCall(ctx, http.MethodPost, "/groups", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinGroup adds the caller to a group. code is required for private groups.
func (c *Client) JoinGroup(ctx context.Context, id uuid.UUID, code string) (*group.GroupMember, error) {
	var out group.GroupMember
	if _, err := c.apiCall(ctx, http.MethodPost, "/groups/"+id.String()+"/join", group.JoinGroupRequest{InvitationCode: code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LeaveGroup removes the caller from a group
func (c *Client) LeaveGroup(ctx context.Context, id uuid.UUID) error {
	_, err := c.apiCall(ctx, http.MethodPost, "/groups/"+id.String()+"/leave", nil, nil)
	return err
}

// GroupMembers lists members with their display names
func (c *Client) GroupMembers(ctx context.Context, id uuid.UUID) ([]*group.GroupMember, error) {
	var out []*group.GroupMember
	_, err := c.apiCall(ctx, http.MethodGet, "/groups/"+id.String()+"/members", nil, &out)
	return out, err
}

// MemberCount returns the number of members of a group
func (c *Client) MemberCount(ctx context.Context, id uuid.UUID) (int, error) {
	var out struct {
		MemberCount int `json:"member_count"`
	}
	_, err := c.apiCall(ctx, http.MethodGet, "/groups/"+id.String()+"/member-count", nil, &out)
	return out.MemberCount, err
}

// Messages

// ListMessages returns the latest limit messages in ascending order. A
// limit of 0 uses the server default.
func (c *Client) ListMessages(ctx context.Context, groupID uuid.UUID, limit int) ([]*message.Message, error) {
	path := "/groups/" + groupID.String() + "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []*message.Message
	_, err := c.apiCall(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// SendMessage posts to a group's chat
func (c *Client) SendMessage(ctx context.Context, groupID uuid.UUID, content string) (*message.Message, error) {
	var out message.Message
	if _, err := c.apiCall(ctx, http.MethodPost, "/groups/"+groupID.String()+"/messages", message.SendMessageRequest{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resources

// ListResources returns a group's resources, newest first
func (c *Client) ListResources(ctx context.Context, groupID uuid.UUID) ([]*resource.Resource, error) {
	var out []*resource.Resource
	_, err := c.apiCall(ctx, http.MethodGet, "/groups/"+groupID.String()+"/resources", nil, &out)
	return out, err
}

// CreateResource registers an uploaded file
func (c *Client) CreateResource(ctx context.Context, groupID uuid.UUID, req *resource.CreateResourceRequest) (*resource.Resource, error) {
	var out resource.Resource
	if _, err := c.apiCall(ctx, http.MethodPost, "/groups/"+groupID.String()+"/resources", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteResource removes a resource row
func (c *Client) DeleteResource(ctx context.Context, id uuid.UUID) error {
	_, err := c.apiCall(ctx, http.MethodDelete, "/resources/"+id.String(), nil, nil)
	return err
}

// Sessions

// ListSessions returns a group's sessions by start time
func (c *Client) ListSessions(ctx context.Context, groupID uuid.UUID, upcomingOnly bool) ([]*session.Session, error) {
	path := "/groups/" + groupID.String() + "/sessions"
	if upcomingOnly {
		path += "?upcoming=true"
	}
	var out []*session.Session
	_, err := c.apiCall(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// CreateSession schedules a session
func (c *Client) CreateSession(ctx context.Context, groupID uuid.UUID, req *session.CreateSessionRequest) (*session.Session, error) {
	var out session.Session
	if _, err := c.apiCall(ctx, http.MethodPost, "/groups/"+groupID.String()+"/sessions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches one session
func (c *Client) GetSession(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	var out session.Session
	if _, err := c.apiCall(ctx, http.MethodGet, "/sessions/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession cancels a session (host only)
func (c *Client) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := c.apiCall(ctx, http.MethodDelete, "/sessions/"+id.String(), nil, nil)
	return err
}

// Attendees lists RSVPs for a session
func (c *Client) Attendees(ctx context.Context, sessionID uuid.UUID) ([]*session.Attendance, error) {
	var out []*session.Attendance
	_, err := c.apiCall(ctx, http.MethodGet, "/sessions/"+sessionID.String()+"/attendees", nil, &out)
	return out, err
}

// SetAttendance upserts the caller's RSVP
func (c *Client) SetAttendance(ctx context.Context, sessionID uuid.UUID, status session.AttendanceStatus) (*session.Attendance, error) {
	var out session.Attendance
	if _, err := c.apiCall(ctx, http.MethodPut, "/sessions/"+sessionID.String()+"/attendance", session.AttendanceRequest{Status: status}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profiles

// GetProfile fetches one profile
func (c *Client) GetProfile(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	var out profile.Profile
	if _, err := c.apiCall(ctx, http.MethodGet, "/profiles/"+id.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProfiles fetches several profiles in one call
func (c *Client) GetProfiles(ctx context.Context, ids []uuid.UUID) ([]*profile.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	var out []*profile.Profile
	_, err := c.apiCall(ctx, http.MethodGet, "/profiles?ids="+strings.Join(parts, ","), nil, &out)
	return out, err
}

// MyProfile fetches the caller's profile
func (c *Client) MyProfile(ctx context.Context) (*profile.Profile, error) {
	var out profile.Profile
	if _, err := c.apiCall(ctx, http.MethodGet, "/profiles/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile patches the caller's profile
func (c *Client) UpdateProfile(ctx context.Context, req *profile.UpdateProfileRequest) (*profile.Profile, error) {
	var out profile.Profile
	if _, err := c.apiCall(ctx, http.MethodPut, "/profiles/me", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Notifications

// Notifications lists the caller's notifications, newest first
func (c *Client) Notifications(ctx context.Context, unreadOnly bool, page, perPage int) ([]*notification.Notification, error) {
	params := url.Values{}
	if unreadOnly {
		params.Set("unread_only", "true")
	}
	setPage(params, page, perPage)
	var out []*notification.Notification
	_, err := c.apiCall(ctx, http.MethodGet, "/notifications"+query(params), nil, &out)
	return out, err
}

// UnreadCount returns the number of unread notifications
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unread_count"`
	}
	_, err := c.apiCall(ctx, http.MethodGet, "/notifications/unread-count", nil, &out)
	return out.UnreadCount, err
}

// MarkRead marks one notification as read
func (c *Client) MarkRead(ctx context.Context, id uuid.UUID) error {
	_, err := c.apiCall(ctx, http.MethodPost, fmt.Sprintf("/notifications/%s/read", id), nil, nil)
	return err
}

// MarkAllRead marks every notification as read
func (c *Client) MarkAllRead(ctx context.Context) error {
	_, err := c.apiCall(ctx, http.MethodPost, "/notifications/read-all", nil, nil)
	return err
}

func setPage(params url.Values, page, perPage int) {
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		params.Set("per_page", strconv.Itoa(perPage))
	}
}

func query(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}
