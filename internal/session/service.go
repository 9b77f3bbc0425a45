package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("title is required and end_time must be after start_time")
	ErrInvalidStatus   = errors.New("status must be confirmed, tentative or declined")
	ErrNotHost         = errors.New("only the host can delete this session")
)

// Membership checks and lists group members
type Membership interface {
	RequireMember(ctx context.Context, groupID, userID uuid.UUID) error
	MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
}

// ScheduleNotifier is told about new sessions
type ScheduleNotifier interface {
	NotifySessionScheduled(ctx context.Context, memberIDs []uuid.UUID, title string, start time.Time, sessionID uuid.UUID) error
}

// Service handles session scheduling and attendance
type Service struct {
	repo     *Repository
	members  Membership
	notifier ScheduleNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new session service
func NewService(repo *Repository, members Membership, notifier ScheduleNotifier, logger *zap.Logger) *Service {
	return &Service{repo: repo, members: members, notifier: notifier, logger: logger, now: time.Now}
}

// ValidateCreate checks a schedule request
func ValidateCreate(req *CreateSessionRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.StartTime.IsZero() || !req.EndTime.After(req.StartTime) {
		return ErrInvalidSession
	}
	return nil
}

// Create schedules a session in a group the host belongs to
func (s *Service) Create(ctx context.Context, groupID, hostID uuid.UUID, req *CreateSessionRequest) (*Session, error) {
	if err := ValidateCreate(req); err != nil {
		return nil, err
	}
	if err := s.members.RequireMember(ctx, groupID, hostID); err != nil {
		return nil, err
	}

	session, err := s.repo.Create(ctx, groupID, hostID, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session scheduled", zap.Stringer("session_id", session.ID), zap.Stringer("group_id", groupID))
	s.notifyScheduled(ctx, session)
	return session, nil
}

func (s *Service) notifyScheduled(ctx context.Context, session *Session) {
	if s.notifier == nil {
		return
	}
	ids, err := s.members.MemberIDs(ctx, session.GroupID)
	if err != nil {
		s.logger.Warn("failed to load members for session notification", zap.Error(err))
		return
	}
	recipients := ids[:0]
	for _, id := range ids {
		if id != session.HostID {
			recipients = append(recipients, id)
		}
	}
	_ = s.notifier.NotifySessionScheduled(ctx, recipients, session.Title, session.StartTime, session.ID)
}

// ListByGroup returns a group's sessions, optionally only those not yet over
func (s *Service) ListByGroup(ctx context.Context, groupID, userID uuid.UUID, upcomingOnly bool) ([]*Session, error) {
	if err := s.members.RequireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	var after time.Time
	if upcomingOnly {
		after = s.now()
	}
	return s.repo.ListByGroup(ctx, groupID, after)
}

// GetByID retrieves a session the caller can see
func (s *Service) GetByID(ctx context.Context, id, userID uuid.UUID) (*Session, error) {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if err := s.members.RequireMember(ctx, session.GroupID, userID); err != nil {
		return nil, err
	}
	return session, nil
}

// Delete cancels a session; host only
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.HostID != userID {
		return ErrNotHost
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Attendees lists the RSVPs of a session
func (s *Service) Attendees(ctx context.Context, id, userID uuid.UUID) ([]*Attendance, error) {
	if _, err := s.GetByID(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.repo.ListAttendees(ctx, id)
}

// SetAttendance upserts the caller's RSVP. Re-sending the current status is
// allowed and only bumps updated_at.
func (s *Service) SetAttendance(ctx context.Context, id, userID uuid.UUID, status AttendanceStatus) (*Attendance, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if _, err := s.GetByID(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.repo.UpsertAttendance(ctx, id, userID, status)
}
