package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Common errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotRecipient         = errors.New("not the recipient of this notification")
)

// Service handles notification business logic
type Service struct {
	repo   *Repository
	logger *zap.Logger
}

// NewService creates a new notification service
func NewService(repo *Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ListByRecipientID retrieves notifications for a user
func (s *Service) ListByRecipientID(ctx context.Context, recipientID uuid.UUID, page, perPage int, unreadOnly bool) ([]*Notification, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	return s.repo.ListByRecipientID(ctx, recipientID, perPage, offset, unreadOnly)
}

// MarkAsRead marks a notification as read
func (s *Service) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return ErrNotificationNotFound
	}
	if n.RecipientID != userID {
		return ErrNotRecipient
	}

	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read for a user
func (s *Service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// GetUnreadCount returns the count of unread notifications
func (s *Service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

// Helper methods for creating specific notification types.
// Notifications are a side effect of the write that triggers them; failures
// are logged and returned but callers treat them as non-fatal.

// NotifyMemberJoined tells the group's admins that someone joined
func (s *Service) NotifyMemberJoined(ctx context.Context, adminIDs []uuid.UUID, memberName, groupName string, groupID uuid.UUID) error {
	message := memberName + " joined " + groupName
	return s.notify(ctx, adminIDs, message, EntityGroup, groupID)
}

// NotifySessionScheduled tells group members about a new session
func (s *Service) NotifySessionScheduled(ctx context.Context, memberIDs []uuid.UUID, title string, start time.Time, sessionID uuid.UUID) error {
	message := fmt.Sprintf("New study session %q on %s", title, start.UTC().Format("Mon Jan 2 15:04 MST"))
	return s.notify(ctx, memberIDs, message, EntitySession, sessionID)
}

func (s *Service) notify(ctx context.Context, recipients []uuid.UUID, message string, entityType EntityType, entityID uuid.UUID) error {
	n, err := s.repo.CreateMany(ctx, recipients, message, entityType, entityID)
	if err != nil {
		s.logger.Warn("notification fan-out failed",
			zap.String("entity_type", string(entityType)),
			zap.Stringer("entity_id", entityID),
			zap.Error(err))
		return err
	}
	s.logger.Debug("notifications created", zap.Int("count", n), zap.String("entity_type", string(entityType)))
	return nil
}
