package message

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrEmptyMessage   = errors.New("message content must not be blank")
	ErrMessageTooLong = errors.New("message content exceeds 4000 characters")
)

// MaxContentLength is counted in characters, not bytes
const MaxContentLength = 4000

// Membership checks group membership
type Membership interface {
	RequireMember(ctx context.Context, groupID, userID uuid.UUID) error
}

// Service handles chat business logic
type Service struct {
	repo    *Repository
	members Membership
}

// NewService creates a new message service
func NewService(repo *Repository, members Membership) *Service {
	return &Service{repo: repo, members: members}
}

// List returns a group's messages, members only
func (s *Service) List(ctx context.Context, groupID, userID uuid.UUID, limit int) ([]*Message, error) {
	if err := s.members.RequireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByGroup(ctx, groupID, limit)
}

// Send posts a message, members only
func (s *Service) Send(ctx context.Context, groupID, userID uuid.UUID, content string) (*Message, error) {
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	if err := s.members.RequireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, groupID, userID, content)
}

// ValidateContent checks a message body
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrMessageTooLong
	}
	return nil
}
