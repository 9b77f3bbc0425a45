package resource

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/fkhayef/studysync/internal/group"
)

// Common errors
var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrInvalidResource  = errors.New("title, file_url and file_type are required")
	ErrNotAuthorized    = errors.New("only the uploader or a group admin can delete this resource")
)

// Membership checks group roles
type Membership interface {
	Role(ctx context.Context, groupID, userID uuid.UUID) (group.MemberRole, error)
}

// Service handles resource business logic
type Service struct {
	repo    *Repository
	members Membership
}

// NewService creates a new resource service
func NewService(repo *Repository, members Membership) *Service {
	return &Service{repo: repo, members: members}
}

// List returns a group's resources, members only
func (s *Service) List(ctx context.Context, groupID, userID uuid.UUID) ([]*Resource, error) {
	if _, err := s.members.Role(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByGroup(ctx, groupID)
}

// Create registers resource metadata, members only
func (s *Service) Create(ctx context.Context, groupID, userID uuid.UUID, req *CreateResourceRequest) (*Resource, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.FileURL == "" || req.FileType == "" {
		return nil, ErrInvalidResource
	}
	if _, err := s.members.Role(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, groupID, userID, req)
}

// Delete removes a resource row; uploader or group admin only
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if res == nil {
		return ErrResourceNotFound
	}
	if res.UserID != userID {
		role, err := s.members.Role(ctx, res.GroupID, userID)
		if err != nil {
			return err
		}
		if role != group.MemberRoleAdmin {
			return ErrNotAuthorized
		}
	}

	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrResourceNotFound
	}
	return nil
}
