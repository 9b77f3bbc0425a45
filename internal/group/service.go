package group

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Common errors
var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrMemberAlreadyExists = errors.New("user is already a member of this group")
	ErrNotAuthorized       = errors.New("not authorized to perform this action")
	ErrNotMember           = errors.New("not a member of this group")
	ErrGroupFull           = errors.New("group is full")
	ErrInvalidInvitation   = errors.New("invalid invitation code")
	ErrInvalidGroup        = errors.New("name and subject are required and capacity must be between 5 and 30")
)

// JoinNotifier is told about new members
type JoinNotifier interface {
	NotifyMemberJoined(ctx context.Context, adminIDs []uuid.UUID, memberName, groupName string, groupID uuid.UUID) error
}

// Service handles group business logic
type Service struct {
	repo     *Repository
	counts   *CountCache
	notifier JoinNotifier
	logger   *zap.Logger
}

// NewService creates a new group service
func NewService(repo *Repository, counts *CountCache, notifier JoinNotifier, logger *zap.Logger) *Service {
	return &Service{repo: repo, counts: counts, notifier: notifier, logger: logger}
}

// Create creates a new group and adds the creator as admin
func (s *Service) Create(ctx context.Context, creatorID uuid.UUID, req *CreateGroupRequest) (*Group, error) {
	g, err := newGroup(req)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateWithAdmin(ctx, creatorID, g)
}

func newGroup(req *CreateGroupRequest) (*Group, error) {
	g := &Group{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Subject:     strings.TrimSpace(req.Subject),
		Capacity:    DefaultCapacity,
		IsPublic:    true,
		SubjectTags: cleanTags(req.SubjectTags),
	}
	if req.Capacity != nil {
		g.Capacity = *req.Capacity
	}
	if req.IsPublic != nil {
		g.IsPublic = *req.IsPublic
	}
	if g.Name == "" || g.Subject == "" || g.Capacity < MinCapacity || g.Capacity > MaxCapacity {
		return nil, ErrInvalidGroup
	}
	if !g.IsPublic {
		code := newInvitationCode()
		g.InvitationCode = &code
	}
	return g, nil
}

const invitationAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newInvitationCode() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = invitationAlphabet[int(b)%len(invitationAlphabet)]
	}
	return string(buf)
}

// GetByID retrieves a group by its ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Group, error) {
	group, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// GetByIDWithMembers retrieves a group with all its members
func (s *Service) GetByIDWithMembers(ctx context.Context, id uuid.UUID) (*Group, []*GroupMember, error) {
	group, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	members, err := s.repo.GetMembers(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	return group, members, nil
}

// Search lists public groups matching term
func (s *Service) Search(ctx context.Context, term string, page, perPage int) ([]*Group, int, error) {
	page, perPage = clampPage(page, perPage)
	return s.repo.SearchPublic(ctx, strings.TrimSpace(term), perPage, (page-1)*perPage)
}

// ListByUserID retrieves all groups for a user
func (s *Service) ListByUserID(ctx context.Context, userID uuid.UUID, page, perPage int) ([]*Group, int, error) {
	page, perPage = clampPage(page, perPage)
	return s.repo.ListByUserID(ctx, userID, perPage, (page-1)*perPage)
}

func clampPage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

// Update modifies a group; admins only
func (s *Service) Update(ctx context.Context, id, userID uuid.UUID, req *UpdateGroupRequest) (*Group, error) {
	if err := s.RequireAdmin(ctx, id, userID); err != nil {
		return nil, err
	}
	if req.Capacity != nil && (*req.Capacity < MinCapacity || *req.Capacity > MaxCapacity) {
		return nil, ErrInvalidGroup
	}
	if req.SubjectTags != nil {
		req.SubjectTags = cleanTags(req.SubjectTags)
	}

	group, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// Delete removes a group; admins only
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.RequireAdmin(ctx, id, userID); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGroupNotFound
	}
	s.counts.Invalidate(ctx, id)
	return nil
}

// Join adds userID to a group, enforcing capacity and invitation codes
func (s *Service) Join(ctx context.Context, groupID, userID uuid.UUID, invitationCode string) (*GroupMember, error) {
	member, err := s.repo.Join(ctx, groupID, userID, strings.TrimSpace(invitationCode))
	if err != nil {
		return nil, err
	}
	s.counts.Invalidate(ctx, groupID)
	s.logger.Info("member joined group", zap.Stringer("group_id", groupID), zap.Stringer("user_id", userID))

	s.notifyJoin(ctx, groupID, userID)
	return member, nil
}

func (s *Service) notifyJoin(ctx context.Context, groupID, userID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	group, err := s.repo.GetByID(ctx, groupID)
	if err == nil && group == nil {
		err = ErrGroupNotFound
	}
	if err != nil {
		s.logger.Warn("failed to load group for join notification", zap.Stringer("group_id", groupID), zap.Error(err))
		return
	}
	admins, err := s.repo.MemberIDs(ctx, groupID, true)
	if err != nil {
		s.logger.Warn("failed to load group admins", zap.Error(err))
		return
	}
	name := "A new member"
	if m, err := s.repo.GetMember(ctx, groupID, userID); err == nil && m != nil && m.Name != "" {
		name = m.Name
	}
	if err := s.notifier.NotifyMemberJoined(ctx, admins, name, group.Name, groupID); err != nil {
		s.logger.Warn("failed to notify admins of new member", zap.Stringer("group_id", groupID), zap.Error(err))
	}
}

// Leave removes the caller from a group
func (s *Service) Leave(ctx context.Context, groupID, userID uuid.UUID) error {
	ok, err := s.repo.RemoveMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	s.counts.Invalidate(ctx, groupID)
	return nil
}

// GetMembers retrieves all members of a group
func (s *Service) GetMembers(ctx context.Context, groupID uuid.UUID) ([]*GroupMember, error) {
	if _, err := s.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.repo.GetMembers(ctx, groupID)
}

// MemberCount returns the derived member count
func (s *Service) MemberCount(ctx context.Context, groupID uuid.UUID) (int, error) {
	return s.counts.Get(ctx, groupID, func(ctx context.Context) (int, error) {
		return s.repo.CountMembers(ctx, groupID)
	})
}

// MemberIDs lists the members of a group
func (s *Service) MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	return s.repo.MemberIDs(ctx, groupID, false)
}

// Role returns the caller's role, or ErrNotMember
func (s *Service) Role(ctx context.Context, groupID, userID uuid.UUID) (MemberRole, error) {
	member, err := s.repo.GetMember(ctx, groupID, userID)
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", ErrNotMember
	}
	return member.Role, nil
}

// RequireMember fails with ErrNotMember unless userID belongs to the group
func (s *Service) RequireMember(ctx context.Context, groupID, userID uuid.UUID) error {
	_, err := s.Role(ctx, groupID, userID)
	return err
}

// RequireAdmin fails unless userID administers the group
func (s *Service) RequireAdmin(ctx context.Context, groupID, userID uuid.UUID) error {
	role, err := s.Role(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if role != MemberRoleAdmin {
		return ErrNotAuthorized
	}
	return nil
}
