package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidName     = errors.New("name must not be blank")
)

const maxBatch = 100

// Service handles profile business logic
type Service struct {
	repo *Repository
}

// NewService creates a new profile service with repository dependency injected
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetByID retrieves a profile by user ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// GetMany retrieves up to 100 profiles; unknown ids are skipped
func (s *Service) GetMany(ctx context.Context, ids []uuid.UUID) ([]*Profile, error) {
	if len(ids) > maxBatch {
		ids = ids[:maxBatch]
	}
	if len(ids) == 0 {
		return []*Profile{}, nil
	}
	return s.repo.GetMany(ctx, ids)
}

// Update edits the caller's own profile
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdateProfileRequest) (*Profile, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		if trimmed == "" {
			return nil, ErrInvalidName
		}
		req.Name = &trimmed
	}

	p, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}
