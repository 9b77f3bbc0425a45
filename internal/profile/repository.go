package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const profileColumns = `id, name, email, avatar, academic_level, bio, subject_interests, study_preferences, created_at, updated_at`

// Repository handles profile persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new profile repository with database dependency injected
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*Profile, error) {
	p := &Profile{}
	var prefs []byte
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Avatar,
		&p.AcademicLevel,
		&p.Bio,
		pq.Array(&p.SubjectInterests),
		&prefs,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if p.StudyPreferences, err = decodePreferences(prefs); err != nil {
		return nil, fmt.Errorf("failed to decode study preferences: %w", err)
	}
	if p.SubjectInterests == nil {
		p.SubjectInterests = []string{}
	}
	return p, nil
}

// GetByID retrieves a profile by its user ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetMany retrieves the profiles for ids in one round trip
func (r *Repository) GetMany(ctx context.Context, ids []uuid.UUID) ([]*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ANY($1) ORDER BY name`

	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(strs))
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Update modifies a profile
func (r *Repository) Update(ctx context.Context, id uuid.UUID, req *UpdateProfileRequest) (*Profile, error) {
	var prefs []byte
	if req.StudyPreferences != nil {
		var err error
		if prefs, err = json.Marshal(req.StudyPreferences); err != nil {
			return nil, fmt.Errorf("failed to encode study preferences: %w", err)
		}
	}
	var interests any
	if req.SubjectInterests != nil {
		interests = pq.Array(req.SubjectInterests)
	}

	query := `
		UPDATE profiles
		SET name = COALESCE($2, name),
		    avatar = COALESCE($3, avatar),
		    academic_level = COALESCE($4, academic_level),
		    bio = COALESCE($5, bio),
		    subject_interests = COALESCE($6, subject_interests),
		    study_preferences = COALESCE($7::jsonb, study_preferences),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(r.db.QueryRowContext(ctx, query,
		id, req.Name, req.Avatar, req.AcademicLevel, req.Bio, interests, nullBytes(prefs)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
