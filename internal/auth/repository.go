package auth

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/fkhayef/studysync/internal/database"
)

// Repository handles account persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new auth repository with database dependency injected
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the account and its default profile in one transaction
func (r *Repository) Create(ctx context.Context, email, passwordHash, name string) (*User, error) {
	user := &User{}
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO users (email, password_hash)
			VALUES ($1, $2)
			RETURNING id, email, password_hash, created_at
		`
		if err := tx.QueryRowContext(ctx, query, email, passwordHash).Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.CreatedAt,
		); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrEmailAlreadyInUse
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		profileQuery := `INSERT INTO profiles (id, name, email) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, profileQuery, user.ID, name, email); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail retrieves a user by their email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`
	return r.scanOne(ctx, query, email)
}

// GetByID retrieves a user by their ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *Repository) scanOne(ctx context.Context, query string, arg any) (*User, error) {
	user := &User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
