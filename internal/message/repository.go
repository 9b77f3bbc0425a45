package message

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Repository handles message persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new message repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a message
func (r *Repository) Create(ctx context.Context, groupID, userID uuid.UUID, content string) (*Message, error) {
	query := `
		INSERT INTO messages (group_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, group_id, user_id, content, created_at
	`

	m := &Message{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID, content).Scan(
		&m.ID,
		&m.GroupID,
		&m.UserID,
		&m.Content,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return m, nil
}

// ListByGroup returns the most recent limit messages of a group in ascending
// order. limit <= 0 returns all of them.
func (r *Repository) ListByGroup(ctx context.Context, groupID uuid.UUID, limit int) ([]*Message, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		query := `
			SELECT id, group_id, user_id, content, created_at FROM (
				SELECT id, group_id, user_id, content, created_at
				FROM messages
				WHERE group_id = $1
				ORDER BY created_at DESC, id DESC
				LIMIT $2
			) recent
			ORDER BY created_at, id
		`
		rows, err = r.db.QueryContext(ctx, query, groupID, limit)
	} else {
		query := `
			SELECT id, group_id, user_id, content, created_at
			FROM messages
			WHERE group_id = $1
			ORDER BY created_at, id
		`
		rows, err = r.db.QueryContext(ctx, query, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
