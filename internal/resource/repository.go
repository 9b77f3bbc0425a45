package resource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const resourceColumns = `id, group_id, user_id, title, description, file_url, file_type, tags, created_at`

// Repository handles resource persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new resource repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(row scanner) (*Resource, error) {
	res := &Resource{}
	err := row.Scan(
		&res.ID,
		&res.GroupID,
		&res.UserID,
		&res.Title,
		&res.Description,
		&res.FileURL,
		&res.FileType,
		pq.Array(&res.Tags),
		&res.CreatedAt,
	)
	if res.Tags == nil {
		res.Tags = []string{}
	}
	return res, err
}

// Create inserts resource metadata
func (r *Repository) Create(ctx context.Context, groupID, userID uuid.UUID, req *CreateResourceRequest) (*Resource, error) {
	query := `
		INSERT INTO resources (group_id, user_id, title, description, file_url, file_type, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + resourceColumns

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	res, err := scanResource(r.db.QueryRowContext(ctx, query,
		groupID, userID, req.Title, req.Description, req.FileURL, req.FileType, pq.Array(tags)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// GetByID retrieves a resource
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id = $1`

	res, err := scanResource(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return res, nil
}

// ListByGroup returns a group's resources, newest first
func (r *Repository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE group_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	resources := []*Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

// Delete removes a resource row
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete resource: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
