package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = `id, group_id, host_id, title, description, start_time, end_time, location, created_at`

// Repository handles session and attendance persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new session repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	s := &Session{}
	err := row.Scan(
		&s.ID,
		&s.GroupID,
		&s.HostID,
		&s.Title,
		&s.Description,
		&s.StartTime,
		&s.EndTime,
		&s.Location,
		&s.CreatedAt,
	)
	return s, err
}

// Create inserts a session
func (r *Repository) Create(ctx context.Context, groupID, hostID uuid.UUID, req *CreateSessionRequest) (*Session, error) {
	query := `
		INSERT INTO sessions (group_id, host_id, title, description, start_time, end_time, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + sessionColumns

	s, err := scanSession(r.db.QueryRowContext(ctx, query,
		groupID, hostID, req.Title, req.Description, req.StartTime, req.EndTime, req.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// GetByID retrieves a session
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// ListByGroup returns a group's sessions by start time. A non-zero after
// keeps only sessions that have not ended by then.
func (r *Repository) ListByGroup(ctx context.Context, groupID uuid.UUID, after time.Time) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE group_id = $1`
	args := []any{groupID}
	if !after.IsZero() {
		query += ` AND end_time >= $2`
		args = append(args, after)
	}
	query += ` ORDER BY start_time, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Delete removes a session and, by cascade, its attendance rows
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// UpsertAttendance inserts or updates the (session, user) row in one
// statement; there is never more than one row per pair.
func (r *Repository) UpsertAttendance(ctx context.Context, sessionID, userID uuid.UUID, status AttendanceStatus) (*Attendance, error) {
	query := `
		INSERT INTO session_attendees (session_id, user_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, user_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = now()
		RETURNING id, session_id, user_id, status, created_at, updated_at
	`

	a := &Attendance{}
	err := r.db.QueryRowContext(ctx, query, sessionID, userID, status).Scan(
		&a.ID,
		&a.SessionID,
		&a.UserID,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert attendance: %w", err)
	}
	return a, nil
}

// ListAttendees returns the RSVPs for a session
func (r *Repository) ListAttendees(ctx context.Context, sessionID uuid.UUID) ([]*Attendance, error) {
	query := `
		SELECT sa.id, sa.session_id, sa.user_id, sa.status, sa.created_at, sa.updated_at, COALESCE(p.name, '')
		FROM session_attendees sa
		LEFT JOIN profiles p ON sa.user_id = p.id
		WHERE sa.session_id = $1
		ORDER BY sa.created_at, sa.id
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}
	defer rows.Close()

	attendees := []*Attendance{}
	for rows.Next() {
		a := &Attendance{}
		if err := rows.Scan(&a.ID, &a.SessionID, &a.UserID, &a.Status, &a.CreatedAt, &a.UpdatedAt, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	return attendees, rows.Err()
}

// CountAttendance counts rows for a (session, user) pair
func (r *Repository) CountAttendance(ctx context.Context, sessionID, userID uuid.UUID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM session_attendees WHERE session_id = $1 AND user_id = $2`
	if err := r.db.QueryRowContext(ctx, query, sessionID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attendance: %w", err)
	}
	return n, nil
}
