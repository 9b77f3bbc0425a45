package group

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fkhayef/studysync/internal/database"
)

const groupColumns = `g.id, g.name, g.description, g.subject, g.capacity, g.is_public, g.invitation_code, g.subject_tags, g.created_at, g.updated_at`

// Repository handles group data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(row scanner) (*Group, error) {
	group := &Group{}
	err := row.Scan(
		&group.ID,
		&group.Name,
		&group.Description,
		&group.Subject,
		&group.Capacity,
		&group.IsPublic,
		&group.InvitationCode,
		pq.Array(&group.SubjectTags),
		&group.CreatedAt,
		&group.UpdatedAt,
	)
	if group.SubjectTags == nil {
		group.SubjectTags = []string{}
	}
	return group, err
}

func scanGroups(rows *sql.Rows) ([]*Group, error) {
	defer rows.Close()
	groups := []*Group{}
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// CreateWithAdmin inserts a group and its creator's admin membership in one
// transaction
func (r *Repository) CreateWithAdmin(ctx context.Context, creatorID uuid.UUID, g *Group) (*Group, error) {
	var created *Group
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO groups AS g (name, description, subject, capacity, is_public, invitation_code, subject_tags)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING ` + groupColumns

		var err error
		created, err = scanGroup(tx.QueryRowContext(ctx, query,
			g.Name, g.Description, g.Subject, g.Capacity, g.IsPublic, g.InvitationCode, pq.Array(g.SubjectTags)))
		if err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}

		memberQuery := `INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, memberQuery, created.ID, creatorID, MemberRoleAdmin); err != nil {
			return fmt.Errorf("failed to add group admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a group by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups g WHERE g.id = $1`

	group, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// SearchPublic lists public groups whose name, description or tags contain term
func (r *Repository) SearchPublic(ctx context.Context, term string, limit, offset int) ([]*Group, int, error) {
	filter := `
		WHERE g.is_public
		  AND ($1 = '' OR g.name ILIKE '%' || $1 || '%'
		       OR g.description ILIKE '%' || $1 || '%'
		       OR EXISTS (SELECT 1 FROM unnest(g.subject_tags) t WHERE t ILIKE '%' || $1 || '%'))
	`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM groups g`+filter, term).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	query := `SELECT ` + groupColumns + ` FROM groups g` + filter + ` ORDER BY g.created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, term, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search groups: %w", err)
	}
	groups, err := scanGroups(rows)
	if err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

// ListByUserID retrieves all groups for a user
func (r *Repository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Group, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM group_members WHERE user_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	query := `
		SELECT ` + groupColumns + `
		FROM groups g
		JOIN group_members gm ON g.id = gm.group_id
		WHERE gm.user_id = $1
		ORDER BY gm.joined_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	groups, err := scanGroups(rows)
	if err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

// Update modifies an existing group
func (r *Repository) Update(ctx context.Context, id uuid.UUID, req *UpdateGroupRequest) (*Group, error) {
	var tags any
	if req.SubjectTags != nil {
		tags = pq.Array(req.SubjectTags)
	}

	query := `
		UPDATE groups AS g
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    capacity = COALESCE($4, capacity),
		    subject_tags = COALESCE($5, subject_tags),
		    updated_at = now()
		WHERE g.id = $1
		RETURNING ` + groupColumns

	group, err := scanGroup(r.db.QueryRowContext(ctx, query, id, req.Name, req.Description, req.Capacity, tags))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	return group, nil
}

// Delete removes a group from the database
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete group: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Join adds userID to the group while holding the group row lock, so
// concurrent joins cannot overshoot capacity. Existing members get
// ErrMemberAlreadyExists even when the group is full.
func (r *Repository) Join(ctx context.Context, groupID, userID uuid.UUID, invitationCode string) (*GroupMember, error) {
	member := &GroupMember{}
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			capacity int
			isPublic bool
			code     sql.NullString
		)
		lockQuery := `SELECT capacity, is_public, invitation_code FROM groups WHERE id = $1 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, lockQuery, groupID).Scan(&capacity, &isPublic, &code); err != nil {
			if err == sql.ErrNoRows {
				return ErrGroupNotFound
			}
			return fmt.Errorf("failed to lock group: %w", err)
		}

		var already bool
		existsQuery := `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`
		if err := tx.QueryRowContext(ctx, existsQuery, groupID, userID).Scan(&already); err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if already {
			return ErrMemberAlreadyExists
		}
		if !isPublic && (!code.Valid || code.String != invitationCode) {
			return ErrInvalidInvitation
		}

		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_members WHERE group_id = $1`, groupID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		if count >= capacity {
			return ErrGroupFull
		}

		query := `
			INSERT INTO group_members (group_id, user_id, role)
			VALUES ($1, $2, $3)
			RETURNING id, group_id, user_id, role, joined_at
		`
		if err := tx.QueryRowContext(ctx, query, groupID, userID, MemberRoleMember).Scan(
			&member.ID,
			&member.GroupID,
			&member.UserID,
			&member.Role,
			&member.JoinedAt,
		); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrMemberAlreadyExists
			}
			return fmt.Errorf("failed to add member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// GetMembers retrieves all members of a group
func (r *Repository) GetMembers(ctx context.Context, groupID uuid.UUID) ([]*GroupMember, error) {
	query := `
		SELECT gm.id, gm.group_id, gm.user_id, gm.role, gm.joined_at, COALESCE(p.name, ''), p.avatar
		FROM group_members gm
		LEFT JOIN profiles p ON gm.user_id = p.id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	members := []*GroupMember{}
	for rows.Next() {
		member := &GroupMember{}
		if err := rows.Scan(
			&member.ID,
			&member.GroupID,
			&member.UserID,
			&member.Role,
			&member.JoinedAt,
			&member.Name,
			&member.Avatar,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

// GetMember retrieves a specific member from a group
func (r *Repository) GetMember(ctx context.Context, groupID, userID uuid.UUID) (*GroupMember, error) {
	query := `
		SELECT gm.id, gm.group_id, gm.user_id, gm.role, gm.joined_at, COALESCE(p.name, ''), p.avatar
		FROM group_members gm
		LEFT JOIN profiles p ON gm.user_id = p.id
		WHERE gm.group_id = $1 AND gm.user_id = $2
	`

	member := &GroupMember{}
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(
		&member.ID,
		&member.GroupID,
		&member.UserID,
		&member.Role,
		&member.JoinedAt,
		&member.Name,
		&member.Avatar,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// MemberIDs lists the user ids in a group, optionally only admins
func (r *Repository) MemberIDs(ctx context.Context, groupID uuid.UUID, adminsOnly bool) ([]uuid.UUID, error) {
	query := `SELECT user_id FROM group_members WHERE group_id = $1`
	if adminsOnly {
		query += ` AND role = 'admin'`
	}

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountMembers returns the live member count
func (r *Repository) CountMembers(ctx context.Context, groupID uuid.UUID) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_members WHERE group_id = $1`, groupID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// RemoveMember removes a user from a group
func (r *Repository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
