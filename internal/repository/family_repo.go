package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"familytasks/internal/database"
	"familytasks/internal/models"
)

// FamilyRepository handles database operations for family groups and memberships
type FamilyRepository struct {
	db *database.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// CreateGroup creates a new family group and adds the creator as a member
// in one transaction
func (r *FamilyRepository) CreateGroup(ctx context.Context, name, creatorUserID string) (*models.FamilyGroup, error) {
	group := &models.FamilyGroup{
		ID:        newID(),
		Name:      name,
		CreatedAt: now(),
	}

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := "INSERT INTO family_groups (id, name, created_by, created_at) VALUES (?, ?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, group.ID, group.Name, creatorUserID, group.CreatedAt); err != nil {
			return fmt.Errorf("failed to create family group: %w", err)
		}

		query = "INSERT INTO user_family_groups (user_id, family_group_id, joined_at) VALUES (?, ?, ?)"
		if _, err := tx.ExecContext(ctx, query, creatorUserID, group.ID, group.CreatedAt); err != nil {
			return fmt.Errorf("failed to add family member: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return group, nil
}

// GetGroupByID retrieves a family group by ID
func (r *FamilyRepository) GetGroupByID(ctx context.Context, groupID string) (*models.FamilyGroup, error) {
	query := "SELECT id, name, created_at FROM family_groups WHERE id = ?"
	group := &models.FamilyGroup{}
	err := r.db.QueryRowContext(ctx, query, groupID).Scan(&group.ID, &group.Name, &group.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family group: %w", err)
	}

	return group, nil
}

// ListUserGroups retrieves all family groups a user belongs to
func (r *FamilyRepository) ListUserGroups(ctx context.Context, userID string) ([]models.FamilyGroup, error) {
	query := `
		SELECT g.id, g.name, g.created_at
		FROM family_groups g
		INNER JOIN user_family_groups m ON g.id = m.family_group_id
		WHERE m.user_id = ?
		ORDER BY g.created_at ASC, g.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family groups: %w", err)
	}
	defer rows.Close()

	var groups []models.FamilyGroup
	for rows.Next() {
		var group models.FamilyGroup
		if err := rows.Scan(&group.ID, &group.Name, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family group: %w", err)
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

// AddMember adds a user to a family group. Adding an existing member is a
// no-op; the return value reports whether a row was created.
func (r *FamilyRepository) AddMember(ctx context.Context, groupID, userID string) (bool, error) {
	return addMember(ctx, r.db, groupID, userID)
}

func addMember(ctx context.Context, db database.DBTX, groupID, userID string) (bool, error) {
	query := db.GetDialect().InsertIgnore("INSERT INTO user_family_groups (user_id, family_group_id, joined_at) VALUES (?, ?, ?)")
	result, err := db.ExecContext(ctx, query, userID, groupID, now())
	if err != nil {
		return false, fmt.Errorf("failed to add family member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// RemoveMember removes a user from a family group and reports whether a
// membership existed
func (r *FamilyRepository) RemoveMember(ctx context.Context, groupID, userID string) (bool, error) {
	query := "DELETE FROM user_family_groups WHERE user_id = ? AND family_group_id = ?"
	result, err := r.db.ExecContext(ctx, query, userID, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to remove family member: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// IsMember checks if a user is a member of a family group
func (r *FamilyRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	return isMember(ctx, r.db, groupID, userID)
}

func isMember(ctx context.Context, db database.DBTX, groupID, userID string) (bool, error) {
	query := "SELECT COUNT(*) FROM user_family_groups WHERE user_id = ? AND family_group_id = ?"
	var count int
	if err := db.QueryRowContext(ctx, query, userID, groupID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check family membership: %w", err)
	}
	return count > 0, nil
}

// ListMembers retrieves all members of a family group with their profiles.
// Members without a stored profile are returned with only their ID set.
func (r *FamilyRepository) ListMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	query := `
		SELECT m.user_id, m.family_group_id, m.joined_at,
		       COALESCE(p.email, ''), COALESCE(p.full_name, '')
		FROM user_family_groups m
		LEFT JOIN profiles p ON p.id = m.user_id
		WHERE m.family_group_id = ?
		ORDER BY m.joined_at ASC, m.user_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family members: %w", err)
	}
	defer rows.Close()

	var members []models.GroupMember
	for rows.Next() {
		var m models.GroupMember
		if err := rows.Scan(
			&m.Membership.UserID, &m.Membership.GroupID, &m.Membership.JoinedAt,
			&m.User.Email, &m.User.FullName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		m.User.ID = m.Membership.UserID
		members = append(members, m)
	}

	return members, rows.Err()
}

// CountMembers returns the number of members of a family group
func (r *FamilyRepository) CountMembers(ctx context.Context, groupID string) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM user_family_groups WHERE family_group_id = ?"
	if err := r.db.QueryRowContext(ctx, query, groupID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count family members: %w", err)
	}
	return count, nil
}
