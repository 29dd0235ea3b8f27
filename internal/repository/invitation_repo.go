package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"familytasks/internal/database"
	"familytasks/internal/models"
)

// InvitationRepository handles database operations for family group invitations
type InvitationRepository struct {
	db *database.DB
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

const invitationColumns = `
	i.id, i.family_group_id, i.inviter_id, i.invitee_email, i.status, i.created_at,
	COALESCE(g.name, ''), COALESCE(p.full_name, ''), COALESCE(p.email, '')
`

const invitationFrom = `
	FROM family_group_invitations i
	LEFT JOIN family_groups g ON g.id = i.family_group_id
	LEFT JOIN profiles p ON p.id = i.inviter_id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*models.Invitation, error) {
	var inv models.Invitation
	var status string
	if err := row.Scan(
		&inv.ID, &inv.GroupID, &inv.InviterID, &inv.InviteeEmail, &status, &inv.CreatedAt,
		&inv.GroupName, &inv.InviterName, &inv.InviterMail,
	); err != nil {
		return nil, err
	}
	inv.Status = models.InvitationStatus(status)
	return &inv, nil
}

// CreateInvitation stores inv as a pending invitation and fills in its ID.
// The inviter must be a member of the group and no pending invitation for
// the same email and group may exist.
func (r *InvitationRepository) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	inv.ID = newID()
	inv.Status = models.InvitationPending
	inv.CreatedAt = orNow(inv.CreatedAt)
	groupID, inviterID, inviteeEmail := inv.GroupID, inv.InviterID, inv.InviteeEmail

	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		var groupName string
		err := tx.QueryRowContext(ctx, "SELECT name FROM family_groups WHERE id = ?", groupID).Scan(&groupName)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get family group: %w", err)
		}
		inv.GroupName = groupName

		member, err := isMember(ctx, tx, groupID, inviterID)
		if err != nil {
			return err
		}
		if !member {
			return ErrPolicyDenied
		}

		var pending int
		query := "SELECT COUNT(*) FROM family_group_invitations WHERE family_group_id = ? AND invitee_email = ? AND status = 'pending'"
		if err := tx.QueryRowContext(ctx, query, groupID, inviteeEmail).Scan(&pending); err != nil {
			return fmt.Errorf("failed to check pending invitations: %w", err)
		}
		if pending > 0 {
			return ErrDuplicatePending
		}

		query = `INSERT INTO family_group_invitations (id, family_group_id, inviter_id, invitee_email, status, created_at)
			VALUES (?, ?, ?, ?, 'pending', ?)`
		if _, err := tx.ExecContext(ctx, query, inv.ID, groupID, inviterID, inviteeEmail, inv.CreatedAt); err != nil {
			// A concurrent invite won the pending-invitation unique index.
			if tx.GetDialect().IsUniqueViolation(err) {
				return ErrDuplicatePending
			}
			return fmt.Errorf("failed to create invitation: %w", err)
		}
		return nil
	})
}

// GetInvitation retrieves an invitation by ID
func (r *InvitationRepository) GetInvitation(ctx context.Context, id string) (*models.Invitation, error) {
	return getInvitation(ctx, r.db, id)
}

func getInvitation(ctx context.Context, db database.DBTX, id string) (*models.Invitation, error) {
	query := "SELECT " + invitationColumns + invitationFrom + " WHERE i.id = ?"
	inv, err := scanInvitation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// AcceptInvitation marks a pending invitation accepted and adds userID to
// its group. Both writes commit together or not at all. The acting user's
// profile email must match the invitee email.
func (r *InvitationRepository) AcceptInvitation(ctx context.Context, invitationID, userID string) (*models.Invitation, error) {
	var accepted *models.Invitation

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		inv, err := getInvitation(ctx, tx, invitationID)
		if err != nil {
			return err
		}
		if inv == nil {
			return ErrNotFound
		}

		var email string
		err = tx.QueryRowContext(ctx, "SELECT email FROM profiles WHERE id = ?", userID).Scan(&email)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to get profile: %w", err)
		}
		if email == "" || email != inv.InviteeEmail {
			return ErrPolicyDenied
		}

		ok, err := transition(ctx, tx, invitationID, models.InvitationAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotPending
		}

		if _, err := addMember(ctx, tx, inv.GroupID, userID); err != nil {
			return err
		}

		inv.Status = models.InvitationAccepted
		accepted = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	return accepted, nil
}

// RejectInvitation marks a pending invitation rejected. Only the invitee or
// the inviter may settle it this way.
func (r *InvitationRepository) RejectInvitation(ctx context.Context, invitationID, userID string) (*models.Invitation, error) {
	var rejected *models.Invitation

	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		inv, err := getInvitation(ctx, tx, invitationID)
		if err != nil {
			return err
		}
		if inv == nil {
			return ErrNotFound
		}

		if inv.InviterID != userID {
			var email string
			err = tx.QueryRowContext(ctx, "SELECT email FROM profiles WHERE id = ?", userID).Scan(&email)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to get profile: %w", err)
			}
			if email == "" || email != inv.InviteeEmail {
				return ErrPolicyDenied
			}
		}

		ok, err := transition(ctx, tx, invitationID, models.InvitationRejected)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotPending
		}

		inv.Status = models.InvitationRejected
		rejected = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rejected, nil
}

// transition moves an invitation out of pending. It reports false when the
// invitation was no longer pending, which is how concurrent settlements lose.
func transition(ctx context.Context, db database.DBTX, invitationID string, to models.InvitationStatus) (bool, error) {
	query := "UPDATE family_group_invitations SET status = ? WHERE id = ? AND status = 'pending'"
	result, err := db.ExecContext(ctx, query, string(to), invitationID)
	if err != nil {
		return false, fmt.Errorf("failed to update invitation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// ListPendingForEmail retrieves pending invitations addressed to email
func (r *InvitationRepository) ListPendingForEmail(ctx context.Context, email string) ([]models.Invitation, error) {
	query := "SELECT " + invitationColumns + invitationFrom +
		" WHERE i.invitee_email = ? AND i.status = 'pending' ORDER BY i.created_at DESC, i.id DESC"
	return r.list(ctx, query, email)
}

// ListSentBy retrieves every invitation sent by a user, newest first
func (r *InvitationRepository) ListSentBy(ctx context.Context, inviterID string) ([]models.Invitation, error) {
	query := "SELECT " + invitationColumns + invitationFrom +
		" WHERE i.inviter_id = ? ORDER BY i.created_at DESC, i.id DESC"
	return r.list(ctx, query, inviterID)
}

func (r *InvitationRepository) list(ctx context.Context, query string, args ...any) ([]models.Invitation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invitations: %w", err)
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, *inv)
	}

	return invitations, rows.Err()
}
