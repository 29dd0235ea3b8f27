package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"familytasks/internal/models"
	"familytasks/internal/realtime"
	"familytasks/internal/validation"
)

// Mailer delivers notification emails
type Mailer interface {
	SendGroupInvitation(ctx context.Context, inv *models.Invitation, inviter *models.User) error
	SendDueDigest(ctx context.Context, user *models.User, tasks []models.Task, day time.Time) error
}

// InvitationService runs the invitation lifecycle: pending invitations are
// accepted (creating a membership) or rejected, exactly once
type InvitationService struct {
	invitations InvitationStore
	profiles    ProfileStore
	mailer      Mailer
	hub         realtime.Hub
	logger      *zap.Logger
}

// NewInvitationService creates a new invitation service. mailer may be nil.
func NewInvitationService(invitations InvitationStore, profiles ProfileStore, mailer Mailer, hub realtime.Hub, logger *zap.Logger) *InvitationService {
	return &InvitationService{
		invitations: invitations,
		profiles:    profiles,
		mailer:      mailer,
		hub:         hub,
		logger:      orNop(logger).Named("invitations"),
	}
}

// Invite creates a pending invitation from inviterID to email. The inviter
// must belong to the group. The invitation email is best effort: a failed
// send is logged and the committed invitation is still returned.
func (s *InvitationService) Invite(ctx context.Context, groupID, inviterID, email string) (*models.Invitation, error) {
	if err := validation.RequireID("group_id", groupID); err != nil {
		return nil, err
	}
	if err := validation.RequireID("inviter_id", inviterID); err != nil {
		return nil, err
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	inv := &models.Invitation{
		GroupID:      groupID,
		InviterID:    inviterID,
		InviteeEmail: validation.NormalizeEmail(email),
	}
	if err := s.invitations.CreateInvitation(ctx, inv); err != nil {
		return nil, classify("create invitation", err, ErrGroupNotFound)
	}

	s.logger.Info("Invitation created",
		zap.String("invitation_id", inv.ID),
		zap.String("group_id", groupID),
		zap.String("inviter_id", inviterID),
	)
	notify(ctx, s.hub, s.logger, realtime.Change{Entity: realtime.EntityInvitations, GroupID: groupID, UserID: inviterID})
	s.sendInvitationEmail(ctx, inv)

	return inv, nil
}

func (s *InvitationService) sendInvitationEmail(ctx context.Context, inv *models.Invitation) {
	if s.mailer == nil {
		return
	}
	inviter, err := s.profiles.GetUserByID(ctx, inv.InviterID)
	if err != nil {
		s.logger.Warn("Failed to load inviter profile", zap.String("invitation_id", inv.ID), zap.Error(err))
	}
	if inviter == nil {
		inviter = &models.User{ID: inv.InviterID}
	}
	inv.InviterName, inv.InviterMail = inviter.FullName, inviter.Email

	if err := s.mailer.SendGroupInvitation(ctx, inv, inviter); err != nil {
		s.logger.Warn("Failed to send invitation email", zap.String("invitation_id", inv.ID), zap.Error(err))
	}
}

// Accept settles a pending invitation as accepted and makes actingUserID a
// member of its group in the same transaction. Accepting an invitation that
// does not exist or is no longer pending returns a not-found error; of two
// concurrent accepts exactly one succeeds.
func (s *InvitationService) Accept(ctx context.Context, invitationID, actingUserID string) (*models.Invitation, error) {
	if err := validation.RequireID("invitation_id", invitationID); err != nil {
		return nil, err
	}
	if err := validation.RequireID("user_id", actingUserID); err != nil {
		return nil, err
	}

	inv, err := s.invitations.AcceptInvitation(ctx, invitationID, actingUserID)
	if err != nil {
		return nil, classify("accept invitation", err, ErrInvitationNotFound)
	}

	s.logger.Info("Invitation accepted",
		zap.String("invitation_id", inv.ID),
		zap.String("group_id", inv.GroupID),
		zap.String("user_id", actingUserID),
	)
	notify(ctx, s.hub, s.logger, realtime.Change{Entity: realtime.EntityInvitations, GroupID: inv.GroupID, UserID: actingUserID})
	notify(ctx, s.hub, s.logger, realtime.Change{Entity: realtime.EntityMembers, GroupID: inv.GroupID, UserID: actingUserID})
	return inv, nil
}

// Reject settles a pending invitation as rejected. It may be called by the
// invitee or, to withdraw it, by the inviter.
func (s *InvitationService) Reject(ctx context.Context, invitationID, actingUserID string) (*models.Invitation, error) {
	if err := validation.RequireID("invitation_id", invitationID); err != nil {
		return nil, err
	}
	if err := validation.RequireID("user_id", actingUserID); err != nil {
		return nil, err
	}

	inv, err := s.invitations.RejectInvitation(ctx, invitationID, actingUserID)
	if err != nil {
		return nil, classify("reject invitation", err, ErrInvitationNotFound)
	}

	s.logger.Info("Invitation rejected", zap.String("invitation_id", inv.ID), zap.String("user_id", actingUserID))
	notify(ctx, s.hub, s.logger, realtime.Change{Entity: realtime.EntityInvitations, GroupID: inv.GroupID, UserID: actingUserID})
	return inv, nil
}

// ListReceived returns the pending invitations addressed to email
func (s *InvitationService) ListReceived(ctx context.Context, email string) ([]models.Invitation, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	invitations, err := s.invitations.ListPendingForEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return nil, classify("list received invitations", err, nil)
	}
	return invitations, nil
}

// ListSent returns every invitation userID sent, newest first
func (s *InvitationService) ListSent(ctx context.Context, userID string) ([]models.Invitation, error) {
	if err := validation.RequireID("user_id", userID); err != nil {
		return nil, err
	}
	invitations, err := s.invitations.ListSentBy(ctx, userID)
	if err != nil {
		return nil, classify("list sent invitations", err, nil)
	}
	return invitations, nil
}
