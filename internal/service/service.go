package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"familytasks/internal/apperr"
	"familytasks/internal/models"
	"familytasks/internal/realtime"
	"familytasks/internal/repository"
)

// ProfileStore persists local profiles of authenticated users
type ProfileStore interface {
	UpsertProfile(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// GroupStore persists family groups and memberships
type GroupStore interface {
	CreateGroup(ctx context.Context, name, creatorUserID string) (*models.FamilyGroup, error)
	GetGroupByID(ctx context.Context, groupID string) (*models.FamilyGroup, error)
	ListUserGroups(ctx context.Context, userID string) ([]models.FamilyGroup, error)
	AddMember(ctx context.Context, groupID, userID string) (bool, error)
	RemoveMember(ctx context.Context, groupID, userID string) (bool, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	ListMembers(ctx context.Context, groupID string) ([]models.GroupMember, error)
}

// InvitationStore persists invitations. Accept and Reject settle an
// invitation atomically and fail with repository.ErrNotPending when it was
// already settled.
type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv *models.Invitation) error
	GetInvitation(ctx context.Context, id string) (*models.Invitation, error)
	AcceptInvitation(ctx context.Context, invitationID, userID string) (*models.Invitation, error)
	RejectInvitation(ctx context.Context, invitationID, userID string) (*models.Invitation, error)
	ListPendingForEmail(ctx context.Context, email string) ([]models.Invitation, error)
	ListSentBy(ctx context.Context, inviterID string) ([]models.Invitation, error)
}

// TaskStore persists tasks
type TaskStore interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListForScope(ctx context.Context, userID string, scope models.Scope) ([]models.Task, error)
	ListVisible(ctx context.Context, userID string) ([]models.Task, error)
	CanAccess(ctx context.Context, taskID, userID string) (bool, error)
	SetCompleted(ctx context.Context, taskID string, completed bool) (bool, error)
}

// AssignmentStore persists task assignments
type AssignmentStore interface {
	AssignTask(ctx context.Context, a *models.TaskAssignment) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]models.TaskAssignment, error)
	ListAssignedTasks(ctx context.Context, userID string) ([]models.AssignedTask, error)
}

var (
	ErrGroupNotFound      = apperr.NotFound("family group not found")
	ErrInvitationNotFound = apperr.NotFound("invitation not found or no longer pending")
	ErrTaskNotFound       = apperr.NotFound("task not found")
	ErrNotGroupMember     = apperr.New(apperr.KindForbidden, "user is not a member of this family group")
	ErrDuplicateInvite    = apperr.Validation("an invitation to this email is already pending")
)

// classify turns a storage error into the error returned to callers.
// notFound is used for repository.ErrNotFound and ErrNotPending.
func classify(op string, err error, notFound *apperr.Error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrNotPending):
		if notFound != nil {
			return notFound
		}
		return apperr.NotFound(op + ": not found")
	case errors.Is(err, repository.ErrPolicyDenied):
		return apperr.Wrap(apperr.KindForbidden, op, err)
	case errors.Is(err, repository.ErrDuplicatePending):
		return ErrDuplicateInvite
	case apperr.KindOf(err) != "":
		return err
	default:
		return apperr.Remote("failed to "+op, err)
	}
}

// notify publishes a change and logs instead of failing: the write it
// describes has already committed.
func notify(ctx context.Context, hub realtime.Hub, logger *zap.Logger, change realtime.Change) {
	if hub == nil {
		return
	}
	if err := hub.Publish(ctx, change); err != nil {
		logger.Warn("Failed to publish change",
			zap.String("entity", string(change.Entity)),
			zap.String("group_id", change.GroupID),
			zap.Error(err),
		)
	}
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
