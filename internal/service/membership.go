package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"familytasks/internal/models"
	"familytasks/internal/realtime"
	"familytasks/internal/validation"
)

// MembershipService manages family groups and who belongs to them
type MembershipService struct {
	groups GroupStore
	hub    realtime.Hub
	logger *zap.Logger
}

// NewMembershipService creates a new membership service
func NewMembershipService(groups GroupStore, hub realtime.Hub, logger *zap.Logger) *MembershipService {
	return &MembershipService{
		groups: groups,
		hub:    hub,
		logger: orNop(logger).Named("membership"),
	}
}

// ListGroups returns the groups userID currently belongs to
func (s *MembershipService) ListGroups(ctx context.Context, userID string) ([]models.FamilyGroup, error) {
	if err := validation.RequireID("user_id", userID); err != nil {
		return nil, err
	}
	groups, err := s.groups.ListUserGroups(ctx, userID)
	if err != nil {
		return nil, classify("list family groups", err, nil)
	}
	return groups, nil
}

// CreateGroup creates a group with userID as its first member
func (s *MembershipService) CreateGroup(ctx context.Context, userID, name string) (*models.FamilyGroup, error) {
	if err := validation.RequireID("user_id", userID); err != nil {
		return nil, err
	}
	if err := validation.ValidateGroupName(name); err != nil {
		return nil, err
	}

	group, err := s.groups.CreateGroup(ctx, strings.TrimSpace(name), userID)
	if err != nil {
		return nil, classify("create family group", err, nil)
	}

	s.logger.Info("Family group created", zap.String("group_id", group.ID), zap.String("user_id", userID))
	notify(ctx, s.hub, s.logger, realtime.Change{Entity: realtime.EntityGroups, GroupID: group.ID, UserID: userID})
	return group, nil
}

// GetGroup returns a group userID belongs to
func (s *MembershipService) GetGroup(ctx context.Context, userID, groupID string) (*models.FamilyGroup, error) {
	if err := s.RequireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	group, err := s.groups.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, classify("get family group", err, nil)
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// JoinGroup makes userID a member of groupID. Joining a group twice is not
// an error and creates no second membership.
func (s *MembershipService) JoinGroup(ctx context.Context, userID, groupID string) error {
	if err := validation.RequireID("user_id", userID); err != nil {
		return err
	}
	if err := validation.RequireID("group_id", groupID); err != nil {
		return err
	}

	group, err := s.groups.GetGroupByID(ctx, groupID)
	if err != nil {
		return classify("get family group", err, nil)
	}
	if group == nil {
		return ErrGroupNotFound
	}

	added, err := s.groups.AddMember(ctx, groupID, userID)
	if err != nil {
		return classify("join family group", err, ErrGroupNotFound)
	}
	if added {
		s.logger.Info("User joined family group", zap.String("group_id", groupID), zap.String("user_id", userID))
		notify(ctx, s.hub, s.logger, realtime.Change{Entity: realtime.EntityMembers, GroupID: groupID, UserID: userID})
	}
	return nil
}

// LeaveGroup removes userID from groupID and returns the scope the caller
// should continue in: personal if active was the group just left,
// otherwise active unchanged.
func (s *MembershipService) LeaveGroup(ctx context.Context, userID, groupID string, active models.Scope) (models.Scope, error) {
	if err := validation.RequireID("user_id", userID); err != nil {
		return active, err
	}
	if err := validation.RequireID("group_id", groupID); err != nil {
		return active, err
	}

	removed, err := s.groups.RemoveMember(ctx, groupID, userID)
	if err != nil {
		return active, classify("leave family group", err, nil)
	}
	if !removed {
		return active, ErrNotGroupMember
	}

	s.logger.Info("User left family group", zap.String("group_id", groupID), zap.String("user_id", userID))
	notify(ctx, s.hub, s.logger, realtime.Change{Entity: realtime.EntityMembers, GroupID: groupID, UserID: userID})

	if current, ok := active.GroupID(); ok && current == groupID {
		return models.PersonalScope(), nil
	}
	return active, nil
}

// SwitchScope selects the scope subsequent calls act in. It never touches
// storage; callers verify group membership when they use the scope.
func (s *MembershipService) SwitchScope(scope models.Scope) models.Scope {
	return scope
}

// ListMembers returns the members of a group userID belongs to
func (s *MembershipService) ListMembers(ctx context.Context, userID, groupID string) ([]models.GroupMember, error) {
	if err := s.RequireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, classify("list family members", err, nil)
	}
	return members, nil
}

// RequireMember fails unless userID belongs to groupID
func (s *MembershipService) RequireMember(ctx context.Context, userID, groupID string) error {
	if err := validation.RequireID("group_id", groupID); err != nil {
		return err
	}
	member, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return classify("check family membership", err, nil)
	}
	if !member {
		return ErrNotGroupMember
	}
	return nil
}

// RequireScope fails unless userID may act in scope
func (s *MembershipService) RequireScope(ctx context.Context, userID string, scope models.Scope) error {
	if groupID, ok := scope.GroupID(); ok {
		return s.RequireMember(ctx, userID, groupID)
	}
	return nil
}
