package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"familytasks/internal/models"
	"familytasks/internal/service"
)

// GroupHandler handles family group HTTP requests
type GroupHandler struct {
	members *service.MembershipService
	logger  *zap.Logger
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(members *service.MembershipService, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{members: members, logger: orNop(logger)}
}

// ListGroups returns the groups the caller belongs to
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	groups, err := h.members.ListGroups(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newGroupViews(groups))
}

type createGroupRequest struct {
	Name string `json:"name"`
}

// CreateGroup creates a group with the caller as first member
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	var req createGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	group, err := h.members.CreateGroup(r.Context(), user.ID, req.Name)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, GroupView{ID: group.ID, Name: group.Name, CreatedAt: group.CreatedAt})
}

// GetGroup returns one group the caller belongs to
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	group, err := h.members.GetGroup(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, GroupView{ID: group.ID, Name: group.Name, CreatedAt: group.CreatedAt})
}

// JoinGroup adds the caller to a group
func (h *GroupHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	groupID := r.PathValue("id")
	if err := h.members.JoinGroup(r.Context(), user.ID, groupID); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ScopeView{Scope: models.GroupScope(groupID).String()})
}

type leaveGroupRequest struct {
	ActiveScope string `json:"active_scope"`
}

// LeaveGroup removes the caller from a group and returns the scope the
// caller should continue in
func (h *GroupHandler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	var req leaveGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	scope, err := h.members.LeaveGroup(r.Context(), user.ID, r.PathValue("id"), models.ParseScope(req.ActiveScope))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ScopeView{Scope: scope.String()})
}

// ListMembers returns the members of a group the caller belongs to
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	members, err := h.members.ListMembers(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newMemberViews(members))
}
