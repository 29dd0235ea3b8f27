package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"familytasks/internal/models"
	"familytasks/internal/service"
)

// AccountHandler serves the caller's identity and active scope
type AccountHandler struct {
	members *service.MembershipService
	logger  *zap.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(members *service.MembershipService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{members: members, logger: orNop(logger)}
}

// Me returns the authenticated user
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newUserView(user))
}

// SwitchScope checks that the caller may act in the requested scope and
// echoes it back. The server keeps no per-user scope; clients send it on
// every request.
func (h *AccountHandler) SwitchScope(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	var req ScopeView
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	scope := h.members.SwitchScope(models.ParseScope(req.Scope))
	if err := h.members.RequireScope(r.Context(), user.ID, scope); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ScopeView{Scope: scope.String()})
}
