package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"familytasks/internal/service"
)

// InvitationHandler handles invitation HTTP requests
type InvitationHandler struct {
	invitations *service.InvitationService
	logger      *zap.Logger
}

// NewInvitationHandler creates a new invitation handler
func NewInvitationHandler(invitations *service.InvitationService, logger *zap.Logger) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, logger: orNop(logger)}
}

type inviteRequest struct {
	Email string `json:"email"`
}

// Invite invites an email address into the group in the path
func (h *InvitationHandler) Invite(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	inv, err := h.invitations.Invite(r.Context(), r.PathValue("id"), user.ID, req.Email)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, newInvitationView(inv))
}

// ListReceived returns pending invitations addressed to the caller
func (h *InvitationHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	invs, err := h.invitations.ListReceived(r.Context(), user.Email)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newInvitationViews(invs))
}

// ListSent returns every invitation the caller sent, newest first
func (h *InvitationHandler) ListSent(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	invs, err := h.invitations.ListSent(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newInvitationViews(invs))
}

// Accept accepts the invitation in the path on behalf of the caller
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	inv, err := h.invitations.Accept(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newInvitationView(inv))
}

// Reject declines or withdraws the invitation in the path
func (h *InvitationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}

	inv, err := h.invitations.Reject(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, newInvitationView(inv))
}
