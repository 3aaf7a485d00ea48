package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/klubhuset/backend/internal/api/apierr"
	"github.com/klubhuset/backend/internal/api/middleware"
	"github.com/klubhuset/backend/internal/api/request"
	"github.com/klubhuset/backend/internal/api/response"
	"github.com/klubhuset/backend/internal/auth"
)

// PresenceUpdater is the slice of the presence tracker the profile
// endpoints need when an admin account is renamed or deleted.
type PresenceUpdater interface {
	Rename(oldName, newName string)
	ForceRemove(idOrName string)
	Broadcast()
}

// PollRefresher re-broadcasts the live tally after out-of-band changes
type PollRefresher interface {
	BroadcastCurrent(ctx context.Context)
}

// MeHandler handles the authenticated account's own profile
type MeHandler struct {
	accounts *auth.Service
	presence PresenceUpdater
	polls    PollRefresher
}

// NewMeHandler creates a new profile handler
func NewMeHandler(accounts *auth.Service, presence PresenceUpdater, polls PollRefresher) *MeHandler {
	return &MeHandler{
		accounts: accounts,
		presence: presence,
		polls:    polls,
	}
}

// Get handles GET /api/me: the account plus everything stored about
// it, suitable for data export.
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	votes, err := h.accounts.Export(r.Context(), user)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.ProfileFromModel(user, votes))
}

// ChangeUsername handles PUT /api/me/username. Admin renames carry
// over to the live presence roster without dropping connections.
func (h *MeHandler) ChangeUsername(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.ChangeUsernameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	oldUsername := user.Username
	token, err := h.accounts.ChangeUsername(r.Context(), user, req.NewUsername)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	if user.Role.IsAdmin() {
		h.presence.Rename(oldUsername, req.NewUsername)
		h.presence.Broadcast()
	}

	setSessionCookie(w, token, sessionCookieMaxAge)
	response.JSON(w, http.StatusOK, response.RenameResponse{
		Username: req.NewUsername,
		Token:    token,
	})
}

// ChangePassword handles PUT /api/me/password
func (h *MeHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("current and new password are required"))
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Message{Message: "Password updated"})
}

// Delete handles DELETE /api/me. Deletion requires explicit
// confirmation, removes the account and its votes, and scrubs the
// account from the live presence roster.
func (h *MeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}
	if !req.Confirm {
		apierr.WriteError(w, apierr.NewInvalidRequestError("confirmation required to delete (send confirm=true)"))
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), user); err != nil {
		apierr.WriteError(w, err)
		return
	}

	h.presence.ForceRemove(user.Username)
	h.presence.Broadcast()
	h.polls.BroadcastCurrent(r.Context())

	setSessionCookie(w, "", -time.Second)
	response.JSON(w, http.StatusOK, response.Message{Message: "User deleted"})
}
