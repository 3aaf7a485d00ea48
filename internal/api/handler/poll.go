package handler

import (
	"net/http"

	"github.com/klubhuset/backend/internal/api/apierr"
	"github.com/klubhuset/backend/internal/api/response"
	"github.com/klubhuset/backend/internal/poll"
)

// PollHandler serves the active poll over plain HTTP for clients that
// have not opened the websocket yet.
type PollHandler struct {
	polls *poll.Service
}

// NewPollHandler creates a new poll handler
func NewPollHandler(polls *poll.Service) *PollHandler {
	return &PollHandler{polls: polls}
}

// GetActive handles GET /api/poll
func (h *PollHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	view, err := h.polls.Active(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, view)
}
