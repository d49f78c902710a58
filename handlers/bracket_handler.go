package handlers

import (
	"net/http"

	"github.com/spikeline/tournament-server/services"
)

type BracketHandler struct {
	bracketService services.BracketService
}

func NewBracketHandler(bracketService services.BracketService) *BracketHandler {
	return &BracketHandler{bracketService: bracketService}
}

func (h *BracketHandler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := h.bracketService.StartKnockout(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, state, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Advance re-evaluates the bracket. Completing a knockout match already
// triggers this server-side; the endpoint exists for manual recovery.
func (h *BracketHandler) Advance(w http.ResponseWriter, r *http.Request) {
	result, err := h.bracketService.Advance(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BracketHandler) State(w http.ResponseWriter, r *http.Request) {
	state, err := h.bracketService.State(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, state, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
