package handlers

import (
	"fmt"
	"net/http"

	"github.com/spikeline/tournament-server/models"
	"github.com/spikeline/tournament-server/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(matchService services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// List returns all matches, optionally filtered with ?phase=pool-play or
// ?phase=knockout.
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	var phase *models.MatchPhase
	if raw := r.URL.Query().Get("phase"); raw != "" {
		p := models.MatchPhase(raw)
		if p != models.PhasePoolPlay && p != models.PhaseKnockout {
			badRequestResponse(w, r, fmt.Errorf("unknown phase %q", raw))
			return
		}
		phase = &p
	}

	matches, err := h.matchService.List(r.Context(), phase)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SubmitScoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.SubmitScore(r.Context(), id, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
