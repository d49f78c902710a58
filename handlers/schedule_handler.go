package handlers

import (
	"net/http"

	"github.com/spikeline/tournament-server/services"
)

type ScheduleHandler struct {
	scheduleService services.ScheduleService
}

func NewScheduleHandler(scheduleService services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService}
}

// Generate builds a pool-play schedule. Shortfalls come back alongside the
// matches; they are warnings, not failures.
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var input struct {
		MinGamesPerTeam int `json:"min_games_per_team"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.scheduleService.GeneratePoolSchedule(r.Context(), input.MinGamesPerTeam)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
