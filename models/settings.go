package models

import "time"

// TournamentPhase is the coarse state of the whole event.
type TournamentPhase string

const (
	PhaseStateRegistration TournamentPhase = "registration"
	PhaseStatePoolPlay     TournamentPhase = "pool-play"
	PhaseStateKnockout     TournamentPhase = "knockout"
)

// TournamentSettings is a singleton row: the current phase plus the teams
// awarded first-round byes when the knockout bracket was built (in seed
// order, best seed first).
type TournamentSettings struct {
	ID           int             `json:"id" db:"id"`
	CurrentPhase TournamentPhase `json:"current_phase" db:"current_phase"`
	ByeTeamIDs   []int           `json:"bye_team_ids" db:"bye_team_ids"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`

	ByeTeams []Team `json:"bye_teams,omitempty" db:"-"`
}
