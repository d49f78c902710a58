package models

import "time"

// MatchPhase discriminates pool-play matches from knockout matches.
type MatchPhase string

const (
	PhasePoolPlay MatchPhase = "pool-play"
	PhaseKnockout MatchPhase = "knockout"
)

// Match is a single game between two distinct teams. Pool-play matches carry
// no round number; their creation order (ascending id) is the schedule order.
// Knockout matches always carry a round number starting at 1.
type Match struct {
	ID         int        `json:"id" db:"id"`
	Team1ID    int        `json:"team1_id" db:"team1_id"`
	Team2ID    int        `json:"team2_id" db:"team2_id"`
	Team1Score int        `json:"team1_score" db:"team1_score"`
	Team2Score int        `json:"team2_score" db:"team2_score"`
	Completed  bool       `json:"completed" db:"completed"`
	Phase      MatchPhase `json:"phase" db:"phase"`
	Round      *int       `json:"round,omitempty" db:"round"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`

	Team1 *Team `json:"team1,omitempty" db:"-"`
	Team2 *Team `json:"team2,omitempty" db:"-"`
}

// Involves reports whether teamID played on either side of the match.
func (m *Match) Involves(teamID int) bool {
	return m.Team1ID == teamID || m.Team2ID == teamID
}

// WinnerID returns the id of the winning team. The second return is false
// for incomplete matches and for ties.
func (m *Match) WinnerID() (int, bool) {
	if !m.Completed || m.Team1Score == m.Team2Score {
		return 0, false
	}
	if m.Team1Score > m.Team2Score {
		return m.Team1ID, true
	}
	return m.Team2ID, true
}
