package models

// StandingsRow is a team's derived record. It is recomputed from the current
// match set every time standings are needed, never stored.
type StandingsRow struct {
	Team          Team    `json:"team"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	PointsFor     int     `json:"points_for"`
	PointsAgainst int     `json:"points_against"`
	PointDiff     int     `json:"point_diff"`
	GamesPlayed   int     `json:"games_played"`
	WinPercentage float64 `json:"win_percentage"`
}
