package schedule

import (
	"sort"

	"github.com/spikeline/tournament-server/models"
)

// ComputeStandings derives one row per team from the completed matches in the
// given set. The ranking order is wins desc, then point differential desc,
// then points for desc. That order is a contract: it is what bracket seeding
// reads. Teams tied on all three keys keep their input order, so the result
// is deterministic for a fixed input.
func ComputeStandings(teams []models.Team, matches []models.Match) []models.StandingsRow {
	rows := make([]models.StandingsRow, 0, len(teams))

	for _, team := range teams {
		row := models.StandingsRow{Team: team}
		for _, match := range matches {
			if !match.Completed || !match.Involves(team.ID) {
				continue
			}
			var own, opp int
			if match.Team1ID == team.ID {
				own, opp = match.Team1Score, match.Team2Score
			} else {
				own, opp = match.Team2Score, match.Team1Score
			}
			row.GamesPlayed++
			row.PointsFor += own
			row.PointsAgainst += opp
			if own > opp {
				row.Wins++
			} else if own < opp {
				row.Losses++
			}
		}
		row.PointDiff = row.PointsFor - row.PointsAgainst
		if row.GamesPlayed > 0 {
			row.WinPercentage = float64(row.Wins) / float64(row.GamesPlayed)
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Wins != rows[j].Wins {
			return rows[i].Wins > rows[j].Wins
		}
		if rows[i].PointDiff != rows[j].PointDiff {
			return rows[i].PointDiff > rows[j].PointDiff
		}
		return rows[i].PointsFor > rows[j].PointsFor
	})

	return rows
}
