package schedule

import (
	"errors"
	"fmt"
	"math/bits"
	"sort"

	"github.com/spikeline/tournament-server/models"
)

// Invariant violations are defects in the caller's snapshot, not recoverable
// states: the operation must be aborted without writes and reported so an
// admin can intervene.
var (
	ErrNotEnoughTeams   = errors.New("at least two teams are required for a knockout bracket")
	ErrBracketInvariant = errors.New("bracket invariant violation")
	ErrTiedKnockoutGame = errors.New("knockout match completed with a tied score")
)

const (
	finalStageTargetScore = 21
	earlyRoundTargetScore = 15
)

// InitialBracket is the result of seeding the knockout phase: the top seeds
// skipping round 1 and the round-1 matchups for everyone else.
type InitialBracket struct {
	ByeTeams   []models.Team `json:"bye_teams"`
	FirstRound []Pairing     `json:"first_round"`

	BracketSize int `json:"bracket_size"`
	TotalRounds int `json:"total_rounds"`
}

// Advancement is the outcome of evaluating the current knockout state.
// NewPairings is empty when the current round is still in progress or the
// next round already exists; Champion is set once the final is decided.
type Advancement struct {
	NewPairings []Pairing    `json:"new_pairings"`
	NextRound   int          `json:"next_round,omitempty"`
	Champion    *models.Team `json:"champion,omitempty"`
}

// BracketSize returns the next power of two at or above teamCount.
func BracketSize(teamCount int) int {
	if teamCount <= 1 {
		return teamCount
	}
	return 1 << bits.Len(uint(teamCount-1))
}

// TotalRounds returns the number of rounds a bracket of the given size plays.
func TotalRounds(bracketSize int) int {
	if bracketSize <= 1 {
		return 0
	}
	return bits.Len(uint(bracketSize - 1))
}

// RoundTargetScore returns the score a round is played to. The semifinals
// and the final go to 21, earlier rounds to 15. Display and quick-entry
// policy only; nothing structural depends on it.
func RoundTargetScore(round, totalRounds int) int {
	if totalRounds-round < 2 {
		return finalStageTargetScore
	}
	return earlyRoundTargetScore
}

// RoundName returns a display label for a knockout round.
func RoundName(round, totalRounds int) string {
	switch totalRounds - round {
	case 0:
		return "Championship"
	case 1:
		return "Semifinals"
	case 2:
		return "Quarterfinals"
	default:
		return fmt.Sprintf("Round %d", round)
	}
}

// BuildInitialBracket seeds a knockout bracket from the given standings.
// Every team advances out of pool play: the bracket size is the next power
// of two, the top seeds take the byes, and the remaining teams pair
// highest-vs-lowest within the playing subset (seed i against seed
// len-1-i). Invariants are validated before anything is returned; a
// violation aborts the whole operation.
func BuildInitialBracket(standings []models.StandingsRow) (*InitialBracket, error) {
	teamCount := len(standings)
	if teamCount < 2 {
		return nil, ErrNotEnoughTeams
	}

	seen := make(map[int]string, teamCount)
	for _, row := range standings {
		if name, dup := seen[row.Team.ID]; dup {
			return nil, fmt.Errorf("%w: team %q (id %d) appears twice in standings (also as %q)",
				ErrBracketInvariant, row.Team.Name, row.Team.ID, name)
		}
		seen[row.Team.ID] = row.Team.Name
	}

	bracketSize := BracketSize(teamCount)
	byesNeeded := bracketSize - teamCount

	byeTeams := make([]models.Team, 0, byesNeeded)
	for _, row := range standings[:byesNeeded] {
		byeTeams = append(byeTeams, row.Team)
	}

	playing := standings[byesNeeded:]
	pairings := make([]Pairing, 0, len(playing)/2)
	for i := 0; i < len(playing)/2; i++ {
		t1 := playing[i].Team
		t2 := playing[len(playing)-1-i].Team
		if t1.ID == t2.ID {
			return nil, fmt.Errorf("%w: team %q paired against itself", ErrBracketInvariant, t1.Name)
		}
		pairings = append(pairings, Pairing{Team1: t1, Team2: t2})
	}

	if placed := len(byeTeams) + 2*len(pairings); placed != teamCount {
		return nil, fmt.Errorf("%w: %d of %d teams placed (%d byes, %d first-round matches)",
			ErrBracketInvariant, placed, teamCount, len(byeTeams), len(pairings))
	}

	return &InitialBracket{
		ByeTeams:    byeTeams,
		FirstRound:  pairings,
		BracketSize: bracketSize,
		TotalRounds: TotalRounds(bracketSize),
	}, nil
}

// AdvanceBracket inspects the knockout matches and, working from the highest
// fully-completed round, produces the next round's pairings or the champion.
// Winners advance joined by the bye teams after round 1, are re-sorted by
// their ORIGINAL seed from the standings snapshot, and pair seed i against
// seed len-1-i, preserving the bracket shape.
//
// The function is idempotent under at-least-once triggering: the next round
// is always re-derived from the completed round below it, and pairings that
// already exist (in either side order) are skipped. A repeated trigger on an
// already-advanced bracket produces no new work, and a partially persisted
// next round is topped up with only its missing matches.
func AdvanceBracket(knockoutMatches []models.Match, byeTeams []models.Team, standings []models.StandingsRow) (*Advancement, error) {
	if len(knockoutMatches) == 0 {
		return &Advancement{}, nil
	}

	byRound := make(map[int][]models.Match)
	highestRound := 0
	for _, m := range knockoutMatches {
		round := 1
		if m.Round != nil {
			round = *m.Round
		}
		byRound[round] = append(byRound[round], m)
		if round > highestRound {
			highestRound = round
		}
	}

	evalRound := highestRound
	if !roundComplete(byRound[evalRound]) {
		evalRound--
	}
	if evalRound == 0 || !roundComplete(byRound[evalRound]) {
		return &Advancement{}, nil
	}

	teamCount := len(byeTeams) + 2*len(byRound[1])
	totalRounds := TotalRounds(BracketSize(teamCount))

	seedOf := make(map[int]int, len(standings))
	teamBySeed := make(map[int]models.Team, len(standings))
	for i, row := range standings {
		seedOf[row.Team.ID] = i
		teamBySeed[row.Team.ID] = row.Team
	}

	winners := make([]models.Team, 0, len(byRound[evalRound]))
	for _, m := range byRound[evalRound] {
		winnerID, ok := m.WinnerID()
		if !ok {
			return nil, fmt.Errorf("%w: match %d finished %d-%d in round %d",
				ErrTiedKnockoutGame, m.ID, m.Team1Score, m.Team2Score, evalRound)
		}
		team, known := teamBySeed[winnerID]
		if !known {
			return nil, fmt.Errorf("%w: winner of match %d (team id %d) is not in the standings snapshot",
				ErrBracketInvariant, m.ID, winnerID)
		}
		winners = append(winners, team)
	}

	// The final round has a single match; its winner is the champion and no
	// further rounds exist. Re-running on the same state lands here again.
	if evalRound >= totalRounds && len(byRound[evalRound]) == 1 {
		champion := winners[0]
		return &Advancement{Champion: &champion}, nil
	}

	// Byes sat out round 1 and enter the advancement pool with the winners.
	advancing := winners
	if evalRound == 1 {
		advancing = append(append([]models.Team{}, byeTeams...), winners...)
	}

	if len(advancing) == 1 {
		champion := advancing[0]
		return &Advancement{Champion: &champion}, nil
	}
	if len(advancing)%2 != 0 {
		return nil, fmt.Errorf("%w: %d teams advancing out of round %d, expected an even number",
			ErrBracketInvariant, len(advancing), evalRound)
	}

	byeIDs := make(map[int]bool, len(byeTeams))
	for _, t := range byeTeams {
		byeIDs[t.ID] = true
	}
	if evalRound == 1 {
		for _, w := range winners {
			if byeIDs[w.ID] {
				return nil, fmt.Errorf("%w: team %q has a bye but also won a round-1 match",
					ErrBracketInvariant, w.Name)
			}
		}
	}

	sort.SliceStable(advancing, func(i, j int) bool {
		return seedOf[advancing[i].ID] < seedOf[advancing[j].ID]
	})

	nextRound := evalRound + 1
	existing := make(map[[2]int]bool, len(byRound[nextRound]))
	for _, m := range byRound[nextRound] {
		existing[pairKey(m.Team1ID, m.Team2ID)] = true
	}

	pairings := make([]Pairing, 0, len(advancing)/2)
	for i := 0; i < len(advancing)/2; i++ {
		t1 := advancing[i]
		t2 := advancing[len(advancing)-1-i]
		if t1.ID == t2.ID {
			return nil, fmt.Errorf("%w: team %q paired against itself in round %d",
				ErrBracketInvariant, t1.Name, nextRound)
		}
		if existing[pairKey(t1.ID, t2.ID)] {
			continue
		}
		pairings = append(pairings, Pairing{Team1: t1, Team2: t2})
	}

	return &Advancement{NewPairings: pairings, NextRound: nextRound}, nil
}

func roundComplete(matches []models.Match) bool {
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if !m.Completed {
			return false
		}
	}
	return true
}
