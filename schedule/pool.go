package schedule

import (
	"math/rand"
	"sort"
	"time"

	"github.com/spikeline/tournament-server/models"
)

const (
	// Bounds on the generation loops. Both phases make progress on every
	// iteration or stop, so these only guard against logic regressions.
	maxPairingAttempts   = 500
	maxCompletionPasses  = 50
	backToBackPenalty    = 100
	restedTwoRoundsBonus = 50
	restedThreeBonus     = 100
)

// Pairing is a single generated matchup. Side order carries no meaning.
type Pairing struct {
	Team1 models.Team `json:"team1"`
	Team2 models.Team `json:"team2"`
}

// Shortfall reports a team that could not reach the minimum game count
// because it had already played every other team. Non-fatal: the schedule is
// still usable, the caller surfaces the warning.
type Shortfall struct {
	Team   models.Team `json:"team"`
	Games  int         `json:"games"`
	Target int         `json:"target"`
}

// PoolScheduler generates pool-play pairings so that every team plays at
// least a minimum number of distinct opponents, then orders them to keep
// back-to-back games rare.
type PoolScheduler struct {
	rng *rand.Rand
}

// NewPoolScheduler returns a scheduler drawing shuffle order from rng.
// A nil rng gets a time-seeded source; tests pass a fixed seed.
func NewPoolScheduler(rng *rand.Rand) *PoolScheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &PoolScheduler{rng: rng}
}

// Generate produces new pairings so that, combined with existingMatches,
// every team has at least minGamesPerTeam games (capped at len(teams)-1).
// No pairing duplicates an existing or generated matchup in either side
// order, and no team plays itself. The returned pairings are in schedule
// order; persisting them in that order is the schedule. Teams that cannot
// reach the target are returned as shortfalls, never as an error.
func (s *PoolScheduler) Generate(teams []models.Team, existingMatches []models.Match, minGamesPerTeam int) ([]Pairing, []Shortfall) {
	if len(teams) < 2 {
		return nil, nil
	}

	target := minGamesPerTeam
	if max := len(teams) - 1; target > max {
		target = max
	}
	if target < 1 {
		target = 1
	}

	gameCount := make(map[int]int, len(teams))
	for _, t := range teams {
		gameCount[t.ID] = 0
	}
	for _, m := range existingMatches {
		gameCount[m.Team1ID]++
		gameCount[m.Team2ID]++
	}

	played := make(map[[2]int]bool, len(existingMatches))
	for _, m := range existingMatches {
		played[pairKey(m.Team1ID, m.Team2ID)] = true
	}

	shuffled := make([]models.Team, len(teams))
	copy(shuffled, teams)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var generated []Pairing
	addPairing := func(a, b models.Team) {
		generated = append(generated, Pairing{Team1: a, Team2: b})
		played[pairKey(a.ID, b.ID)] = true
		gameCount[a.ID]++
		gameCount[b.ID]++
	}

	// Phase 1: pair up teams that both still need games. Each attempt adds at
	// most one pairing so the per-team counts stay balanced as we go.
	for attempt := 0; attempt < maxPairingAttempts; attempt++ {
		added := false
	search:
		for i := 0; i < len(shuffled)-1; i++ {
			t1 := shuffled[i]
			if gameCount[t1.ID] >= target {
				continue
			}
			for j := i + 1; j < len(shuffled); j++ {
				t2 := shuffled[j]
				if gameCount[t2.ID] >= target {
					continue
				}
				if played[pairKey(t1.ID, t2.ID)] {
					continue
				}
				addPairing(t1, t2)
				added = true
				break search
			}
		}
		if !added {
			break
		}
	}

	// Phase 2: completion pass. Teams still short may now pair with teams
	// already at target; prefer opponents with the fewest games so the
	// overshoot spreads out. Stops when no pass makes progress.
	for pass := 0; pass < maxCompletionPasses; pass++ {
		progress := false
		for _, team := range shuffled {
			needed := target - gameCount[team.ID]
			if needed <= 0 {
				continue
			}

			opponents := make([]models.Team, 0, len(teams))
			for _, opp := range teams {
				if opp.ID == team.ID || played[pairKey(team.ID, opp.ID)] {
					continue
				}
				opponents = append(opponents, opp)
			}
			sort.SliceStable(opponents, func(i, j int) bool {
				return gameCount[opponents[i].ID] < gameCount[opponents[j].ID]
			})

			if len(opponents) < needed {
				needed = len(opponents)
			}
			for i := 0; i < needed; i++ {
				addPairing(team, opponents[i])
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	var shortfalls []Shortfall
	for _, t := range teams {
		if gameCount[t.ID] < target {
			shortfalls = append(shortfalls, Shortfall{Team: t, Games: gameCount[t.ID], Target: target})
		}
	}

	return s.orderPairings(generated), shortfalls
}

// orderPairings greedily assigns each pairing to the next schedule slot,
// choosing the candidate whose teams have rested longest. A team that played
// the previous slot costs heavily, extra rest earns a bonus; ties go to bag
// order so the result is deterministic for a fixed shuffle.
func (s *PoolScheduler) orderPairings(pairings []Pairing) []Pairing {
	remaining := make([]Pairing, len(pairings))
	copy(remaining, pairings)

	ordered := make([]Pairing, 0, len(pairings))
	lastPlayed := make(map[int]int)

	for round := 1; len(remaining) > 0; round++ {
		bestIdx := 0
		bestScore := scorePairing(remaining[0], round, lastPlayed)
		for i := 1; i < len(remaining); i++ {
			if score := scorePairing(remaining[i], round, lastPlayed); score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		best := remaining[bestIdx]
		ordered = append(ordered, best)
		lastPlayed[best.Team1.ID] = round
		lastPlayed[best.Team2.ID] = round
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return ordered
}

func scorePairing(p Pairing, round int, lastPlayed map[int]int) int {
	rest1 := round - lastPlayed[p.Team1.ID]
	rest2 := round - lastPlayed[p.Team2.ID]

	score := rest1 + rest2
	if rest1 == 1 {
		score -= backToBackPenalty
	}
	if rest2 == 1 {
		score -= backToBackPenalty
	}
	if rest1 >= 2 {
		score += restedTwoRoundsBonus
	}
	if rest2 >= 2 {
		score += restedTwoRoundsBonus
	}
	if rest1 >= 3 {
		score += restedThreeBonus
	}
	if rest2 >= 3 {
		score += restedThreeBonus
	}
	return score
}

// pairKey is an order-independent key for a team pair.
func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}
