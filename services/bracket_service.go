package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spikeline/tournament-server/models"
	"github.com/spikeline/tournament-server/realtime"
	"github.com/spikeline/tournament-server/repositories"
	"github.com/spikeline/tournament-server/schedule"
)

// KnockoutRound is one column of the bracket as the frontend renders it.
type KnockoutRound struct {
	Round       int             `json:"round"`
	Name        string          `json:"name"`
	TargetScore int             `json:"target_score"`
	Matches     []*models.Match `json:"matches"`
}

// KnockoutState is the complete bracket view.
type KnockoutState struct {
	Rounds      []KnockoutRound `json:"rounds"`
	ByeTeams    []models.Team   `json:"bye_teams"`
	TotalRounds int             `json:"total_rounds"`
	Champion    *models.Team    `json:"champion,omitempty"`
}

// AdvanceResult reports what an advancement run changed.
type AdvanceResult struct {
	NewMatches []*models.Match `json:"new_matches"`
	NextRound  int             `json:"next_round,omitempty"`
	Champion   *models.Team    `json:"champion,omitempty"`
}

type BracketService interface {
	// StartKnockout snapshots the pool-play standings, seeds the bracket and
	// moves the tournament into the knockout phase.
	StartKnockout(ctx context.Context) (*KnockoutState, error)

	// Advance evaluates the bracket and creates the next round's matches if
	// the current round has fully completed. Safe to call repeatedly.
	Advance(ctx context.Context) (*AdvanceResult, error)

	State(ctx context.Context) (*KnockoutState, error)
}

type bracketService struct {
	txRunner     TxRunner
	teamRepo     repositories.TeamRepository
	matchRepo    repositories.MatchRepository
	settingsRepo repositories.SettingsRepository
	standings    StandingsService
	hub          *realtime.Hub
	logger       *slog.Logger

	mu                  sync.Mutex
	announcedChampionID int
}

func NewBracketService(
	txRunner TxRunner,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	settingsRepo repositories.SettingsRepository,
	standings StandingsService,
	hub *realtime.Hub,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		txRunner:     txRunner,
		teamRepo:     teamRepo,
		matchRepo:    matchRepo,
		settingsRepo: settingsRepo,
		standings:    standings,
		hub:          hub,
		logger:       logger,
	}
}

func (s *bracketService) StartKnockout(ctx context.Context) (*KnockoutState, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if settings.CurrentPhase == models.PhaseStateKnockout {
		return nil, ErrKnockoutAlreadyStarted
	}
	if settings.CurrentPhase != models.PhaseStatePoolPlay {
		return nil, ErrInvalidPhase
	}

	rows, err := s.standings.PoolStandings(ctx)
	if err != nil {
		return nil, err
	}
	played := false
	for _, row := range rows {
		if row.GamesPlayed > 0 {
			played = true
			break
		}
	}
	if !played {
		return nil, ErrNoCompletedPoolMatches
	}

	bracket, err := schedule.BuildInitialBracket(rows)
	if err != nil {
		if errors.Is(err, schedule.ErrNotEnoughTeams) {
			return nil, ErrNotEnoughTeamsForPool
		}
		return nil, err
	}

	byeIDs := make([]int, 0, len(bracket.ByeTeams))
	for _, t := range bracket.ByeTeams {
		byeIDs = append(byeIDs, t.ID)
	}

	round := 1
	created := make([]*models.Match, 0, len(bracket.FirstRound))
	err = s.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		for _, p := range bracket.FirstRound {
			match := &models.Match{
				Team1ID: p.Team1.ID,
				Team2ID: p.Team2.ID,
				Phase:   models.PhaseKnockout,
				Round:   &round,
			}
			if err := s.matchRepo.Create(ctx, tx, match); err != nil {
				return err
			}
			created = append(created, match)
		}
		if err := s.settingsRepo.SetByeTeamIDs(ctx, tx, byeIDs); err != nil {
			return err
		}
		return s.settingsRepo.SetPhase(ctx, tx, models.PhaseStateKnockout)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start knockout phase: %w", err)
	}

	s.mu.Lock()
	s.announcedChampionID = 0
	s.mu.Unlock()

	s.logger.Info("knockout bracket seeded",
		slog.Int("teams", len(rows)),
		slog.Int("bracket_size", bracket.BracketSize),
		slog.Int("byes", len(bracket.ByeTeams)),
		slog.Int("first_round_matches", len(created)))
	s.hub.Broadcast(realtime.Event{Type: "KNOCKOUT_STARTED", Topic: realtime.TopicMatches})
	s.hub.Broadcast(realtime.Event{Type: "PHASE_CHANGED", Topic: realtime.TopicSettings, Payload: map[string]string{"phase": string(models.PhaseStateKnockout)}})

	return s.State(ctx)
}

func (s *bracketService) Advance(ctx context.Context) (*AdvanceResult, error) {
	matches, byeTeams, rows, err := s.loadBracketInputs(ctx)
	if err != nil {
		return nil, err
	}

	adv, err := schedule.AdvanceBracket(matchValues(matches), byeTeams, rows)
	if err != nil {
		return nil, err
	}

	result := &AdvanceResult{Champion: adv.Champion, NextRound: adv.NextRound}
	if adv.Champion != nil {
		// Advance is triggered at-least-once; announce the champion only when
		// the final's outcome is first observed, not on every re-trigger.
		s.mu.Lock()
		firstDecision := s.announcedChampionID != adv.Champion.ID
		s.announcedChampionID = adv.Champion.ID
		s.mu.Unlock()
		if firstDecision {
			s.hub.Broadcast(realtime.Event{Type: "CHAMPION_DECIDED", Topic: realtime.TopicMatches, Payload: adv.Champion})
		}
		return result, nil
	}
	if len(adv.NewPairings) == 0 {
		return result, nil
	}

	created := make([]*models.Match, 0, len(adv.NewPairings))
	err = s.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		round := adv.NextRound
		for _, p := range adv.NewPairings {
			match := &models.Match{
				Team1ID: p.Team1.ID,
				Team2ID: p.Team2.ID,
				Phase:   models.PhaseKnockout,
				Round:   &round,
			}
			if err := s.matchRepo.Create(ctx, tx, match); err != nil {
				return err
			}
			created = append(created, match)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist round %d: %w", adv.NextRound, err)
	}

	result.NewMatches = created
	s.logger.Info("bracket advanced",
		slog.Int("next_round", adv.NextRound),
		slog.Int("new_matches", len(created)))
	s.hub.Broadcast(realtime.Event{Type: "BRACKET_ADVANCED", Topic: realtime.TopicMatches, Payload: map[string]int{"round": adv.NextRound}})
	return result, nil
}

func (s *bracketService) State(ctx context.Context) (*KnockoutState, error) {
	matches, byeTeams, rows, err := s.loadBracketInputs(ctx)
	if err != nil {
		return nil, err
	}

	teams := make([]*models.Team, 0, len(rows))
	for i := range rows {
		teams = append(teams, &rows[i].Team)
	}
	attachTeams(matches, teams)

	byRound := make(map[int][]*models.Match)
	maxRound := 0
	for _, m := range matches {
		round := 1
		if m.Round != nil {
			round = *m.Round
		}
		byRound[round] = append(byRound[round], m)
		if round > maxRound {
			maxRound = round
		}
	}

	teamCount := len(byeTeams) + 2*len(byRound[1])
	totalRounds := schedule.TotalRounds(schedule.BracketSize(teamCount))

	state := &KnockoutState{
		ByeTeams:    byeTeams,
		TotalRounds: totalRounds,
		Rounds:      make([]KnockoutRound, 0, maxRound),
	}
	for round := 1; round <= maxRound; round++ {
		state.Rounds = append(state.Rounds, KnockoutRound{
			Round:       round,
			Name:        schedule.RoundName(round, totalRounds),
			TargetScore: schedule.RoundTargetScore(round, totalRounds),
			Matches:     byRound[round],
		})
	}

	if maxRound >= totalRounds && totalRounds > 0 {
		finals := byRound[maxRound]
		if len(finals) == 1 && finals[0].Completed {
			if winnerID, ok := finals[0].WinnerID(); ok {
				for i := range rows {
					if rows[i].Team.ID == winnerID {
						champion := rows[i].Team
						state.Champion = &champion
						break
					}
				}
			}
		}
	}
	return state, nil
}

func (s *bracketService) loadBracketInputs(ctx context.Context) ([]*models.Match, []models.Team, []models.StandingsRow, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	if settings.CurrentPhase != models.PhaseStateKnockout {
		return nil, nil, nil, ErrInvalidPhase
	}

	phase := models.PhaseKnockout
	matches, err := s.matchRepo.List(ctx, &phase, nil)
	if err != nil {
		return nil, nil, nil, err
	}

	// The standings snapshot stays valid for the whole knockout phase because
	// pool results are frozen once the bracket is seeded.
	rows, err := s.standings.PoolStandings(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	byTeamID := make(map[int]models.Team, len(rows))
	for _, row := range rows {
		byTeamID[row.Team.ID] = row.Team
	}
	byeTeams := make([]models.Team, 0, len(settings.ByeTeamIDs))
	for _, id := range settings.ByeTeamIDs {
		team, ok := byTeamID[id]
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: bye team %d is not registered", schedule.ErrBracketInvariant, id)
		}
		byeTeams = append(byeTeams, team)
	}

	return matches, byeTeams, rows, nil
}
