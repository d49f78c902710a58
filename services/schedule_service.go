package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spikeline/tournament-server/models"
	"github.com/spikeline/tournament-server/realtime"
	"github.com/spikeline/tournament-server/repositories"
	"github.com/spikeline/tournament-server/schedule"
)

const minPoolTeams = 4

// PoolScheduleResult is what a schedule generation run produced: the matches
// persisted in play order plus any teams the scheduler could not bring up to
// the requested minimum. Shortfalls are advisory, never fatal.
type PoolScheduleResult struct {
	Matches    []*models.Match      `json:"matches"`
	Shortfalls []schedule.Shortfall `json:"shortfalls,omitempty"`
}

type ScheduleService interface {
	// GeneratePoolSchedule builds a fresh pool-play schedule, replacing any
	// uncompleted pool matches, and moves the tournament into pool play.
	GeneratePoolSchedule(ctx context.Context, minGamesPerTeam int) (*PoolScheduleResult, error)
}

type scheduleService struct {
	txRunner     TxRunner
	teamRepo     repositories.TeamRepository
	matchRepo    repositories.MatchRepository
	settingsRepo repositories.SettingsRepository
	scheduler    *schedule.PoolScheduler
	hub          *realtime.Hub
	logger       *slog.Logger
}

func NewScheduleService(
	txRunner TxRunner,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	settingsRepo repositories.SettingsRepository,
	scheduler *schedule.PoolScheduler,
	hub *realtime.Hub,
	logger *slog.Logger,
) ScheduleService {
	return &scheduleService{
		txRunner:     txRunner,
		teamRepo:     teamRepo,
		matchRepo:    matchRepo,
		settingsRepo: settingsRepo,
		scheduler:    scheduler,
		hub:          hub,
		logger:       logger,
	}
}

func (s *scheduleService) GeneratePoolSchedule(ctx context.Context, minGamesPerTeam int) (*PoolScheduleResult, error) {
	if minGamesPerTeam < 1 {
		return nil, ErrInvalidMinGames
	}

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if settings.CurrentPhase == models.PhaseStateKnockout {
		return nil, ErrKnockoutAlreadyStarted
	}

	approved := models.TeamStatusApproved
	teams, err := s.teamRepo.List(ctx, &approved)
	if err != nil {
		return nil, err
	}
	if len(teams) < minPoolTeams {
		return nil, ErrNotEnoughTeamsForPool
	}

	phase := models.PhasePoolPlay
	existing, err := s.matchRepo.List(ctx, &phase, nil)
	if err != nil {
		return nil, err
	}

	// Completed results survive regeneration; pending matches are replaced.
	var completed []models.Match
	for _, m := range existing {
		if m.Completed {
			completed = append(completed, *m)
		}
	}

	pairings, shortfalls := s.scheduler.Generate(teamValues(teams), completed, minGamesPerTeam)
	for _, sf := range shortfalls {
		s.logger.Warn("pool schedule shortfall",
			slog.Int("team_id", sf.Team.ID),
			slog.String("team", sf.Team.Name),
			slog.Int("games", sf.Games),
			slog.Int("target", sf.Target))
	}

	created := make([]*models.Match, 0, len(pairings))
	err = s.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		for _, m := range existing {
			if m.Completed {
				continue
			}
			if err := s.matchRepo.Delete(ctx, tx, m.ID); err != nil {
				return err
			}
		}
		for _, p := range pairings {
			match := &models.Match{
				Team1ID: p.Team1.ID,
				Team2ID: p.Team2.ID,
				Phase:   models.PhasePoolPlay,
			}
			if err := s.matchRepo.Create(ctx, tx, match); err != nil {
				return err
			}
			created = append(created, match)
		}
		if settings.CurrentPhase != models.PhaseStatePoolPlay {
			return s.settingsRepo.SetPhase(ctx, tx, models.PhaseStatePoolPlay)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist pool schedule: %w", err)
	}

	attachTeams(created, teams)

	s.logger.Info("pool schedule generated",
		slog.Int("teams", len(teams)),
		slog.Int("matches", len(created)),
		slog.Int("shortfalls", len(shortfalls)))
	s.hub.Broadcast(realtime.Event{Type: "SCHEDULE_GENERATED", Topic: realtime.TopicMatches})
	if settings.CurrentPhase != models.PhaseStatePoolPlay {
		s.hub.Broadcast(realtime.Event{Type: "PHASE_CHANGED", Topic: realtime.TopicSettings, Payload: map[string]string{"phase": string(models.PhaseStatePoolPlay)}})
	}

	return &PoolScheduleResult{Matches: created, Shortfalls: shortfalls}, nil
}
