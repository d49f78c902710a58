package services

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spikeline/tournament-server/models"
	"github.com/spikeline/tournament-server/realtime"
	"github.com/spikeline/tournament-server/repositories"
)

type TournamentService interface {
	GetSettings(ctx context.Context) (*models.TournamentSettings, error)

	// SetPhase moves the tournament to the given phase. Only forward
	// transitions are allowed; going backwards requires a Reset.
	SetPhase(ctx context.Context, phase models.TournamentPhase) (*models.TournamentSettings, error)

	// Reset wipes every match and team and returns settings to registration.
	Reset(ctx context.Context) error
}

type tournamentService struct {
	txRunner     TxRunner
	teamRepo     repositories.TeamRepository
	matchRepo    repositories.MatchRepository
	settingsRepo repositories.SettingsRepository
	hub          *realtime.Hub
	logger       *slog.Logger
}

func NewTournamentService(
	txRunner TxRunner,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	settingsRepo repositories.SettingsRepository,
	hub *realtime.Hub,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		txRunner:     txRunner,
		teamRepo:     teamRepo,
		matchRepo:    matchRepo,
		settingsRepo: settingsRepo,
		hub:          hub,
		logger:       logger,
	}
}

var phaseOrder = map[models.TournamentPhase]int{
	models.PhaseStateRegistration: 0,
	models.PhaseStatePoolPlay:     1,
	models.PhaseStateKnockout:     2,
}

func (s *tournamentService) GetSettings(ctx context.Context) (*models.TournamentSettings, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(settings.ByeTeamIDs) > 0 {
		teams, err := s.teamRepo.List(ctx, nil)
		if err != nil {
			return nil, err
		}
		byID := make(map[int]models.Team, len(teams))
		for _, t := range teams {
			byID[t.ID] = *t
		}
		for _, id := range settings.ByeTeamIDs {
			if team, ok := byID[id]; ok {
				settings.ByeTeams = append(settings.ByeTeams, team)
			}
		}
	}
	return settings, nil
}

func (s *tournamentService) SetPhase(ctx context.Context, phase models.TournamentPhase) (*models.TournamentSettings, error) {
	next, ok := phaseOrder[phase]
	if !ok {
		return nil, ErrInvalidPhase
	}

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if next < phaseOrder[settings.CurrentPhase] {
		return nil, ErrInvalidPhase
	}

	if next != phaseOrder[settings.CurrentPhase] {
		err = s.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
			return s.settingsRepo.SetPhase(ctx, tx, phase)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set phase %q: %w", phase, err)
		}
		s.logger.Info("tournament phase changed",
			slog.String("from", string(settings.CurrentPhase)),
			slog.String("to", string(phase)))
		s.hub.Broadcast(realtime.Event{Type: "PHASE_CHANGED", Topic: realtime.TopicSettings, Payload: map[string]string{"phase": string(phase)}})
	}
	settings.CurrentPhase = phase
	return settings, nil
}

func (s *tournamentService) Reset(ctx context.Context) error {
	err := s.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		if err := s.matchRepo.DeleteAll(ctx, tx); err != nil {
			return err
		}
		if err := s.teamRepo.DeleteAll(ctx, tx); err != nil {
			return err
		}
		return s.settingsRepo.Reset(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("failed to reset tournament: %w", err)
	}

	s.logger.Info("tournament reset")
	s.hub.Broadcast(realtime.Event{Type: "TOURNAMENT_RESET", Topic: realtime.TopicSettings})
	s.hub.Broadcast(realtime.Event{Type: "MATCHES_CHANGED", Topic: realtime.TopicMatches})
	s.hub.Broadcast(realtime.Event{Type: "TEAMS_CHANGED", Topic: realtime.TopicTeams})
	return nil
}
