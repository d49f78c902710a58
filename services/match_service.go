package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spikeline/tournament-server/models"
	"github.com/spikeline/tournament-server/realtime"
	"github.com/spikeline/tournament-server/repositories"
)

// SubmitScoreInput carries a score update. Completed=false is an in-progress
// save and may be tied; Completed=true is a final result and may not.
type SubmitScoreInput struct {
	Team1Score int  `json:"team1_score"`
	Team2Score int  `json:"team2_score"`
	Completed  bool `json:"completed"`
}

type MatchService interface {
	GetByID(ctx context.Context, id int) (*models.Match, error)
	List(ctx context.Context, phase *models.MatchPhase) ([]*models.Match, error)

	// SubmitScore records a score update. A completed knockout match
	// immediately triggers bracket advancement.
	SubmitScore(ctx context.Context, id int, input SubmitScoreInput) (*models.Match, error)
}

type matchService struct {
	matchRepo repositories.MatchRepository
	teamRepo  repositories.TeamRepository
	bracket   BracketService
	hub       *realtime.Hub
	logger    *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	teamRepo repositories.TeamRepository,
	bracket BracketService,
	hub *realtime.Hub,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo: matchRepo,
		teamRepo:  teamRepo,
		bracket:   bracket,
		hub:       hub,
		logger:    logger,
	}
}

func (s *matchService) GetByID(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if err := s.attach(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *matchService) List(ctx context.Context, phase *models.MatchPhase) ([]*models.Match, error) {
	matches, err := s.matchRepo.List(ctx, phase, nil)
	if err != nil {
		return nil, err
	}
	teams, err := s.teamRepo.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	attachTeams(matches, teams)
	return matches, nil
}

func (s *matchService) SubmitScore(ctx context.Context, id int, input SubmitScoreInput) (*models.Match, error) {
	if input.Team1Score < 0 || input.Team2Score < 0 {
		return nil, ErrNegativeScore
	}
	// Roundnet games cannot end level; a tied final score is an entry
	// mistake. In-progress saves may be tied.
	if input.Completed && input.Team1Score == input.Team2Score {
		return nil, ErrTiedScore
	}

	match, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.matchRepo.UpdateScore(ctx, id, input.Team1Score, input.Team2Score, input.Completed); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	match.Team1Score = input.Team1Score
	match.Team2Score = input.Team2Score
	match.Completed = input.Completed

	s.logger.Info("score submitted",
		slog.Int("match_id", id),
		slog.String("phase", string(match.Phase)),
		slog.Int("team1_score", input.Team1Score),
		slog.Int("team2_score", input.Team2Score),
		slog.Bool("completed", input.Completed))
	eventType := "MATCH_UPDATED"
	if input.Completed {
		eventType = "MATCH_COMPLETED"
	}
	s.hub.Broadcast(realtime.Event{Type: eventType, Topic: realtime.TopicMatches, Payload: match})

	if input.Completed && match.Phase == models.PhaseKnockout {
		if _, err := s.bracket.Advance(ctx); err != nil {
			// The score itself is saved; surface the advancement failure so
			// an admin can resolve it and re-trigger.
			s.logger.Error("bracket advancement failed after score submission",
				slog.Int("match_id", id), slog.Any("error", err))
			return nil, err
		}
	}
	return match, nil
}

func (s *matchService) attach(ctx context.Context, match *models.Match) error {
	team1, err := s.teamRepo.GetByID(ctx, match.Team1ID)
	if err != nil {
		return err
	}
	team2, err := s.teamRepo.GetByID(ctx, match.Team2ID)
	if err != nil {
		return err
	}
	match.Team1 = team1
	match.Team2 = team2
	return nil
}
