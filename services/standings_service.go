package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/spikeline/tournament-server/models"
	"github.com/spikeline/tournament-server/repositories"
	"github.com/spikeline/tournament-server/schedule"
)

type StandingsService interface {
	// PoolStandings ranks every registered team by its pool-play record.
	PoolStandings(ctx context.Context) ([]models.StandingsRow, error)
}

type standingsService struct {
	teamRepo  repositories.TeamRepository
	matchRepo repositories.MatchRepository
}

func NewStandingsService(teamRepo repositories.TeamRepository, matchRepo repositories.MatchRepository) StandingsService {
	return &standingsService{teamRepo: teamRepo, matchRepo: matchRepo}
}

func (s *standingsService) PoolStandings(ctx context.Context) ([]models.StandingsRow, error) {
	var (
		teams   []*models.Team
		matches []*models.Match
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		approved := models.TeamStatusApproved
		var err error
		teams, err = s.teamRepo.List(gCtx, &approved)
		return err
	})
	g.Go(func() error {
		phase := models.PhasePoolPlay
		var err error
		matches, err = s.matchRepo.List(gCtx, &phase, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return schedule.ComputeStandings(teamValues(teams), matchValues(matches)), nil
}
