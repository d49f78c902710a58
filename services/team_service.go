package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spikeline/tournament-server/models"
	"github.com/spikeline/tournament-server/realtime"
	"github.com/spikeline/tournament-server/repositories"
	"github.com/spikeline/tournament-server/storage"
)

type RegisterTeamInput struct {
	Name    string   `json:"name"`
	Players []string `json:"players"`
	Paid    bool     `json:"paid"`
}

type TeamService interface {
	// Register accepts a public signup as a pending registration. The team
	// joins the tournament only once an admin approves it.
	Register(ctx context.Context, input RegisterTeamInput) (*models.Team, error)
	GetByID(ctx context.Context, id int) (*models.Team, error)
	List(ctx context.Context, status *models.TeamStatus) ([]*models.Team, error)
	Update(ctx context.Context, id int, input RegisterTeamInput) (*models.Team, error)
	Approve(ctx context.Context, id int) (*models.Team, error)
	Reject(ctx context.Context, id int) error
	Delete(ctx context.Context, id int) error
	UploadLogo(ctx context.Context, id int, contentType string, file io.Reader) (*models.Team, error)
}

type teamService struct {
	txRunner     TxRunner
	teamRepo     repositories.TeamRepository
	matchRepo    repositories.MatchRepository
	settingsRepo repositories.SettingsRepository
	uploader     storage.FileUploader
	hub          *realtime.Hub
	logger       *slog.Logger
}

func NewTeamService(
	txRunner TxRunner,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	settingsRepo repositories.SettingsRepository,
	uploader storage.FileUploader,
	hub *realtime.Hub,
	logger *slog.Logger,
) TeamService {
	return &teamService{
		txRunner:     txRunner,
		teamRepo:     teamRepo,
		matchRepo:    matchRepo,
		settingsRepo: settingsRepo,
		uploader:     uploader,
		hub:          hub,
		logger:       logger,
	}
}

func (s *teamService) Register(ctx context.Context, input RegisterTeamInput) (*models.Team, error) {
	if err := validateTeamInput(&input); err != nil {
		return nil, err
	}

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if settings.CurrentPhase != models.PhaseStateRegistration {
		return nil, ErrRegistrationClosed
	}

	team := &models.Team{
		Name:    input.Name,
		Players: input.Players,
		Paid:    input.Paid,
		Status:  models.TeamStatusPending,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to register team %q: %w", input.Name, err)
	}

	s.logger.Info("team registration pending approval", slog.Int("team_id", team.ID), slog.String("name", team.Name))
	s.hub.Broadcast(realtime.Event{Type: "TEAM_REGISTERED", Topic: realtime.TopicTeams, Payload: team})
	return team, nil
}

// Approve moves a pending registration into the tournament proper. Approved
// teams show up in standings and are eligible for scheduling.
func (s *teamService) Approve(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if team.Status != models.TeamStatusPending {
		return nil, ErrTeamNotPending
	}

	if err := s.teamRepo.UpdateStatus(ctx, id, models.TeamStatusApproved); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to approve team %d: %w", id, err)
	}
	team.Status = models.TeamStatusApproved

	s.logger.Info("team approved", slog.Int("team_id", id), slog.String("name", team.Name))
	s.hub.Broadcast(realtime.Event{Type: "TEAM_APPROVED", Topic: realtime.TopicTeams, Payload: team})
	return team, nil
}

// Reject removes a pending registration. Approved teams are withdrawn via
// Delete instead.
func (s *teamService) Reject(ctx context.Context, id int) error {
	team, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if team.Status != models.TeamStatusPending {
		return ErrTeamNotPending
	}

	err = s.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		return s.teamRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to reject team %d: %w", id, err)
	}

	if team.LogoKey != nil {
		if err := s.uploader.Delete(ctx, *team.LogoKey); err != nil {
			s.logger.Warn("failed to delete team logo", slog.Int("team_id", id), slog.Any("error", err))
		}
	}

	s.logger.Info("team registration rejected", slog.Int("team_id", id), slog.String("name", team.Name))
	s.hub.Broadcast(realtime.Event{Type: "TEAM_REJECTED", Topic: realtime.TopicTeams, Payload: map[string]int{"id": id}})
	return nil
}

func (s *teamService) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	s.populateLogoURL(team)
	return team, nil
}

func (s *teamService) List(ctx context.Context, status *models.TeamStatus) ([]*models.Team, error) {
	teams, err := s.teamRepo.List(ctx, status)
	if err != nil {
		return nil, err
	}
	for _, team := range teams {
		s.populateLogoURL(team)
	}
	return teams, nil
}

func (s *teamService) Update(ctx context.Context, id int, input RegisterTeamInput) (*models.Team, error) {
	if err := validateTeamInput(&input); err != nil {
		return nil, err
	}

	team, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	team.Name = input.Name
	team.Players = input.Players
	team.Paid = input.Paid
	if err := s.teamRepo.Update(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to update team %d: %w", id, err)
	}

	s.hub.Broadcast(realtime.Event{Type: "TEAM_UPDATED", Topic: realtime.TopicTeams, Payload: team})
	return team, nil
}

// Delete removes a team together with every match it played, in one
// transaction. Standings are derived, so nothing else needs fixing up.
func (s *teamService) Delete(ctx context.Context, id int) error {
	team, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.txRunner.RunInTx(ctx, func(tx *sql.Tx) error {
		if err := s.matchRepo.DeleteByTeam(ctx, tx, id); err != nil {
			return err
		}
		return s.teamRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete team %d: %w", id, err)
	}

	if team.LogoKey != nil {
		if err := s.uploader.Delete(ctx, *team.LogoKey); err != nil {
			s.logger.Warn("failed to delete team logo", slog.Int("team_id", id), slog.Any("error", err))
		}
	}

	s.logger.Info("team deleted", slog.Int("team_id", id), slog.String("name", team.Name))
	s.hub.Broadcast(realtime.Event{Type: "TEAM_DELETED", Topic: realtime.TopicTeams, Payload: map[string]int{"id": id}})
	s.hub.Broadcast(realtime.Event{Type: "MATCHES_CHANGED", Topic: realtime.TopicMatches})
	return nil
}

func (s *teamService) UploadLogo(ctx context.Context, id int, contentType string, file io.Reader) (*models.Team, error) {
	ext, ok := logoExtensions[contentType]
	if !ok {
		return nil, ErrUnsupportedLogoType
	}

	team, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("team-logos/%d/%d%s", id, time.Now().UnixNano(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload logo for team %d: %w", id, err)
	}

	oldKey := team.LogoKey
	if err := s.teamRepo.UpdateLogoKey(ctx, id, &result.Key); err != nil {
		return nil, err
	}
	if oldKey != nil && *oldKey != result.Key {
		if err := s.uploader.Delete(ctx, *oldKey); err != nil {
			s.logger.Warn("failed to delete previous logo", slog.Int("team_id", id), slog.Any("error", err))
		}
	}

	team.LogoKey = &result.Key
	s.populateLogoURL(team)
	s.hub.Broadcast(realtime.Event{Type: "TEAM_UPDATED", Topic: realtime.TopicTeams, Payload: team})
	return team, nil
}

var logoExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

func (s *teamService) populateLogoURL(team *models.Team) {
	if team.LogoKey != nil {
		url := s.uploader.GetPublicURL(*team.LogoKey)
		team.LogoURL = &url
	}
}

func validateTeamInput(input *RegisterTeamInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return ErrTeamNameRequired
	}
	if len(input.Players) != models.RosterSize {
		return ErrRosterSizeInvalid
	}
	for i, player := range input.Players {
		input.Players[i] = strings.TrimSpace(player)
		if input.Players[i] == "" {
			return ErrPlayerNameRequired
		}
	}
	return nil
}
