package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/spikeline/tournament-server/models"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*models.TournamentSettings, error)
	SetPhase(ctx context.Context, exec SQLExecutor, phase models.TournamentPhase) error
	SetByeTeamIDs(ctx context.Context, exec SQLExecutor, teamIDs []int) error
	Reset(ctx context.Context, exec SQLExecutor) error
}

type postgresSettingsRepository struct {
	db *sql.DB
}

func NewPostgresSettingsRepository(db *sql.DB) SettingsRepository {
	return &postgresSettingsRepository{db: db}
}

// Get returns the settings singleton, defaulting to the registration phase
// when the row has never been written.
func (r *postgresSettingsRepository) Get(ctx context.Context) (*models.TournamentSettings, error) {
	query := `
		SELECT id, current_phase, bye_team_ids, updated_at
		FROM tournament_settings
		ORDER BY id ASC
		LIMIT 1`

	settings := &models.TournamentSettings{}
	var byeIDs pq.Int64Array
	err := r.db.QueryRowContext(ctx, query).Scan(
		&settings.ID,
		&settings.CurrentPhase,
		&byeIDs,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.TournamentSettings{CurrentPhase: models.PhaseStateRegistration}, nil
		}
		return nil, fmt.Errorf("failed to scan tournament settings: %w", err)
	}

	settings.ByeTeamIDs = make([]int, 0, len(byeIDs))
	for _, id := range byeIDs {
		settings.ByeTeamIDs = append(settings.ByeTeamIDs, int(id))
	}
	return settings, nil
}

func (r *postgresSettingsRepository) SetPhase(ctx context.Context, exec SQLExecutor, phase models.TournamentPhase) error {
	return r.upsert(ctx, exec,
		`INSERT INTO tournament_settings (id, current_phase)
		 VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET current_phase = EXCLUDED.current_phase, updated_at = now()`,
		phase)
}

func (r *postgresSettingsRepository) SetByeTeamIDs(ctx context.Context, exec SQLExecutor, teamIDs []int) error {
	ids := make(pq.Int64Array, 0, len(teamIDs))
	for _, id := range teamIDs {
		ids = append(ids, int64(id))
	}
	return r.upsert(ctx, exec,
		`INSERT INTO tournament_settings (id, bye_team_ids)
		 VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET bye_team_ids = EXCLUDED.bye_team_ids, updated_at = now()`,
		ids)
}

func (r *postgresSettingsRepository) Reset(ctx context.Context, exec SQLExecutor) error {
	return r.upsert(ctx, exec,
		`INSERT INTO tournament_settings (id, current_phase, bye_team_ids)
		 VALUES (1, $1, '{}')
		 ON CONFLICT (id) DO UPDATE SET current_phase = EXCLUDED.current_phase, bye_team_ids = '{}', updated_at = now()`,
		models.PhaseStateRegistration)
}

func (r *postgresSettingsRepository) upsert(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) error {
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert tournament settings: %w", err)
	}
	return nil
}
