package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/spikeline/tournament-server/models"
)

var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrMatchTeamInvalid = errors.New("match references an unknown team")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	List(ctx context.Context, phase *models.MatchPhase, round *int) ([]*models.Match, error)
	UpdateScore(ctx context.Context, id int, team1Score, team2Score int, completed bool) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	DeleteByTeam(ctx context.Context, exec SQLExecutor, teamID int) error
	DeleteAll(ctx context.Context, exec SQLExecutor) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches (team1_id, team2_id, team1_score, team2_score, completed, phase, round)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		match.Team1ID,
		match.Team2ID,
		match.Team1Score,
		match.Team2Score,
		match.Completed,
		match.Phase,
		match.Round,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `
		SELECT id, team1_id, team2_id, team1_score, team2_score, completed, phase, round, created_at
		FROM matches
		WHERE id = $1`

	match := &models.Match{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.Team1ID,
		&match.Team2ID,
		&match.Team1Score,
		&match.Team2Score,
		&match.Completed,
		&match.Phase,
		&match.Round,
		&match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

// List returns matches ordered by creation (ascending id). For pool play that
// order IS the schedule order; knockout consumers group by round on top.
func (r *postgresMatchRepository) List(ctx context.Context, phaseFilter *models.MatchPhase, roundFilter *int) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT id, team1_id, team2_id, team1_score, team2_score, completed, phase, round, created_at
		FROM matches
		WHERE 1=1`)

	args := []interface{}{}
	placeholderIndex := 1

	if phaseFilter != nil {
		queryBuilder.WriteString(" AND phase = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *phaseFilter)
		placeholderIndex++
	}
	if roundFilter != nil {
		queryBuilder.WriteString(" AND round = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *roundFilter)
	}

	queryBuilder.WriteString(" ORDER BY id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var match models.Match
		if scanErr := rows.Scan(
			&match.ID,
			&match.Team1ID,
			&match.Team2ID,
			&match.Team1Score,
			&match.Team2Score,
			&match.Completed,
			&match.Phase,
			&match.Round,
			&match.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, &match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateScore(ctx context.Context, id int, team1Score, team2Score int, completed bool) error {
	query := `
		UPDATE matches
		SET team1_score = $1, team2_score = $2, completed = $3
		WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, team1Score, team2Score, completed, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) DeleteByTeam(ctx context.Context, exec SQLExecutor, teamID int) error {
	query := `DELETE FROM matches WHERE team1_id = $1 OR team2_id = $1`
	if _, err := exec.ExecContext(ctx, query, teamID); err != nil {
		return fmt.Errorf("failed to delete matches for team %d: %w", teamID, err)
	}
	return nil
}

func (r *postgresMatchRepository) DeleteAll(ctx context.Context, exec SQLExecutor) error {
	if _, err := exec.ExecContext(ctx, `DELETE FROM matches`); err != nil {
		return fmt.Errorf("failed to delete matches: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 23503: foreign_key_violation
		switch pqErr.Constraint {
		case "matches_team1_id_fkey", "matches_team2_id_fkey":
			return ErrMatchTeamInvalid
		}
	}
	return err
}
