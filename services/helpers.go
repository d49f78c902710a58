package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spikeline/tournament-server/models"
)

// TxRunner runs a function inside a database transaction. Services depend on
// this instead of *sql.DB directly so tests can supply a pass-through runner
// alongside in-memory repositories.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type sqlTxRunner struct {
	db *sql.DB
}

// NewSQLTxRunner wraps a database handle as a TxRunner.
func NewSQLTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

// RunInTx runs fn inside a transaction, rolling back on error or panic.
func (r *sqlTxRunner) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// attachTeams resolves the Team1/Team2 references on each match from the
// given roster so API responses carry names, not just ids.
func attachTeams(matches []*models.Match, teams []*models.Team) {
	byID := make(map[int]*models.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}
	for _, m := range matches {
		m.Team1 = byID[m.Team1ID]
		m.Team2 = byID[m.Team2ID]
	}
}

func teamValues(teams []*models.Team) []models.Team {
	out := make([]models.Team, 0, len(teams))
	for _, t := range teams {
		out = append(out, *t)
	}
	return out
}

func matchValues(matches []*models.Match) []models.Match {
	out := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		out = append(out, *m)
	}
	return out
}
