package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/spikeline/tournament-server/models"
	"github.com/spikeline/tournament-server/realtime"
	"github.com/spikeline/tournament-server/repositories"
	"github.com/spikeline/tournament-server/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHub() *realtime.Hub {
	return realtime.NewHub()
}

// fakeTxRunner calls fn directly; the fake repositories ignore the executor,
// so a nil transaction is fine.
type fakeTxRunner struct {
	calls int
	err   error
}

func (r *fakeTxRunner) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	return fn(nil)
}

type fakeTeamRepo struct {
	teams  map[int]*models.Team
	nextID int
}

// newFakeTeamRepo seeds teams; fixtures that don't care about the approval
// workflow get approved status, matching teams already in a tournament.
func newFakeTeamRepo(teams ...*models.Team) *fakeTeamRepo {
	r := &fakeTeamRepo{teams: make(map[int]*models.Team), nextID: 1}
	for _, t := range teams {
		clone := *t
		if clone.ID == 0 {
			clone.ID = r.nextID
		}
		if clone.Status == "" {
			clone.Status = models.TeamStatusApproved
		}
		r.teams[clone.ID] = &clone
		if clone.ID >= r.nextID {
			r.nextID = clone.ID + 1
		}
	}
	return r
}

func (r *fakeTeamRepo) Create(ctx context.Context, team *models.Team) error {
	for _, existing := range r.teams {
		if existing.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	team.ID = r.nextID
	team.CreatedAt = time.Now()
	r.nextID++
	clone := *team
	r.teams[team.ID] = &clone
	return nil
}

func (r *fakeTeamRepo) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	clone := *team
	return &clone, nil
}

func (r *fakeTeamRepo) List(ctx context.Context, status *models.TeamStatus) ([]*models.Team, error) {
	ids := make([]int, 0, len(r.teams))
	for id := range r.teams {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*models.Team, 0, len(ids))
	for _, id := range ids {
		if status != nil && r.teams[id].Status != *status {
			continue
		}
		clone := *r.teams[id]
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeTeamRepo) UpdateStatus(ctx context.Context, id int, status models.TeamStatus) error {
	team, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.Status = status
	return nil
}

func (r *fakeTeamRepo) Update(ctx context.Context, team *models.Team) error {
	if _, ok := r.teams[team.ID]; !ok {
		return repositories.ErrTeamNotFound
	}
	clone := *team
	r.teams[team.ID] = &clone
	return nil
}

func (r *fakeTeamRepo) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	team, ok := r.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	team.LogoKey = logoKey
	return nil
}

func (r *fakeTeamRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if _, ok := r.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.teams, id)
	return nil
}

func (r *fakeTeamRepo) DeleteAll(ctx context.Context, exec repositories.SQLExecutor) error {
	r.teams = make(map[int]*models.Team)
	return nil
}

type fakeMatchRepo struct {
	matches map[int]*models.Match
	nextID  int
}

func newFakeMatchRepo(matches ...*models.Match) *fakeMatchRepo {
	r := &fakeMatchRepo{matches: make(map[int]*models.Match), nextID: 1}
	for _, m := range matches {
		clone := *m
		if clone.ID == 0 {
			clone.ID = r.nextID
		}
		r.matches[clone.ID] = &clone
		if clone.ID >= r.nextID {
			r.nextID = clone.ID + 1
		}
	}
	return r
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	match.ID = r.nextID
	match.CreatedAt = time.Now()
	r.nextID++
	clone := *match
	r.matches[match.ID] = &clone
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	match, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	clone := *match
	return &clone, nil
}

func (r *fakeMatchRepo) List(ctx context.Context, phase *models.MatchPhase, round *int) ([]*models.Match, error) {
	ids := make([]int, 0, len(r.matches))
	for id := range r.matches {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]*models.Match, 0, len(ids))
	for _, id := range ids {
		m := r.matches[id]
		if phase != nil && m.Phase != *phase {
			continue
		}
		if round != nil && (m.Round == nil || *m.Round != *round) {
			continue
		}
		clone := *m
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeMatchRepo) UpdateScore(ctx context.Context, id int, team1Score, team2Score int, completed bool) error {
	match, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	match.Team1Score = team1Score
	match.Team2Score = team2Score
	match.Completed = completed
	return nil
}

func (r *fakeMatchRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if _, ok := r.matches[id]; !ok {
		return repositories.ErrMatchNotFound
	}
	delete(r.matches, id)
	return nil
}

func (r *fakeMatchRepo) DeleteByTeam(ctx context.Context, exec repositories.SQLExecutor, teamID int) error {
	for id, m := range r.matches {
		if m.Involves(teamID) {
			delete(r.matches, id)
		}
	}
	return nil
}

func (r *fakeMatchRepo) DeleteAll(ctx context.Context, exec repositories.SQLExecutor) error {
	r.matches = make(map[int]*models.Match)
	return nil
}

type fakeSettingsRepo struct {
	settings models.TournamentSettings
}

func newFakeSettingsRepo(phase models.TournamentPhase) *fakeSettingsRepo {
	return &fakeSettingsRepo{settings: models.TournamentSettings{ID: 1, CurrentPhase: phase}}
}

func (r *fakeSettingsRepo) Get(ctx context.Context) (*models.TournamentSettings, error) {
	clone := r.settings
	return &clone, nil
}

func (r *fakeSettingsRepo) SetPhase(ctx context.Context, exec repositories.SQLExecutor, phase models.TournamentPhase) error {
	r.settings.CurrentPhase = phase
	return nil
}

func (r *fakeSettingsRepo) SetByeTeamIDs(ctx context.Context, exec repositories.SQLExecutor, teamIDs []int) error {
	r.settings.ByeTeamIDs = append([]int{}, teamIDs...)
	return nil
}

func (r *fakeSettingsRepo) Reset(ctx context.Context, exec repositories.SQLExecutor) error {
	r.settings = models.TournamentSettings{ID: 1, CurrentPhase: models.PhaseStateRegistration}
	return nil
}

type fakeUploader struct {
	uploaded map[string]string
	deleted  []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploaded: make(map[string]string)}
}

func (u *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	u.uploaded[key] = contentType
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, key string) error {
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

type fakeBracketService struct {
	advanceCalls int
	advanceErr   error
}

func (b *fakeBracketService) StartKnockout(ctx context.Context) (*KnockoutState, error) {
	return nil, nil
}

func (b *fakeBracketService) Advance(ctx context.Context) (*AdvanceResult, error) {
	b.advanceCalls++
	if b.advanceErr != nil {
		return nil, b.advanceErr
	}
	return &AdvanceResult{}, nil
}

func (b *fakeBracketService) State(ctx context.Context) (*KnockoutState, error) {
	return nil, nil
}
