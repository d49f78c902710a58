package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spikeline/tournament-server/models"
	"github.com/spikeline/tournament-server/realtime"
)

// fourTeamPool returns four teams and a completed round robin whose standings
// come out T1 > T2 > T3 > T4.
func fourTeamPool() ([]*models.Team, []*models.Match) {
	teams := []*models.Team{
		{ID: 1, Name: "Spike Lords", Players: []string{"Ana", "Ben"}},
		{ID: 2, Name: "Net Ninjas", Players: []string{"Cy", "Dee"}},
		{ID: 3, Name: "Pocket Aces", Players: []string{"Eve", "Fin"}},
		{ID: 4, Name: "Rally Cats", Players: []string{"Gus", "Hal"}},
	}
	pool := models.PhasePoolPlay
	matches := []*models.Match{
		{ID: 1, Team1ID: 1, Team2ID: 2, Team1Score: 21, Team2Score: 15, Completed: true, Phase: pool},
		{ID: 2, Team1ID: 1, Team2ID: 3, Team1Score: 21, Team2Score: 12, Completed: true, Phase: pool},
		{ID: 3, Team1ID: 1, Team2ID: 4, Team1Score: 21, Team2Score: 10, Completed: true, Phase: pool},
		{ID: 4, Team1ID: 2, Team2ID: 3, Team1Score: 21, Team2Score: 18, Completed: true, Phase: pool},
		{ID: 5, Team1ID: 2, Team2ID: 4, Team1Score: 21, Team2Score: 16, Completed: true, Phase: pool},
		{ID: 6, Team1ID: 3, Team2ID: 4, Team1Score: 21, Team2Score: 19, Completed: true, Phase: pool},
	}
	return teams, matches
}

// sixTeamPool returns six teams and a completed round robin whose standings
// come out T1 > T2 > ... > T6, forcing a bracket with two byes.
func sixTeamPool() ([]*models.Team, []*models.Match) {
	teams := []*models.Team{
		{ID: 1, Name: "Spike Lords", Players: []string{"Ana", "Ben"}},
		{ID: 2, Name: "Net Ninjas", Players: []string{"Cy", "Dee"}},
		{ID: 3, Name: "Pocket Aces", Players: []string{"Eve", "Fin"}},
		{ID: 4, Name: "Rally Cats", Players: []string{"Gus", "Hal"}},
		{ID: 5, Name: "Drop Shots", Players: []string{"Ivy", "Jon"}},
		{ID: 6, Name: "Court Jesters", Players: []string{"Kim", "Lee"}},
	}
	pool := models.PhasePoolPlay
	matches := make([]*models.Match, 0, 15)
	id := 1
	for i := 1; i <= 6; i++ {
		for j := i + 1; j <= 6; j++ {
			matches = append(matches, &models.Match{
				ID: id, Team1ID: i, Team2ID: j,
				Team1Score: 21, Team2Score: 10,
				Completed: true, Phase: pool,
			})
			id++
		}
	}
	return teams, matches
}

func newBracketServiceForTest(phase models.TournamentPhase, teams []*models.Team, matches []*models.Match) (BracketService, *fakeMatchRepo, *fakeSettingsRepo) {
	teamRepo := newFakeTeamRepo(teams...)
	matchRepo := newFakeMatchRepo(matches...)
	settingsRepo := newFakeSettingsRepo(phase)
	standings := NewStandingsService(teamRepo, matchRepo)
	svc := NewBracketService(&fakeTxRunner{}, teamRepo, matchRepo, settingsRepo, standings, testHub(), testLogger())
	return svc, matchRepo, settingsRepo
}

func TestStartKnockoutPhaseGuards(t *testing.T) {
	teams, matches := fourTeamPool()

	t.Run("already started", func(t *testing.T) {
		svc, _, _ := newBracketServiceForTest(models.PhaseStateKnockout, teams, matches)
		_, err := svc.StartKnockout(context.Background())
		assert.ErrorIs(t, err, ErrKnockoutAlreadyStarted)
	})

	t.Run("still in registration", func(t *testing.T) {
		svc, _, _ := newBracketServiceForTest(models.PhaseStateRegistration, teams, matches)
		_, err := svc.StartKnockout(context.Background())
		assert.ErrorIs(t, err, ErrInvalidPhase)
	})
}

func TestStartKnockoutRequiresCompletedPoolPlay(t *testing.T) {
	teams, _ := fourTeamPool()
	svc, _, _ := newBracketServiceForTest(models.PhaseStatePoolPlay, teams, nil)

	_, err := svc.StartKnockout(context.Background())
	assert.ErrorIs(t, err, ErrNoCompletedPoolMatches)
}

func TestStartKnockoutSeedsBracket(t *testing.T) {
	teams, matches := sixTeamPool()
	svc, matchRepo, settingsRepo := newBracketServiceForTest(models.PhaseStatePoolPlay, teams, matches)

	state, err := svc.StartKnockout(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.PhaseStateKnockout, settingsRepo.settings.CurrentPhase)
	assert.Equal(t, []int{1, 2}, settingsRepo.settings.ByeTeamIDs, "top two seeds take the byes")

	phase := models.PhaseKnockout
	created, err := matchRepo.List(context.Background(), &phase, nil)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, 3, created[0].Team1ID)
	assert.Equal(t, 6, created[0].Team2ID)
	assert.Equal(t, 4, created[1].Team1ID)
	assert.Equal(t, 5, created[1].Team2ID)
	for _, m := range created {
		require.NotNil(t, m.Round)
		assert.Equal(t, 1, *m.Round)
	}

	assert.Equal(t, 3, state.TotalRounds)
	require.Len(t, state.ByeTeams, 2)
	require.Len(t, state.Rounds, 1)
	assert.Len(t, state.Rounds[0].Matches, 2)
}

func TestAdvanceCreatesNextRound(t *testing.T) {
	teams, matches := fourTeamPool()
	round1 := 1
	matches = append(matches,
		&models.Match{ID: 10, Team1ID: 1, Team2ID: 4, Team1Score: 15, Team2Score: 8, Completed: true, Phase: models.PhaseKnockout, Round: &round1},
		&models.Match{ID: 11, Team1ID: 2, Team2ID: 3, Team1Score: 15, Team2Score: 11, Completed: true, Phase: models.PhaseKnockout, Round: &round1},
	)

	svc, matchRepo, _ := newBracketServiceForTest(models.PhaseStateKnockout, teams, matches)
	result, err := svc.Advance(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.NextRound)
	assert.Nil(t, result.Champion)
	require.Len(t, result.NewMatches, 1)
	final := result.NewMatches[0]
	assert.Equal(t, 1, final.Team1ID)
	assert.Equal(t, 2, final.Team2ID)
	require.NotNil(t, final.Round)
	assert.Equal(t, 2, *final.Round)

	phase := models.PhaseKnockout
	all, err := matchRepo.List(context.Background(), &phase, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3, "final must be persisted alongside the semifinals")
}

func TestAdvanceWaitsForCurrentRound(t *testing.T) {
	teams, matches := fourTeamPool()
	round := 1
	matches = append(matches,
		&models.Match{ID: 10, Team1ID: 1, Team2ID: 4, Team1Score: 15, Team2Score: 8, Completed: true, Phase: models.PhaseKnockout, Round: &round},
		&models.Match{ID: 11, Team1ID: 2, Team2ID: 3, Phase: models.PhaseKnockout, Round: &round},
	)

	svc, _, _ := newBracketServiceForTest(models.PhaseStateKnockout, teams, matches)
	result, err := svc.Advance(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.NewMatches)
	assert.Nil(t, result.Champion)
}

func TestAdvanceIsIdempotentWhenNextRoundExists(t *testing.T) {
	teams, matches := fourTeamPool()
	round1, round2 := 1, 2
	matches = append(matches,
		&models.Match{ID: 10, Team1ID: 1, Team2ID: 4, Team1Score: 15, Team2Score: 8, Completed: true, Phase: models.PhaseKnockout, Round: &round1},
		&models.Match{ID: 11, Team1ID: 2, Team2ID: 3, Team1Score: 15, Team2Score: 11, Completed: true, Phase: models.PhaseKnockout, Round: &round1},
		&models.Match{ID: 12, Team1ID: 1, Team2ID: 2, Phase: models.PhaseKnockout, Round: &round2},
	)

	svc, matchRepo, _ := newBracketServiceForTest(models.PhaseStateKnockout, teams, matches)
	result, err := svc.Advance(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.NewMatches, "existing final must not be recreated")

	phase := models.PhaseKnockout
	all, err := matchRepo.List(context.Background(), &phase, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAdvanceReportsChampion(t *testing.T) {
	teams, matches := fourTeamPool()
	round1, round2 := 1, 2
	matches = append(matches,
		&models.Match{ID: 10, Team1ID: 1, Team2ID: 4, Team1Score: 15, Team2Score: 8, Completed: true, Phase: models.PhaseKnockout, Round: &round1},
		&models.Match{ID: 11, Team1ID: 2, Team2ID: 3, Team1Score: 15, Team2Score: 11, Completed: true, Phase: models.PhaseKnockout, Round: &round1},
		&models.Match{ID: 12, Team1ID: 1, Team2ID: 2, Team1Score: 21, Team2Score: 18, Completed: true, Phase: models.PhaseKnockout, Round: &round2},
	)

	svc, _, _ := newBracketServiceForTest(models.PhaseStateKnockout, teams, matches)
	result, err := svc.Advance(context.Background())
	require.NoError(t, err)

	require.NotNil(t, result.Champion)
	assert.Equal(t, "Spike Lords", result.Champion.Name)
	assert.Empty(t, result.NewMatches)
}

func TestAdvanceAnnouncesChampionOnce(t *testing.T) {
	teams, matches := fourTeamPool()
	round1, round2 := 1, 2
	matches = append(matches,
		&models.Match{ID: 10, Team1ID: 1, Team2ID: 4, Team1Score: 15, Team2Score: 8, Completed: true, Phase: models.PhaseKnockout, Round: &round1},
		&models.Match{ID: 11, Team1ID: 2, Team2ID: 3, Team1Score: 15, Team2Score: 11, Completed: true, Phase: models.PhaseKnockout, Round: &round1},
		&models.Match{ID: 12, Team1ID: 1, Team2ID: 2, Team1Score: 21, Team2Score: 18, Completed: true, Phase: models.PhaseKnockout, Round: &round2},
	)

	teamRepo := newFakeTeamRepo(teams...)
	matchRepo := newFakeMatchRepo(matches...)
	settingsRepo := newFakeSettingsRepo(models.PhaseStateKnockout)
	hub := realtime.NewHub()
	go hub.Run()

	client := &realtime.Client{Hub: hub, Send: make(chan []byte, 32), Topic: realtime.TopicMatches}
	hub.Register <- client
	waitForBroadcasts(t, hub, client)

	svc := NewBracketService(&fakeTxRunner{}, teamRepo, matchRepo, settingsRepo,
		NewStandingsService(teamRepo, matchRepo), hub, testLogger())

	// A decided final stays decided; re-triggering must not re-announce.
	for i := 0; i < 2; i++ {
		result, err := svc.Advance(context.Background())
		require.NoError(t, err)
		require.NotNil(t, result.Champion)
	}

	decided := 0
	for done := false; !done; {
		select {
		case raw := <-client.Send:
			var ev realtime.Event
			require.NoError(t, json.Unmarshal(raw, &ev))
			if ev.Type == "CHAMPION_DECIDED" {
				decided++
			}
		default:
			done = true
		}
	}
	assert.Equal(t, 1, decided, "champion must be announced exactly once")
}

// waitForBroadcasts pings the hub until the client receives, proving the
// registration has been applied before the test starts asserting on events.
func waitForBroadcasts(t *testing.T, hub *realtime.Hub, client *realtime.Client) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		hub.Broadcast(realtime.Event{Type: "PING", Topic: client.Topic})
		select {
		case <-client.Send:
			return
		case <-deadline:
			t.Fatal("client never received a broadcast")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestStateBuildsRoundsWithChampion(t *testing.T) {
	teams, matches := fourTeamPool()
	round1, round2 := 1, 2
	matches = append(matches,
		&models.Match{ID: 10, Team1ID: 1, Team2ID: 4, Team1Score: 15, Team2Score: 8, Completed: true, Phase: models.PhaseKnockout, Round: &round1},
		&models.Match{ID: 11, Team1ID: 2, Team2ID: 3, Team1Score: 15, Team2Score: 11, Completed: true, Phase: models.PhaseKnockout, Round: &round1},
		&models.Match{ID: 12, Team1ID: 1, Team2ID: 2, Team1Score: 21, Team2Score: 18, Completed: true, Phase: models.PhaseKnockout, Round: &round2},
	)

	svc, _, _ := newBracketServiceForTest(models.PhaseStateKnockout, teams, matches)
	state, err := svc.State(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, state.TotalRounds)
	require.Len(t, state.Rounds, 2)

	assert.Equal(t, "Semifinals", state.Rounds[0].Name)
	assert.Equal(t, 21, state.Rounds[0].TargetScore)
	assert.Len(t, state.Rounds[0].Matches, 2)

	assert.Equal(t, "Championship", state.Rounds[1].Name)
	assert.Equal(t, 21, state.Rounds[1].TargetScore)
	require.Len(t, state.Rounds[1].Matches, 1)
	require.NotNil(t, state.Rounds[1].Matches[0].Team1)
	assert.Equal(t, "Spike Lords", state.Rounds[1].Matches[0].Team1.Name)

	require.NotNil(t, state.Champion)
	assert.Equal(t, "Spike Lords", state.Champion.Name)
}

func TestStateOutsideKnockoutPhase(t *testing.T) {
	teams, matches := fourTeamPool()
	svc, _, _ := newBracketServiceForTest(models.PhaseStatePoolPlay, teams, matches)

	_, err := svc.State(context.Background())
	assert.ErrorIs(t, err, ErrInvalidPhase)
}
