package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"valorant-hub/internal/config"
	"valorant-hub/internal/database"
	"valorant-hub/internal/db"
	"valorant-hub/internal/domain"
	"valorant-hub/internal/engine"
	"valorant-hub/internal/hub"
	"valorant-hub/internal/rating"
	"valorant-hub/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type allowAllAccounts struct{}

func (allowAllAccounts) HasLinkedAccount(ctx context.Context, name, tag string) (bool, error) {
	return true, nil
}

type fixture struct {
	sqlDB    *sql.DB
	queries  *db.Queries
	hub      *hub.Hub
	queueSvc *QueueService
	matchSvc *MatchService
	userRepo *repository.UserRepository
}

func setup(t *testing.T) *fixture {
	t.Helper()

	log := zerolog.Nop()
	sqlDB, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}, log)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	queries := db.New(sqlDB)
	userRepo := repository.NewUserRepository(sqlDB, queries, log)
	queueRepo := repository.NewQueueRepository(sqlDB, queries, log)
	matchRepo := repository.NewMatchRepository(sqlDB, queries, log)
	historyRepo := repository.NewHistoryRepository(sqlDB, queries, log)

	h := hub.NewHub(context.Background(), hub.DefaultTimings(), log)
	t.Cleanup(h.Shutdown)

	matchSvc := NewMatchService(h, matchRepo, historyRepo, userRepo, queueRepo, log)
	queueSvc := NewQueueService(queueRepo, userRepo, allowAllAccounts{}, matchSvc, log)

	return &fixture{
		sqlDB:    sqlDB,
		queries:  queries,
		hub:      h,
		queueSvc: queueSvc,
		matchSvc: matchSvc,
		userRepo: userRepo,
	}
}

func (f *fixture) activeMatchCount(t *testing.T) int {
	t.Helper()
	var count int
	require.NoError(t, f.sqlDB.QueryRow("SELECT COUNT(*) FROM active_matches").Scan(&count))
	return count
}

func TestQueue_TriggersMatchAtTenPlayers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 1; i <= 9; i++ {
		id := fmt.Sprintf("p%d", i)
		require.NoError(t, f.queueSvc.Join(ctx, id, "user-"+id, "", ""))
	}

	assert.Equal(t, 0, f.activeMatchCount(t))
	entries, err := f.queueSvc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 9)

	require.NoError(t, f.queueSvc.Join(ctx, "p10", "user-p10", "", ""))

	assert.Equal(t, 1, f.activeMatchCount(t))

	// Exactly the ten earliest entries are consumed.
	entries, err = f.queueSvc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	var snapshot string
	require.NoError(t, f.sqlDB.QueryRow("SELECT snapshot FROM active_matches").Scan(&snapshot))
	var m domain.Match
	require.NoError(t, json.Unmarshal([]byte(snapshot), &m))
	assert.Equal(t, domain.PhaseReadyCheck, m.Phase)
	assert.Len(t, m.Players, 10)

	// The room is live in the hub.
	require.NotNil(t, f.hub.Get(m.ID))

	// An eleventh join waits for the next batch.
	require.NoError(t, f.queueSvc.Join(ctx, "p11", "user-p11", "", ""))
	entries, err = f.queueSvc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, f.activeMatchCount(t))
}

func TestCreateMatch_DuplicateRosterCollapses(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	entries := make([]domain.QueueEntry, 10)
	for i := range entries {
		id := fmt.Sprintf("p%d", i+1)
		_, err := f.userRepo.Ensure(ctx, id, "user-"+id, false)
		require.NoError(t, err)
		entries[i] = domain.QueueEntry{UserID: id, Username: "user-" + id, JoinedAt: time.Now()}
	}

	require.NoError(t, f.matchSvc.CreateMatch(ctx, entries))
	assert.Equal(t, 1, f.activeMatchCount(t))

	// A concurrent creation attempt for the same ten players is treated as
	// success and creates nothing.
	require.NoError(t, f.matchSvc.CreateMatch(ctx, entries))
	assert.Equal(t, 1, f.activeMatchCount(t))
}

func TestLeaveQueue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.queueSvc.Join(ctx, "p1", "user-p1", "", ""))
	require.NoError(t, f.queueSvc.Leave(ctx, "p1"))

	entries, err := f.queueSvc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func finishedMatch(t *testing.T, f *fixture, ctx context.Context) domain.Match {
	t.Helper()

	players := make([]domain.MatchPlayer, 10)
	var teamA, teamB []string
	for i := range players {
		id := fmt.Sprintf("p%d", i+1)
		u, err := f.userRepo.Ensure(ctx, id, "user-"+id, false)
		require.NoError(t, err)
		players[i] = domain.MatchPlayer{UserID: u.ID, Username: u.Username, Points: u.Points}
		if i < 5 {
			teamA = append(teamA, id)
		} else {
			teamB = append(teamB, id)
		}
	}

	m, err := engine.NewMatch("match-1", players, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.matchSvc.matchRepo.CreateFromQueue(ctx, m))

	m.Phase = domain.PhaseLive
	m.CaptainA, m.CaptainB = "p1", "p6"
	m.TeamA, m.TeamB = teamA, teamB
	m.SelectedMap = "Ascent"
	m.StartTime = time.Now().Add(-30 * time.Minute)
	m.PlayerPointsChanges = rating.ComputeChanges(m, 13, 7)
	m.Winner = domain.TeamA
	m.ResultReported = true
	m.Phase = domain.PhaseFinished
	return m
}

func TestMatchFinalized_AppliesRatingsAndHistoryOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m := finishedMatch(t, f, ctx)
	f.matchSvc.MatchFinalized(ctx, m, 13, 7)

	// Winner points went up by base + first-win streak bonus.
	winner, err := f.userRepo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1021.5, winner.Points)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 0, winner.Losses)
	assert.Equal(t, 1, winner.Winstreak)
	assert.Equal(t, 21.5, winner.LastPointsChange)

	loser, err := f.userRepo.Get(ctx, "p6")
	require.NoError(t, err)
	assert.Equal(t, 980.0, loser.Points)
	assert.Equal(t, 0, loser.Wins)
	assert.Equal(t, 1, loser.Losses)
	assert.Equal(t, 0, loser.Winstreak)

	record, err := f.matchSvc.historyRepo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ascent", record.Map)
	assert.Equal(t, domain.TeamA, record.Winner)
	assert.Equal(t, 13, record.ScoreA)
	assert.Equal(t, 7, record.ScoreB)
	assert.Len(t, record.Players, 10)

	// A second finalize observes the persisted latch and does nothing.
	f.matchSvc.MatchFinalized(ctx, m, 13, 7)

	winner, err = f.userRepo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1021.5, winner.Points)
	assert.Equal(t, 1, winner.Wins)
}

func TestFinishedRoster_CanQueueAgain(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m := finishedMatch(t, f, ctx)
	f.matchSvc.MatchFinalized(ctx, m, 13, 7)
	require.Equal(t, 1, f.activeMatchCount(t))

	// The same ten players queue up for a rematch.
	for i := 1; i <= 10; i++ {
		id := fmt.Sprintf("p%d", i)
		require.NoError(t, f.queueSvc.Join(ctx, id, "user-"+id, "", ""))
	}

	// A second match opens; the finished row does not hold the roster hostage.
	assert.Equal(t, 2, f.activeMatchCount(t))
	entries, err := f.queueSvc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRestore_ReopensOpenMatches(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	players := make([]domain.MatchPlayer, 10)
	for i := range players {
		id := fmt.Sprintf("q%d", i+1)
		players[i] = domain.MatchPlayer{UserID: id, Username: "user-" + id, Points: 1000}
	}
	open, err := engine.NewMatch("m-open", players, time.Now())
	require.NoError(t, err)
	open.Phase = domain.PhaseLive
	open.StartTime = time.Now()
	require.NoError(t, f.matchSvc.matchRepo.CreateFromQueue(ctx, open))

	done := finishedMatch(t, f, ctx)
	won, err := f.matchSvc.matchRepo.Finalize(ctx, done)
	require.NoError(t, err)
	require.True(t, won)

	// Simulates a fresh process: the hub is empty, the rows are not.
	require.NoError(t, f.matchSvc.Restore(ctx))

	room := f.hub.Get("m-open")
	require.NotNil(t, room)
	state, err := room.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseLive, state.Phase)

	// The restored room answers commands; the clock gate is still enforced.
	err = f.matchSvc.Report(ctx, "m-open", "q1", 13, 7)
	assert.ErrorIs(t, err, engine.ErrReportTooEarly)

	// Finalized matches stay closed.
	assert.Nil(t, f.hub.Get(done.ID))
}

func TestCommands_AfterFinalizeReturnAlreadyFinalized(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m := finishedMatch(t, f, ctx)
	f.matchSvc.MatchFinalized(ctx, m, 13, 7)

	// The room is gone but the match still exists; late commands get the
	// taxonomy error, not a 404.
	assert.ErrorIs(t, f.matchSvc.Report(ctx, m.ID, "p1", 13, 7), engine.ErrAlreadyFinalized)
	assert.ErrorIs(t, f.matchSvc.Accept(ctx, m.ID, "p1"), engine.ErrAlreadyFinalized)

	assert.ErrorIs(t, f.matchSvc.Report(ctx, "no-such-match", "p1", 13, 7), ErrMatchNotFound)
}

func TestMatchCancelled_FullRequeueStartsNextMatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	players := make([]domain.MatchPlayer, 10)
	ready := make([]string, 10)
	for i := range players {
		id := fmt.Sprintf("r%d", i+1)
		_, err := f.userRepo.Ensure(ctx, id, "user-"+id, false)
		require.NoError(t, err)
		players[i] = domain.MatchPlayer{UserID: id, Username: "user-" + id, Points: 1000}
		ready[i] = id
	}

	m, err := engine.NewMatch("match-expired", players, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.matchSvc.matchRepo.CreateFromQueue(ctx, m))

	// Everyone accepted, but the match is cancelled anyway (say, a crash of
	// the ready flow): the requeue refills the queue to the trigger size.
	m.ReadyPlayers = ready
	f.matchSvc.MatchCancelled(ctx, m)

	require.Equal(t, 1, f.activeMatchCount(t))
	var newID string
	require.NoError(t, f.sqlDB.QueryRow("SELECT id FROM active_matches").Scan(&newID))
	assert.NotEqual(t, "match-expired", newID)
	require.NotNil(t, f.hub.Get(newID))

	entries, err := f.queueSvc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMatchCancelled_RequeuesReadyHumans(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	players := make([]domain.MatchPlayer, 10)
	for i := range players {
		id := fmt.Sprintf("p%d", i+1)
		_, err := f.userRepo.Ensure(ctx, id, "user-"+id, false)
		require.NoError(t, err)
		players[i] = domain.MatchPlayer{UserID: id, Username: "user-" + id, Points: 1000}
	}
	players[9].IsBot = true

	m, err := engine.NewMatch("match-timeout", players, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.matchSvc.matchRepo.CreateFromQueue(ctx, m))

	// Three humans accepted before the deadline; the bot auto-accepted.
	m.ReadyPlayers = []string{"p1", "p2", "p3", "p10"}

	f.matchSvc.MatchCancelled(ctx, m)

	assert.Equal(t, 0, f.activeMatchCount(t))

	entries, err := f.queueSvc.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	ids := []string{entries[0].UserID, entries[1].UserID, entries[2].UserID}
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, ids)

	// Cancellation leaves no rating or history side effects.
	u, err := f.userRepo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, u.Points)
	assert.Equal(t, 0, u.Wins)
	_, err = f.matchSvc.historyRepo.Get(ctx, "match-timeout")
	assert.Error(t, err)
}
