package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"valorant-hub/internal/constants"
	"valorant-hub/internal/domain"
	"valorant-hub/internal/engine"
	"valorant-hub/internal/hub"
	"valorant-hub/internal/rating"
	"valorant-hub/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

var ErrMatchNotFound = repository.ErrMatchNotFound

// MatchService owns the match lifecycle outside the pure engine: creation
// from a full queue, command routing into the hub rooms, and the side
// effects of cancellation and finalization. It is the hub.Sink.
type MatchService struct {
	hub         *hub.Hub
	matchRepo   *repository.MatchRepository
	historyRepo *repository.HistoryRepository
	userRepo    *repository.UserRepository
	queueRepo   *repository.QueueRepository
	logger      zerolog.Logger

	// onRequeue re-runs the queue-size trigger after cancelled players
	// return to the queue. Registered by the queue service to avoid a
	// construction cycle.
	onRequeue func(ctx context.Context) error
}

func NewMatchService(
	h *hub.Hub,
	matchRepo *repository.MatchRepository,
	historyRepo *repository.HistoryRepository,
	userRepo *repository.UserRepository,
	queueRepo *repository.QueueRepository,
	logger zerolog.Logger,
) *MatchService {
	return &MatchService{
		hub:         h,
		matchRepo:   matchRepo,
		historyRepo: historyRepo,
		userRepo:    userRepo,
		queueRepo:   queueRepo,
		logger:      logger,
	}
}

// CreateMatch builds a READY_CHECK match from ten queue entries, persists it
// atomically with the queue consumption, and opens its room. Losing the
// roster idempotency race to a concurrent creation is success-by-other-means.
func (s *MatchService) CreateMatch(ctx context.Context, entries []domain.QueueEntry) error {
	players := make([]domain.MatchPlayer, 0, len(entries))
	for _, e := range entries {
		u, err := s.userRepo.Get(ctx, e.UserID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", e.UserID).Msg("failed to load queued user")
			return err
		}
		players = append(players, domain.MatchPlayer{
			UserID:    u.ID,
			Username:  u.Username,
			Points:    u.Points,
			Winstreak: u.Winstreak,
			IsBot:     u.IsBot,
		})
	}

	id, err := gonanoid.New()
	if err != nil {
		return err
	}

	m, err := engine.NewMatch(id, players, time.Now())
	if err != nil {
		return err
	}

	if err := s.matchRepo.CreateFromQueue(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicateMatch) {
			s.logger.Info().Str("roster_key", m.RosterKey()).Msg("match already created for roster, skipping")
			return nil
		}
		return err
	}

	s.hub.Create(m, s)
	s.logger.Info().Str("match_id", m.ID).Msg("match created, ready check started")
	return nil
}

// OnRequeue registers the hook run after cancelled players are requeued.
func (s *MatchService) OnRequeue(fn func(ctx context.Context) error) {
	s.onRequeue = fn
}

// Restore re-opens a room for every match whose result latch is unset, so
// in-flight matches survive a restart. A restored ready check whose deadline
// already passed cancels through the room's normal timer path.
func (s *MatchService) Restore(ctx context.Context) error {
	matches, err := s.matchRepo.ListOpen(ctx)
	if err != nil {
		return err
	}
	for _, m := range matches {
		s.hub.Create(m, s)
		s.logger.Info().
			Str("match_id", m.ID).
			Str("phase", string(m.Phase)).
			Msg("restored match room")
	}
	return nil
}

// command returns the open room for a match. A match without a room is
// distinguished from one that never existed: finished matches report
// ErrAlreadyFinalized, a persisted but roomless match reports ErrWrongPhase.
func (s *MatchService) command(ctx context.Context, matchID string) (*hub.Room, error) {
	if room := s.hub.Get(matchID); room != nil {
		return room, nil
	}
	m, err := s.matchRepo.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.ResultReported || m.Phase == domain.PhaseFinished {
		return nil, engine.ErrAlreadyFinalized
	}
	return nil, engine.ErrWrongPhase
}

func (s *MatchService) Accept(ctx context.Context, matchID, playerID string) error {
	room, err := s.command(ctx, matchID)
	if err != nil {
		return err
	}
	return room.Accept(ctx, playerID)
}

func (s *MatchService) DraftPick(ctx context.Context, matchID, captainID, playerID string) error {
	room, err := s.command(ctx, matchID)
	if err != nil {
		return err
	}
	return room.DraftPick(ctx, captainID, playerID)
}

func (s *MatchService) VetoBan(ctx context.Context, matchID, captainID, mapName string) error {
	room, err := s.command(ctx, matchID)
	if err != nil {
		return err
	}
	return room.VetoBan(ctx, captainID, mapName)
}

func (s *MatchService) Report(ctx context.Context, matchID, playerID string, scoreA, scoreB int) error {
	room, err := s.command(ctx, matchID)
	if err != nil {
		return err
	}
	return room.Report(ctx, playerID, scoreA, scoreB)
}

// ForceReportGate backdates a live match's clock so reports are accepted
// immediately. Ops/debug tooling only.
func (s *MatchService) ForceReportGate(ctx context.Context, matchID string) error {
	room, err := s.command(ctx, matchID)
	if err != nil {
		return err
	}
	return room.ForceReportGate(ctx, constants.ReportGate)
}

// Get returns the live aggregate from the room when one is open, otherwise
// the persisted snapshot (finished matches).
func (s *MatchService) Get(ctx context.Context, matchID string) (domain.Match, error) {
	if room := s.hub.Get(matchID); room != nil {
		return room.State(ctx)
	}
	return s.matchRepo.Get(ctx, matchID)
}

func (s *MatchService) Subscribe(matchID, clientID string, outbox chan hub.Snapshot) error {
	room := s.hub.Get(matchID)
	if room == nil {
		return ErrMatchNotFound
	}
	room.Join(clientID, outbox)
	return nil
}

func (s *MatchService) Unsubscribe(matchID, clientID string) {
	if room := s.hub.Get(matchID); room != nil {
		room.Leave(clientID)
	}
}

// MatchUpdated persists the aggregate after every transition. Best-effort:
// the room is authoritative while the match is live, so a failed snapshot
// write is logged and play continues.
func (s *MatchService) MatchUpdated(ctx context.Context, m domain.Match) {
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DatabaseTimeout)
	defer cancel()

	if err := s.matchRepo.SaveSnapshot(dbCtx, m); err != nil {
		s.logger.Error().Err(err).Str("match_id", m.ID).Msg("failed to persist match snapshot")
	}
}

// MatchCancelled handles a ready-check expiry: the match row is deleted and
// the players who did accept are returned to the queue. No rating or history
// side effects.
func (s *MatchService) MatchCancelled(ctx context.Context, m domain.Match) {
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DatabaseTimeout)
	defer cancel()

	if err := s.matchRepo.Delete(dbCtx, m.ID); err != nil {
		s.logger.Error().Err(err).Str("match_id", m.ID).Msg("failed to delete cancelled match")
	}

	now := time.Now()
	for _, id := range m.ReadyPlayers {
		p, ok := m.Player(id)
		if !ok || p.IsBot {
			continue
		}
		if err := s.queueRepo.Join(dbCtx, p.UserID, p.Username, now); err != nil {
			s.logger.Error().Err(err).Str("user_id", p.UserID).Msg("failed to requeue ready player")
		}
	}
	s.logger.Info().Str("match_id", m.ID).Msg("match cancelled, ready players requeued")

	// The requeue is a queue mutation like any other: it may push the queue
	// back over the trigger threshold.
	if s.onRequeue != nil {
		if err := s.onRequeue(dbCtx); err != nil {
			s.logger.Error().Err(err).Str("match_id", m.ID).Msg("queue check after requeue failed")
		}
	}
}

// MatchFinalized runs the finalize pipeline exactly once per match: claim
// the persisted result latch, apply rating changes to every participant,
// then write the immutable history record. History is best-effort and never
// rolls back the result.
func (s *MatchService) MatchFinalized(ctx context.Context, m domain.Match, scoreA, scoreB int) {
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.RequestTimeout)
	defer cancel()

	won, err := s.matchRepo.Finalize(dbCtx, m)
	if err != nil {
		s.logger.Error().Err(err).Str("match_id", m.ID).Msg("failed to claim finalize latch")
		return
	}
	if !won {
		// A concurrent finalize already claimed the latch; the desired end
		// state is reached.
		s.logger.Info().Str("match_id", m.ID).Msg("finalize already claimed, skipping")
		return
	}

	s.applyRatings(dbCtx, m)
	s.writeHistory(dbCtx, m, scoreA, scoreB)
}

func (s *MatchService) applyRatings(ctx context.Context, m domain.Match) {
	teamAWon := m.Winner == domain.TeamA

	g, gCtx := errgroup.WithContext(ctx)
	for _, p := range m.Players {
		p := p
		g.Go(func() error {
			onTeamA := slices.Contains(m.TeamA, p.UserID)
			playerWon := onTeamA == teamAWon

			delta := m.PlayerPointsChanges[p.UserID]
			return s.userRepo.ApplyResult(gCtx, p.UserID, p.Points+delta, playerWon,
				rating.NextStreak(p.Winstreak, playerWon), delta)
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("match_id", m.ID).Msg("failed to apply rating changes")
	}
}

func (s *MatchService) writeHistory(ctx context.Context, m domain.Match, scoreA, scoreB int) {
	record := buildRecord(m, scoreA, scoreB, time.Now())

	backoff := retry.WithMaxRetries(constants.HistoryWriteRetries,
		retry.NewExponential(constants.HistoryWriteBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.historyRepo.Write(ctx, record); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("match_id", m.ID).Msg("failed to write match record")
	}
}

func buildRecord(m domain.Match, scoreA, scoreB int, finishedAt time.Time) domain.MatchRecord {
	record := domain.MatchRecord{
		MatchID:    m.ID,
		Map:        m.SelectedMap,
		CaptainA:   m.CaptainA,
		CaptainB:   m.CaptainB,
		Winner:     m.Winner,
		ScoreA:     scoreA,
		ScoreB:     scoreB,
		StartedAt:  m.StartTime,
		FinishedAt: finishedAt,
	}
	for _, p := range m.Players {
		team := domain.TeamB
		if slices.Contains(m.TeamA, p.UserID) {
			team = domain.TeamA
		}
		after := p.Points + m.PlayerPointsChanges[p.UserID]
		record.Players = append(record.Players, domain.MatchRecordPlayer{
			MatchID:      m.ID,
			UserID:       p.UserID,
			Username:     p.Username,
			Team:         team,
			PointsBefore: p.Points,
			PointsAfter:  after,
		})
	}
	return record
}
