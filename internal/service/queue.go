package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"valorant-hub/internal/constants"
	"valorant-hub/internal/domain"
	"valorant-hub/internal/repository"

	"github.com/rs/zerolog"
)

var ErrNoLinkedAccount = errors.New("no linked game account")

// AccountVerifier answers the queue-join precondition: does this user have a
// linked game identity.
type AccountVerifier interface {
	HasLinkedAccount(ctx context.Context, name, tag string) (bool, error)
}

type QueueService struct {
	queueRepo *repository.QueueRepository
	userRepo  *repository.UserRepository
	accounts  AccountVerifier
	matchSvc  *MatchService
	logger    zerolog.Logger
}

func NewQueueService(
	queueRepo *repository.QueueRepository,
	userRepo *repository.UserRepository,
	accounts AccountVerifier,
	matchSvc *MatchService,
	logger zerolog.Logger,
) *QueueService {
	s := &QueueService{
		queueRepo: queueRepo,
		userRepo:  userRepo,
		accounts:  accounts,
		matchSvc:  matchSvc,
		logger:    logger,
	}
	// Requeued players after a cancellation go through the same trigger as a
	// fresh join.
	matchSvc.OnRequeue(s.checkAndCreate)
	return s
}

// Join enqueues a user and fires the match-creation check. Joining while
// already queued is a no-op.
func (s *QueueService) Join(ctx context.Context, userID, username, gameName, gameTag string) error {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	linked, err := s.accounts.HasLinkedAccount(apiCtx, gameName, gameTag)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to verify linked account: %w", err)
	}
	if !linked {
		return ErrNoLinkedAccount
	}

	if _, err := s.userRepo.Ensure(ctx, userID, username, false); err != nil {
		return err
	}
	if err := s.queueRepo.Join(ctx, userID, username, time.Now()); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", userID).Msg("user joined queue")
	return s.checkAndCreate(ctx)
}

func (s *QueueService) Leave(ctx context.Context, userID string) error {
	if err := s.queueRepo.Leave(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("user left queue")
	return nil
}

func (s *QueueService) List(ctx context.Context) ([]domain.QueueEntry, error) {
	return s.queueRepo.List(ctx)
}

// checkAndCreate creates a match if and only if the queue holds at least ten
// entries, consuming exactly the ten earliest-joined. Duplicate concurrent
// checks collapse inside MatchService via the roster idempotency key.
func (s *QueueService) checkAndCreate(ctx context.Context) error {
	entries, err := s.queueRepo.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) < constants.QueueSize {
		return nil
	}
	return s.matchSvc.CreateMatch(ctx, entries[:constants.QueueSize])
}
