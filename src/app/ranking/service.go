package ranking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/clickrank/src/app/analytics"
	domain "github.com/bryanwahyu/clickrank/src/domain/ranking"
	"github.com/bryanwahyu/clickrank/src/domain/shared"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 100
)

type Repository interface {
	domain.Repository
}

// ScoreTracker records accepted submissions for product analytics.
type ScoreTracker interface {
	TrackScore(ctx context.Context, cmd analytics.TrackScoreCommand) error
}

// Service coordinates leaderboard submissions and reads.
type Service struct {
	Repo         Repository
	Events       ScoreTracker
	Logger       *zap.Logger
	Limits       domain.Limits
	DefaultLimit int
	MaxLimit     int
	Clock        func() time.Time

	dispatchTimeout time.Duration
	pending         sync.WaitGroup
}

func NewService(repo Repository, events ScoreTracker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Repo:            repo,
		Events:          events,
		Logger:          logger,
		Limits:          domain.DefaultLimits(),
		DefaultLimit:    DefaultListLimit,
		MaxLimit:        MaxListLimit,
		Clock:           func() time.Time { return time.Now().UTC() },
		dispatchTimeout: 5 * time.Second,
	}
}

type SubmitCommand struct {
	Nickname string
	Score    int
}

type SubmitResult struct {
	Outcome domain.Outcome
	Title   string
}

// Submit validates the command and merges it into the stored best score.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	submission, err := domain.NewSubmission(shared.Nickname(cmd.Nickname), cmd.Score, s.Clock(), s.Limits)
	if err != nil {
		return SubmitResult{}, err
	}

	outcome, err := s.Repo.Submit(ctx, submission)
	if err != nil {
		return SubmitResult{}, storageError(err)
	}

	s.Logger.Debug("score submitted",
		zap.String("nickname", submission.Nickname.String()),
		zap.Int("score", submission.Score),
		zap.Stringer("outcome", outcome.Kind),
		zap.Int("best", outcome.Best()),
	)
	s.track(ctx, submission, outcome)

	return SubmitResult{Outcome: outcome, Title: domain.TitleFor(submission.Score)}, nil
}

// List returns the leaderboard. A zero limit selects the default, larger
// limits are capped. On failure the slice is empty, never partial.
func (s *Service) List(ctx context.Context, limit int) ([]domain.Entry, error) {
	switch {
	case limit < 0:
		return []domain.Entry{}, domain.ErrInvalidLimit
	case limit == 0:
		limit = s.DefaultLimit
	}
	if s.MaxLimit > 0 && limit > s.MaxLimit {
		limit = s.MaxLimit
	}

	entries, err := s.Repo.List(ctx, limit)
	if err != nil {
		return []domain.Entry{}, storageError(err)
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	return entries, nil
}

type RankResult struct {
	Entry    domain.Entry
	Position int
}

// Rank looks up a nickname's entry and its 1-based position on the leaderboard.
func (s *Service) Rank(ctx context.Context, nickname string) (RankResult, error) {
	nick := shared.Nickname(nickname).Normalize()
	if err := nick.Validate(); err != nil {
		return RankResult{}, domain.ErrNicknameRequired
	}

	entry, err := s.Repo.Get(ctx, nick)
	if err != nil {
		return RankResult{}, storageError(err)
	}
	position, err := s.Repo.Position(ctx, entry)
	if err != nil {
		return RankResult{}, storageError(err)
	}
	return RankResult{Entry: entry, Position: position}, nil
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	stats, err := s.Repo.Stats(ctx)
	if err != nil {
		return domain.Stats{}, storageError(err)
	}
	return stats, nil
}

func (s *Service) Ping(ctx context.Context) error {
	return storageError(s.Repo.Ping(ctx))
}

// track dispatches a score event in the background. Dispatch failures are
// logged and never change the submit result.
func (s *Service) track(ctx context.Context, submission domain.Submission, outcome domain.Outcome) {
	if s.Events == nil {
		return
	}
	cmd := analytics.TrackScoreCommand{
		Nickname: submission.Nickname,
		Score:    submission.Score,
		Best:     outcome.Best(),
		Outcome:  outcome.Kind.String(),
		At:       submission.SubmittedAt,
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
		defer cancel()
		if err := s.Events.TrackScore(ctx, cmd); err != nil {
			s.Logger.Warn("failed to track score event", zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight score events are delivered or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// storageError passes classified errors through and marks anything else internal.
func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrStorageUnavailable),
		errors.Is(err, shared.ErrInternal):
		return err
	default:
		return fmt.Errorf("%w: %v", shared.ErrInternal, err)
	}
}
