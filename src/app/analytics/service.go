package analytics

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/bryanwahyu/clickrank/src/domain/analytics"
	"github.com/bryanwahyu/clickrank/src/domain/shared"
)

// Service builds player events and hands them to the dispatcher.
type Service struct {
	Dispatcher     analytics.EventDispatcher
	ContextFactory func() analytics.Context
}

// NewService creates a new analytics service.
func NewService(dispatcher analytics.EventDispatcher) *Service {
	return &Service{
		Dispatcher:     dispatcher,
		ContextFactory: defaultContextFactory,
	}
}

// TrackScoreCommand describes one accepted score submission.
type TrackScoreCommand struct {
	Nickname shared.Nickname
	Score    int
	Best     int
	Outcome  string
	At       time.Time
}

// TrackScore dispatches a score_submitted event.
func (s *Service) TrackScore(ctx context.Context, cmd TrackScoreCommand) error {
	event, err := analytics.NewTrackEvent(cmd.Nickname, analytics.EventNameScoreSubmitted, s.ContextFactory(), cmd.At)
	if err != nil {
		return fmt.Errorf("%w: %v", analytics.ErrInvalidEvent, err)
	}
	event.WithProperty("score", cmd.Score).
		WithProperty("best", cmd.Best).
		WithProperty("outcome", cmd.Outcome)

	if err := s.Dispatcher.Dispatch(ctx, []*analytics.Event{event}); err != nil {
		return fmt.Errorf("%w: %v", analytics.ErrDispatchFailed, err)
	}
	return nil
}

func defaultContextFactory() analytics.Context {
	return analytics.Context{
		Direct: true,
		Library: analytics.LibraryInfo{
			Name:    "go",
			Version: runtime.Version(),
		},
	}
}
