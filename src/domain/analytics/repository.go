package analytics

import "context"

// EventDispatcher sends events to external analytics services.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events []*Event) error
}
