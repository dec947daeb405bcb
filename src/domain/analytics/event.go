package analytics

import (
	"errors"
	"time"

	"github.com/bryanwahyu/clickrank/src/domain/shared"
)

// EventType defines the category of analytics event.
type EventType string

const (
	EventTypeTrack EventType = "track"
)

// EventName defines specific event names.
type EventName string

const (
	EventNameScoreSubmitted EventName = "score_submitted"
)

// Context represents metadata attached to every event.
type Context struct {
	Direct  bool
	Library LibraryInfo
}

// LibraryInfo captures client library information.
type LibraryInfo struct {
	Name    string
	Version string
}

// Event is a single analytics record about a player action.
type Event struct {
	Type       EventType
	UserID     shared.Nickname
	Name       EventName
	Context    Context
	Properties map[string]any
	Timestamp  time.Time
}

// NewTrackEvent creates a tracking event.
func NewTrackEvent(userID shared.Nickname, name EventName, ctx Context, timestamp time.Time) (*Event, error) {
	if err := userID.Validate(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("event name cannot be empty")
	}
	if timestamp.IsZero() {
		return nil, errors.New("timestamp cannot be zero")
	}
	return &Event{
		Type:       EventTypeTrack,
		UserID:     userID,
		Name:       name,
		Context:    ctx,
		Properties: map[string]any{},
		Timestamp:  timestamp,
	}, nil
}

// WithProperty attaches a key/value pair sent along with the event.
func (e *Event) WithProperty(key string, value any) *Event {
	if e.Properties == nil {
		e.Properties = map[string]any{}
	}
	e.Properties[key] = value
	return e
}

// Validate ensures the event is well-formed.
func (e *Event) Validate() error {
	if e.Type == "" {
		return errors.New("event type is required")
	}
	if err := e.UserID.Validate(); err != nil {
		return err
	}
	if e.Type == EventTypeTrack && e.Name == "" {
		return errors.New("track events require a name")
	}
	if e.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}
