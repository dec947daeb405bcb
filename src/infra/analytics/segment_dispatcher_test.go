package analytics_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/clickrank/src/domain/analytics"
	infra "github.com/bryanwahyu/clickrank/src/infra/analytics"
)

func newEvent(t *testing.T) *analytics.Event {
	t.Helper()
	event, err := analytics.NewTrackEvent("Ana", analytics.EventNameScoreSubmitted, analytics.Context{
		Direct:  true,
		Library: analytics.LibraryInfo{Name: "go", Version: "test"},
	}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return event.WithProperty("score", 12).WithProperty("outcome", "created")
}

func TestSegmentDispatcher_Dispatch(t *testing.T) {
	var got map[string][]map[string]any
	var user string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, _ = r.BasicAuth()
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := infra.NewSegmentDispatcher("write-key", srv.URL)
	require.NoError(t, d.Dispatch(context.Background(), []*analytics.Event{newEvent(t)}))

	assert.Equal(t, "write-key", user)
	require.Len(t, got["batch"], 1)
	sent := got["batch"][0]
	assert.Equal(t, "track", sent["type"])
	assert.Equal(t, "Ana", sent["userId"])
	assert.Equal(t, "score_submitted", sent["event"])
	assert.Equal(t, "2026-03-01T12:00:00Z", sent["timestamp"])
	props, ok := sent["properties"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 12, props["score"])
}

func TestSegmentDispatcher_DispatchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := infra.NewSegmentDispatcher("write-key", srv.URL).Dispatch(context.Background(), []*analytics.Event{newEvent(t)})
	assert.True(t, errors.Is(err, analytics.ErrDispatchFailed), "got %v", err)
}

func TestSegmentDispatcher_InvalidEvent(t *testing.T) {
	d := infra.NewSegmentDispatcher("write-key", "http://127.0.0.1:0")
	err := d.Dispatch(context.Background(), []*analytics.Event{{Type: analytics.EventTypeTrack}})
	assert.True(t, errors.Is(err, analytics.ErrInvalidEvent), "got %v", err)
}

func TestSegmentDispatcher_Empty(t *testing.T) {
	d := infra.NewSegmentDispatcher("write-key", "http://127.0.0.1:0")
	assert.NoError(t, d.Dispatch(context.Background(), nil))
	assert.NoError(t, infra.NoopDispatcher{}.Dispatch(context.Background(), []*analytics.Event{newEvent(t)}))
}
