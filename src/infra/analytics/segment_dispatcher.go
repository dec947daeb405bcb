package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bryanwahyu/clickrank/src/domain/analytics"
)

const defaultSegmentURL = "https://api.segment.io/v1/batch"

// SegmentDispatcher implements EventDispatcher for Segment.io.
type SegmentDispatcher struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewSegmentDispatcher creates a new Segment dispatcher.
func NewSegmentDispatcher(apiKey, baseURL string) *SegmentDispatcher {
	if baseURL == "" {
		baseURL = defaultSegmentURL
	}
	return &SegmentDispatcher{
		APIKey:  apiKey,
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// WithHTTPClient sets a custom HTTP client.
func (d *SegmentDispatcher) WithHTTPClient(client *http.Client) *SegmentDispatcher {
	d.HTTPClient = client
	return d
}

type segmentEvent struct {
	Type       string         `json:"type"`
	UserID     string         `json:"userId"`
	Event      string         `json:"event,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Context    map[string]any `json:"context"`
	Timestamp  string         `json:"timestamp"`
}

type segmentBatch struct {
	Batch []segmentEvent `json:"batch"`
}

// Dispatch sends events to Segment in a single batch.
func (d *SegmentDispatcher) Dispatch(ctx context.Context, events []*analytics.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := segmentBatch{Batch: make([]segmentEvent, 0, len(events))}
	for _, event := range events {
		if err := event.Validate(); err != nil {
			return fmt.Errorf("%w: %v", analytics.ErrInvalidEvent, err)
		}
		batch.Batch = append(batch.Batch, segmentEvent{
			Type:       string(event.Type),
			UserID:     event.UserID.String(),
			Event:      string(event.Name),
			Properties: event.Properties,
			Context: map[string]any{
				"direct": event.Context.Direct,
				"library": map[string]string{
					"name":    event.Context.Library.Name,
					"version": event.Context.Library.Version,
				},
			},
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(d.APIKey, "")

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", analytics.ErrDispatchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", analytics.ErrDispatchFailed, resp.StatusCode)
	}
	return nil
}

// NoopDispatcher drops every event. Used when no analytics key is configured.
type NoopDispatcher struct{}

func (NoopDispatcher) Dispatch(context.Context, []*analytics.Event) error {
	return nil
}
