package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Aggregate names the entity an event is about.
type Aggregate struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Event is the envelope written to every cart topic. All events of one cart
// session carry its SessionID and are keyed by it, so a promo_applied event
// and the order_placed event that follows land on the same partition in
// order.
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"event_type"`
	Version       int             `json:"version"`
	Aggregate     Aggregate       `json:"aggregate"`
	SessionID     string          `json:"session_id"`
	Source        string          `json:"source"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent wraps data in an envelope for sessionID.
func NewEvent(eventType string, agg Aggregate, sessionID, source string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Version:    1,
		Aggregate:  agg,
		SessionID:  sessionID,
		Source:     source,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

// PartitionKey is the session ID, or the aggregate ID for events that are
// not tied to a session.
func (e *Event) PartitionKey() []byte {
	if e.SessionID != "" {
		return []byte(e.SessionID)
	}
	return []byte(e.Aggregate.ID)
}

// Decode unmarshals the payload into target.
func (e *Event) Decode(target any) error {
	return json.Unmarshal(e.Data, target)
}

// DecodeEvent parses an envelope read back from a topic.
func DecodeEvent(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &e, nil
}
