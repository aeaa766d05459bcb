package kafka

import (
	"encoding/json"
	"time"
)

// Envelope v1, dipakai semua event di bus.
type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // OrderCreated, EnrichmentCompleted, ...
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "store-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id / record id
	Payload       json.RawMessage `json:"payload"`
}
