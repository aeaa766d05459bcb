package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafkax "github.com/ariefcatur/go-store-core/internal/kafka"
	"github.com/ariefcatur/go-store-core/internal/logging"
	"github.com/ariefcatur/go-store-core/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TopicEnrichmentRequested = "enrichment.requested"
	TopicEnrichmentCompleted = "enrichment.completed"

	EventEnrichmentCompleted = "EnrichmentCompleted"
)

type CompletedPayload struct {
	Kind     Kind   `json:"kind"`
	RecordID string `json:"record_id"`
	Result
}

// Deduper remembers processed event ids; implemented by redisx.Dedup.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type Receiver interface {
	ReceiveEnrichment(ctx context.Context, id string, res Result) (Record, bool, error)
}

// CompletionHandler feeds enrichment.completed events into the receivers.
// The state check in ReceiveEnrichment is what makes redelivery safe; the
// dedup only saves round trips.
type CompletionHandler struct {
	Receivers map[Kind]Receiver
	Dedup     Deduper
	Log       *zap.Logger
}

func (h *CompletionHandler) Handle(ctx context.Context, m kafkago.Message) error {
	ctx = observability.ExtractKafka(ctx, m.Headers)
	log := logging.OrNop(h.Log)

	var env kafkax.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// pesan rusak tidak akan pernah sukses; commit saja
		log.Error("invalid enrichment envelope", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != EventEnrichmentCompleted {
		return nil
	}

	if h.Dedup != nil {
		if seen, err := h.Dedup.Seen(ctx, env.EventID); err == nil && seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[CompletedPayload](env.Payload)
	if err != nil {
		log.Error("invalid enrichment payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	r, ok := h.Receivers[p.Kind]
	if !ok {
		log.Warn("no receiver for kind", zap.String("kind", string(p.Kind)), zap.String("event_id", env.EventID))
		return nil
	}

	_, _, err = r.ReceiveEnrichment(ctx, p.RecordID, p.Result)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidResult):
		log.Warn("enrichment completion dropped", zap.String("record_id", p.RecordID), zap.Error(err))
	case err != nil:
		return fmt.Errorf("receive %s %s: %w", p.Kind, p.RecordID, err)
	}

	if h.Dedup != nil {
		if err := h.Dedup.Mark(ctx, env.EventID); err != nil {
			log.Warn("dedup mark failed", zap.String("event_id", env.EventID), zap.Error(err))
		}
	}
	return nil
}
