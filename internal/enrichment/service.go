package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-store-core/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Store persists the enrichment state inside the enriched record itself.
// Every write is a conditional update on the current state.
type Store interface {
	GetEnrichment(ctx context.Context, id string) (Record, error)
	// MarkRequested moves NONE -> REQUESTED, or refreshes a REQUESTED record
	// whose requested_at is not after staleBefore. false = lost the race.
	MarkRequested(ctx context.Context, id string, at, staleBefore time.Time) (bool, error)
	// RevertRequested moves REQUESTED -> NONE iff requested_at == at.
	RevertRequested(ctx context.Context, id string, at time.Time) error
	// CompleteEnrichment writes the result and moves REQUESTED -> ENRICHED
	// in one statement. false = record was not REQUESTED.
	CompleteEnrichment(ctx context.Context, id string, res Result) (bool, error)
	// ExpireRequested reverts every REQUESTED record not after staleBefore.
	ExpireRequested(ctx context.Context, staleBefore time.Time) (int64, error)
}

type Job struct {
	Kind        Kind      `json:"kind"`
	RecordID    string    `json:"record_id"`
	Content     string    `json:"content"`
	CallbackURL string    `json:"callback_url"`
	RequestedAt time.Time `json:"requested_at"`
}

// Analyzer starts an external job; it must return once the job is accepted,
// not when it finishes.
type Analyzer interface {
	Submit(ctx context.Context, job Job) error
}

const (
	DefaultTimeout = 15 * time.Minute
	submitTimeout  = 10 * time.Second
)

var tracer = otel.Tracer("github.com/ariefcatur/go-store-core/internal/enrichment")

type Service struct {
	Kind     Kind
	Store    Store
	Analyzer Analyzer
	Validate Validator

	// Timeout after which a REQUESTED record may be requested again.
	Timeout     time.Duration
	CallbackURL func(id string) string
	Log         *zap.Logger
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	var t time.Time
	if s.Now != nil {
		t = s.Now()
	} else {
		t = time.Now()
	}
	// presisi timestamptz = mikrodetik; RevertRequested membandingkan persis
	return t.UTC().Truncate(time.Microsecond)
}

func (s *Service) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.Store.GetEnrichment(ctx, id)
}

// RequestEnrichment starts an analysis for the record. An ENRICHED record is
// returned as-is without contacting the analyzer.
func (s *Service) RequestEnrichment(ctx context.Context, id string) (Record, error) {
	ctx, span := tracer.Start(ctx, "enrichment.request")
	defer span.End()
	span.SetAttributes(attribute.String("enrichment.kind", string(s.Kind)), attribute.String("record.id", id))
	log := logging.OrNop(s.Log).With(zap.String("kind", string(s.Kind)), zap.String("record_id", id))

	rec, err := s.Store.GetEnrichment(ctx, id)
	if err != nil {
		return Record{}, err
	}
	now := s.now()
	switch {
	case rec.State == StateEnriched:
		return rec, nil
	case rec.State == StateRequested && !rec.Stale(now, s.timeout()):
		return rec, ErrInFlight
	}

	// flag durable dulu, baru panggil analyzer
	ok, err := s.Store.MarkRequested(ctx, id, now, now.Add(-s.timeout()))
	if err != nil {
		return Record{}, fmt.Errorf("mark requested: %w", err)
	}
	if !ok {
		latest, err := s.Store.GetEnrichment(ctx, id)
		if err != nil {
			return Record{}, err
		}
		if latest.State == StateEnriched {
			return latest, nil
		}
		return latest, ErrInFlight
	}
	if rec.State == StateRequested {
		log.Info("retrying stale enrichment request", zap.Timep("previous_requested_at", rec.RequestedAt))
	}

	job := Job{Kind: s.Kind, RecordID: id, Content: rec.Content, RequestedAt: now}
	if s.CallbackURL != nil {
		job.CallbackURL = s.CallbackURL(id)
	}
	submitCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	err = s.Analyzer.Submit(submitCtx, job)
	cancel()
	if err != nil {
		revertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if rerr := s.Store.RevertRequested(revertCtx, id, now); rerr != nil {
			// tetap kelihatan REQUESTED; sweeper akan membereskan setelah timeout
			log.Error("revert after failed submit", zap.Error(rerr))
		}
		log.Warn("analyzer submit failed", zap.Error(err))
		return Record{}, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}

	rec.State = StateRequested
	rec.RequestedAt = &now
	log.Info("enrichment requested")
	return rec, nil
}

// ReceiveEnrichment applies a completion. applied=false means the record was
// not waiting for one (duplicate, late or unsolicited) and nothing changed.
func (s *Service) ReceiveEnrichment(ctx context.Context, id string, res Result) (rec Record, applied bool, err error) {
	ctx, span := tracer.Start(ctx, "enrichment.receive")
	defer span.End()
	span.SetAttributes(attribute.String("enrichment.kind", string(s.Kind)), attribute.String("record.id", id))
	log := logging.OrNop(s.Log).With(zap.String("kind", string(s.Kind)), zap.String("record_id", id))

	if s.Validate != nil {
		if err := s.Validate(res); err != nil {
			return Record{}, false, err
		}
	}

	applied, err = s.Store.CompleteEnrichment(ctx, id, res)
	if err != nil {
		return Record{}, false, fmt.Errorf("complete enrichment: %w", err)
	}
	rec, err = s.Store.GetEnrichment(ctx, id)
	if err != nil {
		return Record{}, false, err
	}
	span.SetAttributes(attribute.Bool("enrichment.applied", applied))
	if applied {
		log.Info("enrichment applied")
	} else {
		log.Info("enrichment completion discarded", zap.String("state", string(rec.State)))
	}
	return rec, applied, nil
}

// ExpireStale reverts timed-out requests so they show as retryable.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.Store.ExpireRequested(ctx, s.now().Add(-s.timeout()))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.OrNop(s.Log).Warn("expired stale enrichment requests", zap.String("kind", string(s.Kind)), zap.Int64("count", n))
	}
	return n, nil
}

// Sweep runs ExpireStale every interval until ctx is done.
func (s *Service) Sweep(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.ExpireStale(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.OrNop(s.Log).Error("sweep failed", zap.String("kind", string(s.Kind)), zap.Error(err))
			}
		}
	}
}
