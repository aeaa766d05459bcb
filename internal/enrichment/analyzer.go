package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	kafkax "github.com/ariefcatur/go-store-core/internal/kafka"
	"github.com/ariefcatur/go-store-core/internal/observability"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPAnalyzer posts the job to an automation webhook which answers as soon
// as the job is queued; the result comes back on CallbackURL.
type HTTPAnalyzer struct {
	URL    string
	Client *http.Client
}

func NewHTTPAnalyzer(url string) *HTTPAnalyzer {
	return &HTTPAnalyzer{URL: url, Client: &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}}
}

func (a *HTTPAnalyzer) Submit(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("analyzer status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
	}
	return nil
}

const EventEnrichmentRequested = "EnrichmentRequested"

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// KafkaAnalyzer hands the job to analyzers consuming enrichment.requested.
// Only enqueue failures are visible here.
type KafkaAnalyzer struct {
	Producer Publisher
	Service  string
}

func (a *KafkaAnalyzer) Submit(ctx context.Context, job Job) error {
	ev := kafkax.Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventEnrichmentRequested,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      a.Service,
		CorrelationID: job.RecordID,
		Payload:       kafkax.MustMarshal(job),
	}
	headers := observability.InjectKafka(ctx, []kafkago.Header{
		{Key: "x-event-type", Value: []byte(EventEnrichmentRequested)},
		{Key: "x-event-version", Value: []byte("1")},
	})
	return a.Producer.Publish([]byte(job.RecordID), kafkax.MustMarshal(ev), headers...)
}
