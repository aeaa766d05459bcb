package orders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	kafkax "github.com/ariefcatur/go-store-core/internal/kafka"
	"github.com/ariefcatur/go-store-core/internal/logging"
	"github.com/ariefcatur/go-store-core/internal/observability"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// KafkaNotifier publishes envelopes on order.created / order.status.changed.
type KafkaNotifier struct {
	Created       Publisher
	StatusChanged Publisher // opsional
	Service       string
}

func (n *KafkaNotifier) OrderCreated(ctx context.Context, o Order) error {
	return n.publish(ctx, n.Created, EventOrderCreated, o.ID, CreatedPayload(o))
}

func (n *KafkaNotifier) OrderStatusChanged(ctx context.Context, orderID string, from, to Status) error {
	if n.StatusChanged == nil {
		return nil
	}
	return n.publish(ctx, n.StatusChanged, EventOrderStatusChanged, orderID,
		OrderStatusChangedPayload{OrderID: orderID, From: from, To: to})
}

func (n *KafkaNotifier) publish(ctx context.Context, p Publisher, eventType, orderID string, payload any) error {
	ev := kafkax.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev.TraceID = sc.TraceID().String()
	}
	headers := observability.InjectKafka(ctx, []kafkago.Header{
		{Key: "x-event-type", Value: []byte(eventType)},
		{Key: "x-event-version", Value: []byte("1")},
	})
	return p.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev), headers...)
}

var ErrWebhookQueueFull = errors.New("webhook queue full")

const webhookTimeout = 5 * time.Second

type webhookJob struct {
	// ctx carries the caller's trace, detached from its cancellation.
	ctx     context.Context
	payload OrderCreatedPayload
}

// WebhookNotifier POSTs the order-created payload to an automation endpoint
// from a background goroutine. Responses are not awaited by callers.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    *zap.Logger
	inbox  chan webhookJob
	done   chan struct{}
	once   sync.Once
}

func NewWebhookNotifier(url string, buf int, log *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		log:    logging.OrNop(log),
		inbox:  make(chan webhookJob, buf),
		done:   make(chan struct{}),
	}
}

func (n *WebhookNotifier) Start() {
	go func() {
		defer close(n.done)
		for j := range n.inbox {
			if err := n.post(j.ctx, j.payload); err != nil {
				n.log.Warn("order webhook failed", zap.String("order_id", j.payload.OrderID), zap.Error(err))
			}
		}
	}()
}

func (n *WebhookNotifier) post(ctx context.Context, p OrderCreatedPayload) error {
	ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(kafkax.MustMarshal(p)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

func (n *WebhookNotifier) OrderCreated(ctx context.Context, o Order) error {
	p := CreatedPayload(o)
	p.Items = nil
	select {
	case n.inbox <- webhookJob{ctx: context.WithoutCancel(ctx), payload: p}:
		return nil
	default:
		return ErrWebhookQueueFull
	}
}

func (n *WebhookNotifier) OrderStatusChanged(context.Context, string, Status, Status) error {
	return nil
}

// Close stops accepting events and waits for the queue to drain.
func (n *WebhookNotifier) Close() {
	n.once.Do(func() { close(n.inbox) })
	<-n.done
}

// MultiNotifier fans out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) OrderCreated(ctx context.Context, o Order) error {
	var errs error
	for _, n := range m {
		errs = errors.Join(errs, n.OrderCreated(ctx, o))
	}
	return errs
}

func (m MultiNotifier) OrderStatusChanged(ctx context.Context, orderID string, from, to Status) error {
	var errs error
	for _, n := range m {
		errs = errors.Join(errs, n.OrderStatusChanged(ctx, orderID, from, to))
	}
	return errs
}
