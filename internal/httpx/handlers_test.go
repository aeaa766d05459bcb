package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-store-core/internal/enrichment"
	"github.com/ariefcatur/go-store-core/internal/invoices"
	"github.com/ariefcatur/go-store-core/internal/orders"
	"github.com/ariefcatur/go-store-core/internal/recruiting"
	"github.com/ariefcatur/go-store-core/internal/redisx"
	"github.com/ariefcatur/go-store-core/internal/support"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	placeErr error
	order    orders.Order
	gets     int
}

func (f *fakeOrders) PlaceOrder(_ context.Context, customerID string, items []orders.LineInput) (orders.Order, error) {
	if f.placeErr != nil {
		return orders.Order{}, f.placeErr
	}
	f.order.CustomerID = customerID
	return f.order, nil
}

func (f *fakeOrders) GetOrder(_ context.Context, id string) (orders.Order, error) {
	f.gets++
	if id != f.order.ID {
		return orders.Order{}, orders.ErrNotFound
	}
	return f.order, nil
}

func (f *fakeOrders) ChangeStatus(_ context.Context, id string, to orders.Status) (orders.Order, error) {
	if !orders.CanTransition(f.order.Status, to) {
		return orders.Order{}, orders.ErrInvalidTransition
	}
	f.order.Status = to
	f.order.UpdatedAt = f.order.UpdatedAt.Add(time.Minute)
	return f.order, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	rec := do(t, NewRouter(nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCreateOrderErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		body string
		code int
	}{
		{"invalid json", nil, `{`, http.StatusBadRequest},
		{"missing customer", nil, `{"items":[{"product_id":"A","qty":1}]}`, http.StatusBadRequest},
		{"empty cart", orders.ErrEmptyCart, `{"customer_id":"c1","items":[]}`, http.StatusBadRequest},
		{"unknown product", &orders.ProductNotFoundError{ID: "ZZ"}, `{"customer_id":"c1","items":[{"product_id":"ZZ","qty":1}]}`, http.StatusUnprocessableEntity},
		{"short stock", &orders.InsufficientStockError{ID: "B", Name: "Basket", Requested: 2, Available: 1}, `{"customer_id":"c1","items":[{"product_id":"B","qty":2}]}`, http.StatusConflict},
		{"storage down", orders.ErrPersistence, `{"customer_id":"c1","items":[{"product_id":"A","qty":1}]}`, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRouter(nil, &OrdersHandler{Orders: &fakeOrders{placeErr: tc.err}})
			rec := do(t, r, http.MethodPost, "/orders", tc.body)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestCreateOrderInsufficientStockDetails(t *testing.T) {
	f := &fakeOrders{placeErr: &orders.InsufficientStockError{ID: "B", Name: "Basket", Requested: 2, Available: 1}}
	rec := do(t, NewRouter(nil, &OrdersHandler{Orders: f}), http.MethodPost, "/orders",
		`{"customer_id":"c1","items":[{"product_id":"B","qty":2}]}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "insufficient stock", body.Error)
	details := body.Details.(map[string]any)
	assert.Equal(t, "B", details["product_id"])
	assert.Equal(t, "Basket", details["product_name"])
}

func TestOrderStatusCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := &redisx.StatusCache{RDB: redisx.New(mr.Addr())}
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	f := &fakeOrders{order: orders.Order{ID: "o1", Status: orders.StatusPending, UpdatedAt: now}}
	r := NewRouter(nil, &OrdersHandler{Orders: f, Cache: cache})

	rec := do(t, r, http.MethodPost, "/orders", `{"customer_id":"c1","items":[{"product_id":"A","qty":1}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, mr.Exists("order_status:o1"))

	rec = do(t, r, http.MethodGet, "/orders/o1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PENDING", decode[redisx.CachedStatus](t, rec).Status)
	assert.Equal(t, 0, f.gets)

	rec = do(t, r, http.MethodPatch, "/orders/o1/status", `{"status":"confirmed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// a read-through that loaded the row before the update lands late
	require.NoError(t, cache.Set(context.Background(), "o1", "PENDING", now))

	rec = do(t, r, http.MethodGet, "/orders/o1/status", "")
	assert.Equal(t, "CONFIRMED", decode[redisx.CachedStatus](t, rec).Status)
	assert.Equal(t, 0, f.gets)

	rec = do(t, r, http.MethodPatch, "/orders/o1/status", `{"status":"DELIVERED"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = do(t, r, http.MethodPatch, "/orders/o1/status", `{"status":"LOST"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, r, http.MethodGet, "/orders/o2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeInvoices struct {
	inv   invoices.Invoice
	calls int
}

func (f *fakeInvoices) GenerateInvoice(_ context.Context, orderID string) (invoices.Invoice, bool, error) {
	if orderID == "missing" {
		return invoices.Invoice{}, false, invoices.ErrOrderNotFound
	}
	f.calls++
	return f.inv, f.calls > 1, nil
}

func (f *fakeInvoices) Get(_ context.Context, id string) (invoices.Invoice, error) {
	return f.inv, nil
}

func (f *fakeInvoices) MarkPaid(_ context.Context, id string) (invoices.Invoice, error) {
	if f.inv.Status != invoices.StatusPending {
		return invoices.Invoice{}, invoices.ErrInvalidTransition
	}
	f.inv.Status = invoices.StatusPaid
	return f.inv, nil
}

func (f *fakeInvoices) Cancel(_ context.Context, id string) (invoices.Invoice, error) {
	return invoices.Invoice{}, invoices.ErrInvalidTransition
}

func TestInvoiceEndpoints(t *testing.T) {
	f := &fakeInvoices{inv: invoices.Invoice{ID: "i1", OrderID: "o1", Status: invoices.StatusPending}}
	r := NewRouter(nil, &InvoicesHandler{Invoices: f})

	assert.Equal(t, http.StatusCreated, do(t, r, http.MethodPost, "/orders/o1/invoice", "").Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/orders/o1/invoice", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/orders/missing/invoice", "").Code)

	rec := do(t, r, http.MethodPost, "/invoices/i1/pay", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, invoices.StatusPaid, decode[invoices.Invoice](t, rec).Status)
	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodPost, "/invoices/i1/pay", "").Code)
	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodPost, "/invoices/i1/cancel", "").Code)
}

type fakeEnrichment struct {
	requestErr error
	state      enrichment.State
	applied    bool
	receiveErr error
}

func (f *fakeEnrichment) RequestEnrichment(_ context.Context, id string) (enrichment.Record, error) {
	if f.requestErr != nil {
		return enrichment.Record{}, f.requestErr
	}
	return enrichment.Record{ID: id, State: f.state}, nil
}

func (f *fakeEnrichment) ReceiveEnrichment(_ context.Context, id string, res enrichment.Result) (enrichment.Record, bool, error) {
	if f.receiveErr != nil {
		return enrichment.Record{}, false, f.receiveErr
	}
	return enrichment.Record{ID: id, State: enrichment.StateEnriched, Result: &res}, f.applied, nil
}

type fakeTickets struct{ t support.Ticket }

func (f *fakeTickets) Open(_ context.Context, in support.NewTicket) (support.Ticket, error) {
	return f.t, nil
}

func (f *fakeTickets) Get(_ context.Context, id string) (support.Ticket, error) {
	if id != f.t.ID {
		return support.Ticket{}, support.ErrNotFound
	}
	return f.t, nil
}

func (f *fakeTickets) ChangeStatus(_ context.Context, id string, to support.Status) (support.Ticket, error) {
	return support.Ticket{}, support.ErrInvalidTransition
}

func TestEnrichmentRequestAndCallback(t *testing.T) {
	cases := []struct {
		name string
		svc  *fakeEnrichment
		code int
	}{
		{"started", &fakeEnrichment{state: enrichment.StateRequested}, http.StatusAccepted},
		{"already enriched", &fakeEnrichment{state: enrichment.StateEnriched}, http.StatusOK},
		{"in flight", &fakeEnrichment{requestErr: enrichment.ErrInFlight}, http.StatusConflict},
		{"analyzer down", &fakeEnrichment{requestErr: enrichment.ErrStartFailed}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRouter(nil, &TicketsHandler{Tickets: &fakeTickets{}, Enrichment: tc.svc})
			assert.Equal(t, tc.code, do(t, r, http.MethodPost, "/tickets/t1/enrichment", "").Code)
		})
	}

	r := NewRouter(nil, &TicketsHandler{Tickets: &fakeTickets{}, Enrichment: &fakeEnrichment{applied: true}})
	rec := do(t, r, http.MethodPost, "/callbacks/tickets/t1", `{"suggestion":"reboot"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[CompletionResp](t, rec).Applied)

	r = NewRouter(nil, &TicketsHandler{Tickets: &fakeTickets{}, Enrichment: &fakeEnrichment{applied: false}})
	rec = do(t, r, http.MethodPost, "/callbacks/tickets/t1", `{"suggestion":"reboot"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.False(t, decode[CompletionResp](t, rec).Applied)

	r = NewRouter(nil, &TicketsHandler{Tickets: &fakeTickets{}, Enrichment: &fakeEnrichment{receiveErr: enrichment.ErrInvalidResult}})
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, r, http.MethodPost, "/callbacks/tickets/t1", `{}`).Code)
}

func TestTicketViewShowsRetryable(t *testing.T) {
	requested := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	tk := support.Ticket{ID: "t1", Status: support.StatusOpen, EnrichmentState: enrichment.StateRequested, EnrichmentRequestedAt: &requested}
	now := requested.Add(5 * time.Minute)
	h := &TicketsHandler{Tickets: &fakeTickets{t: tk}, Enrichment: &fakeEnrichment{}, Timeout: 15 * time.Minute, Now: func() time.Time { return now }}
	r := NewRouter(nil, h)

	rec := do(t, r, http.MethodGet, "/tickets/t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[map[string]any](t, rec)["enrichment_retryable"].(bool))

	now = requested.Add(16 * time.Minute)
	rec = do(t, r, http.MethodGet, "/tickets/t1", "")
	body := decode[map[string]any](t, rec)
	assert.True(t, body["enrichment_retryable"].(bool))
	assert.Equal(t, "ENRICHMENT_REQUESTED", body["enrichment_state"])

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/tickets/nope", "").Code)
	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodPatch, "/tickets/t1/status", `{"status":"CLOSED"}`).Code)
}

type fakeApplications struct{ changed int }

func (f *fakeApplications) Submit(_ context.Context, in recruiting.NewApplication) (recruiting.Application, error) {
	return recruiting.Application{}, nil
}

func (f *fakeApplications) Get(_ context.Context, id string) (recruiting.Application, error) {
	return recruiting.Application{}, recruiting.ErrNotFound
}

func (f *fakeApplications) ChangeStatus(_ context.Context, id string, to recruiting.Status) (recruiting.Application, error) {
	f.changed++
	return recruiting.Application{}, recruiting.ErrInvalidTransition
}

func TestUnknownStatusIsBadRequest(t *testing.T) {
	tickets := NewRouter(nil, &TicketsHandler{Tickets: &fakeTickets{}, Enrichment: &fakeEnrichment{}})
	apps := &fakeApplications{}
	applications := NewRouter(nil, &ApplicationsHandler{Applications: apps, Enrichment: &fakeEnrichment{}})

	for _, body := range []string{`{"status":"REOPENED"}`, `{"status":""}`} {
		assert.Equal(t, http.StatusBadRequest, do(t, tickets, http.MethodPatch, "/tickets/t1/status", body).Code, body)
		assert.Equal(t, http.StatusBadRequest, do(t, applications, http.MethodPatch, "/applications/a1/status", body).Code, body)
	}
	assert.Zero(t, apps.changed)

	// known but not allowed from the current state stays a conflict
	assert.Equal(t, http.StatusConflict, do(t, applications, http.MethodPatch, "/applications/a1/status", `{"status":"hired"}`).Code)
}
