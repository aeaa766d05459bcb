package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-store-core/internal/enrichment"
	"github.com/ariefcatur/go-store-core/internal/recruiting"
	"github.com/ariefcatur/go-store-core/internal/support"
	"github.com/go-chi/chi/v5"
)

// EnrichmentService is implemented by *enrichment.Service.
type EnrichmentService interface {
	RequestEnrichment(ctx context.Context, id string) (enrichment.Record, error)
	ReceiveEnrichment(ctx context.Context, id string, res enrichment.Result) (enrichment.Record, bool, error)
}

type CompletionResp struct {
	Applied bool              `json:"applied"`
	Record  enrichment.Record `json:"record"`
}

// requestEnrichment answers 202 when a job was started and 200 when the
// record was already enriched.
func requestEnrichment(svc EnrichmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.RequestEnrichment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		code := http.StatusAccepted
		if rec.State == enrichment.StateEnriched {
			code = http.StatusOK
		}
		writeJSON(w, code, rec)
	}
}

// receiveEnrichment is the analyzer callback. A discarded completion is
// still acknowledged (202) so the analyzer stops retrying.
func receiveEnrichment(svc EnrichmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var res enrichment.Result
		if !decodeJSON(w, r, &res) {
			return
		}
		rec, applied, err := svc.ReceiveEnrichment(r.Context(), chi.URLParam(r, "id"), res)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		code := http.StatusOK
		if !applied {
			code = http.StatusAccepted
		}
		writeJSON(w, code, CompletionResp{Applied: applied, Record: rec})
	}
}

type TicketService interface {
	Open(ctx context.Context, in support.NewTicket) (support.Ticket, error)
	Get(ctx context.Context, id string) (support.Ticket, error)
	ChangeStatus(ctx context.Context, id string, to support.Status) (support.Ticket, error)
}

type TicketsHandler struct {
	Tickets    TicketService
	Enrichment EnrichmentService
	// Timeout after which an in-flight enrichment is shown as retryable.
	Timeout time.Duration
	Now     func() time.Time
}

type ticketView struct {
	support.Ticket
	Retryable bool `json:"enrichment_retryable"`
}

func (h *TicketsHandler) Register(r chi.Router) {
	r.Post("/tickets", h.open)
	r.Get("/tickets/{id}", h.get)
	r.Patch("/tickets/{id}/status", h.changeStatus)
	r.Post("/tickets/{id}/enrichment", requestEnrichment(h.Enrichment))
	r.Post("/callbacks/tickets/{id}", receiveEnrichment(h.Enrichment))
}

func (h *TicketsHandler) view(t support.Ticket) ticketView {
	return ticketView{Ticket: t, Retryable: t.Enrichment().Stale(nowOr(h.Now), timeoutOr(h.Timeout))}
}

func (h *TicketsHandler) open(w http.ResponseWriter, r *http.Request) {
	var in support.NewTicket
	if !decodeJSON(w, r, &in) {
		return
	}
	t, err := h.Tickets.Open(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(t))
}

func (h *TicketsHandler) get(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tickets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(t))
}

func (h *TicketsHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req ChangeStatusReq
	if !decodeJSON(w, r, &req) {
		return
	}
	to := support.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !to.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status", map[string]string{"status": req.Status})
		return
	}
	t, err := h.Tickets.ChangeStatus(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(t))
}

type ApplicationService interface {
	Submit(ctx context.Context, in recruiting.NewApplication) (recruiting.Application, error)
	Get(ctx context.Context, id string) (recruiting.Application, error)
	ChangeStatus(ctx context.Context, id string, to recruiting.Status) (recruiting.Application, error)
}

type ApplicationsHandler struct {
	Applications ApplicationService
	Enrichment   EnrichmentService
	Timeout      time.Duration
	Now          func() time.Time
}

type applicationView struct {
	recruiting.Application
	Retryable bool `json:"enrichment_retryable"`
}

func (h *ApplicationsHandler) Register(r chi.Router) {
	r.Post("/applications", h.submit)
	r.Get("/applications/{id}", h.get)
	r.Patch("/applications/{id}/status", h.changeStatus)
	r.Post("/applications/{id}/enrichment", requestEnrichment(h.Enrichment))
	r.Post("/callbacks/applications/{id}", receiveEnrichment(h.Enrichment))
}

func (h *ApplicationsHandler) view(a recruiting.Application) applicationView {
	return applicationView{Application: a, Retryable: a.Enrichment().Stale(nowOr(h.Now), timeoutOr(h.Timeout))}
}

func (h *ApplicationsHandler) submit(w http.ResponseWriter, r *http.Request) {
	var in recruiting.NewApplication
	if !decodeJSON(w, r, &in) {
		return
	}
	a, err := h.Applications.Submit(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(a))
}

func (h *ApplicationsHandler) get(w http.ResponseWriter, r *http.Request) {
	a, err := h.Applications.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(a))
}

func (h *ApplicationsHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req ChangeStatusReq
	if !decodeJSON(w, r, &req) {
		return
	}
	to := recruiting.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !to.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status", map[string]string{"status": req.Status})
		return
	}
	a, err := h.Applications.ChangeStatus(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(a))
}

func nowOr(f func() time.Time) time.Time {
	if f != nil {
		return f()
	}
	return time.Now().UTC()
}

func timeoutOr(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return enrichment.DefaultTimeout
}
