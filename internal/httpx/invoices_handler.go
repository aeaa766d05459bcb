package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-store-core/internal/invoices"
	"github.com/go-chi/chi/v5"
)

type InvoiceService interface {
	GenerateInvoice(ctx context.Context, orderID string) (invoices.Invoice, bool, error)
	Get(ctx context.Context, id string) (invoices.Invoice, error)
	MarkPaid(ctx context.Context, id string) (invoices.Invoice, error)
	Cancel(ctx context.Context, id string) (invoices.Invoice, error)
}

type InvoicesHandler struct {
	Invoices InvoiceService
}

func (h *InvoicesHandler) Register(r chi.Router) {
	r.Post("/orders/{id}/invoice", h.generate)
	r.Get("/invoices/{id}", h.get)
	r.Post("/invoices/{id}/pay", h.pay)
	r.Post("/invoices/{id}/cancel", h.cancel)
}

// generate answers 201 for a new invoice and 200 with the existing one on
// repeat calls.
func (h *InvoicesHandler) generate(w http.ResponseWriter, r *http.Request) {
	inv, existed, err := h.Invoices.GenerateInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, inv)
}

func (h *InvoicesHandler) get(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.Invoices.Get(r.Context(), chi.URLParam(r, "id")))
}

func (h *InvoicesHandler) pay(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.Invoices.MarkPaid(r.Context(), chi.URLParam(r, "id")))
}

func (h *InvoicesHandler) cancel(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.Invoices.Cancel(r.Context(), chi.URLParam(r, "id")))
}

func (h *InvoicesHandler) respond(w http.ResponseWriter) func(invoices.Invoice, error) {
	return func(inv invoices.Invoice, err error) {
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	}
}
