package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-store-core/internal/catalog"
	"github.com/ariefcatur/go-store-core/internal/enrichment"
	"github.com/ariefcatur/go-store-core/internal/invoices"
	"github.com/ariefcatur/go-store-core/internal/orders"
	"github.com/ariefcatur/go-store-core/internal/recruiting"
	"github.com/ariefcatur/go-store-core/internal/support"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string, details any) {
	writeJSON(w, code, ErrorResponse{Error: msg, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json", err.Error())
		return false
	}
	return true
}

// writeDomainError maps service errors onto status codes. Anything not
// recognised is a 500 with a generic message; the cause is in the log.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		qtyErr   *orders.InvalidQuantityError
		prodErr  *orders.ProductNotFoundError
		stockErr *orders.InsufficientStockError
	)
	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &qtyErr):
		writeError(w, http.StatusBadRequest, "invalid quantity", map[string]any{"product_id": qtyErr.ProductID, "qty": qtyErr.Qty})
	case errors.As(err, &prodErr):
		writeError(w, http.StatusUnprocessableEntity, "product not found", map[string]any{"product_id": prodErr.ID})
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, "insufficient stock", map[string]any{
			"product_id":   stockErr.ID,
			"product_name": stockErr.Name,
			"requested":    stockErr.Requested,
			"available":    stockErr.Available,
		})
	case errors.Is(err, orders.ErrPersistence):
		writeError(w, http.StatusServiceUnavailable, "order could not be saved, please retry", nil)

	case errors.Is(err, support.ErrInvalid), errors.Is(err, recruiting.ErrInvalid):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, enrichment.ErrInvalidResult):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)

	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, orders.ErrNotFound),
		errors.Is(err, invoices.ErrNotFound),
		errors.Is(err, invoices.ErrOrderNotFound),
		errors.Is(err, support.ErrNotFound),
		errors.Is(err, recruiting.ErrNotFound),
		errors.Is(err, enrichment.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)

	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, invoices.ErrInvalidTransition),
		errors.Is(err, invoices.ErrOrderCancelled),
		errors.Is(err, support.ErrInvalidTransition),
		errors.Is(err, recruiting.ErrInvalidTransition),
		errors.Is(err, recruiting.ErrNotEnriched),
		errors.Is(err, enrichment.ErrInFlight):
		writeError(w, http.StatusConflict, err.Error(), nil)

	case errors.Is(err, enrichment.ErrStartFailed):
		writeError(w, http.StatusBadGateway, "analyzer unavailable, please retry", nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
