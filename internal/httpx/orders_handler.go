package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-store-core/internal/logging"
	"github.com/ariefcatur/go-store-core/internal/orders"
	"github.com/ariefcatur/go-store-core/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, customerID string, items []orders.LineInput) (orders.Order, error)
	GetOrder(ctx context.Context, id string) (orders.Order, error)
	ChangeStatus(ctx context.Context, id string, to orders.Status) (orders.Order, error)
}

// StatusCache is implemented by redisx.StatusCache.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.CachedStatus, bool, error)
	Set(ctx context.Context, orderID, status string, updatedAt time.Time) error
	Invalidate(ctx context.Context, orderID string) error
}

type OrdersHandler struct {
	Orders OrderService
	Cache  StatusCache
	Log    *zap.Logger
}

type CreateOrderReq struct {
	CustomerID string             `json:"customer_id"`
	Items      []orders.LineInput `json:"items"`
}

type ChangeStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Patch("/orders/{id}/status", h.changeStatus)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		writeError(w, http.StatusBadRequest, "missing fields", map[string]string{"customer_id": "required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.PlaceOrder(ctx, req.CustomerID, req.Items)
	if err != nil {
		logging.OrNop(h.Log).Warn("place order failed", zap.String("customer_id", req.CustomerID), zap.Error(err))
		writeDomainError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Cache != nil {
		if s, ok, err := h.Cache.Get(ctx, orderID); err == nil && ok {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// 2) fallback DB
	o, err := h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, redisx.CachedStatus{Status: string(o.Status), UpdatedAt: o.UpdatedAt})
}

func (h *OrdersHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req ChangeStatusReq
	if !decodeJSON(w, r, &req) {
		return
	}
	to := orders.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !to.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status", map[string]string{"status": req.Status})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	o, err := h.Orders.ChangeStatus(ctx, orderID, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, o.ID, string(o.Status), o.UpdatedAt); err != nil {
			logging.OrNop(h.Log).Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
			if err := h.Cache.Invalidate(ctx, o.ID); err != nil {
				logging.OrNop(h.Log).Warn("status cache invalidate failed", zap.String("order_id", o.ID), zap.Error(err))
			}
		}
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o orders.Order) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Set(ctx, o.ID, string(o.Status), o.UpdatedAt); err != nil {
		logging.OrNop(h.Log).Warn("status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}
