package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-store-core/internal/logging"
	"github.com/ariefcatur/go-store-core/internal/orders"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderCancelled    = errors.New("order is cancelled")
	ErrNotFound          = errors.New("invoice not found")
	ErrInvalidTransition = errors.New("invalid invoice transition")
)

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (orders.Order, error)
}

type Store interface {
	Get(ctx context.Context, id string) (Invoice, error)
	GetByOrder(ctx context.Context, orderID string) (Invoice, error)
	// Insert returns created=false and fills inv with the stored row when an
	// invoice for the same order already exists.
	Insert(ctx context.Context, inv *Invoice) (created bool, err error)
	UpdateStatus(ctx context.Context, id string, from, to Status, paidAt *time.Time) error
}

type Generator struct {
	Orders OrderReader
	Store  Store
	Log    *zap.Logger
	Now    func() time.Time
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}

// GenerateInvoice returns the order's invoice, creating it on first call.
// existed reports whether it was already there.
func (g *Generator) GenerateInvoice(ctx context.Context, orderID string) (inv Invoice, existed bool, err error) {
	log := logging.OrNop(g.Log).With(zap.String("order_id", orderID))

	inv, err = g.Store.GetByOrder(ctx, orderID)
	if err == nil {
		return inv, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Invoice{}, false, err
	}

	o, err := g.Orders.GetOrder(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		return Invoice{}, false, ErrOrderNotFound
	}
	if err != nil {
		return Invoice{}, false, fmt.Errorf("load order: %w", err)
	}
	if o.Status == orders.StatusCancelled {
		return Invoice{}, false, ErrOrderCancelled
	}

	// pakai total yang tersimpan di order, jangan hitung ulang dari harga katalog
	tax := ComputeTax(o.TotalCents)
	inv = Invoice{
		ID:            uuid.NewString(),
		OrderID:       o.ID,
		InvoiceNumber: NumberFor(o.OrderNumber),
		BaseCents:     o.TotalCents,
		TaxCents:      tax,
		TotalCents:    o.TotalCents + tax,
		Status:        StatusPending,
		CreatedAt:     g.now(),
	}
	created, err := g.Store.Insert(ctx, &inv)
	if err != nil {
		return Invoice{}, false, err
	}
	if created {
		log.Info("invoice generated", zap.String("invoice_number", inv.InvoiceNumber), zap.Int64("total_cents", inv.TotalCents))
	}
	return inv, !created, nil
}

func (g *Generator) Get(ctx context.Context, id string) (Invoice, error) {
	return g.Store.Get(ctx, id)
}

func (g *Generator) MarkPaid(ctx context.Context, id string) (Invoice, error) {
	now := g.now()
	return g.transition(ctx, id, StatusPaid, &now)
}

func (g *Generator) Cancel(ctx context.Context, id string) (Invoice, error) {
	return g.transition(ctx, id, StatusCancelled, nil)
}

// OrderCancelled voids the order's invoice while it is still PENDING. A paid
// invoice is left alone; refunds are handled outside this service.
func (g *Generator) OrderCancelled(ctx context.Context, orderID string) error {
	inv, err := g.Store.GetByOrder(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	log := logging.OrNop(g.Log).With(zap.String("order_id", orderID), zap.String("invoice_id", inv.ID))
	if inv.Status != StatusPending {
		log.Info("invoice kept on order cancel", zap.String("status", string(inv.Status)))
		return nil
	}
	if err := g.Store.UpdateStatus(ctx, inv.ID, StatusPending, StatusCancelled, nil); err != nil {
		return fmt.Errorf("cancel invoice %s: %w", inv.ID, err)
	}
	log.Info("invoice cancelled with order")
	return nil
}

func (g *Generator) transition(ctx context.Context, id string, to Status, paidAt *time.Time) (Invoice, error) {
	inv, err := g.Store.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if !CanTransition(inv.Status, to) {
		return Invoice{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, to)
	}
	if err := g.Store.UpdateStatus(ctx, id, inv.Status, to, paidAt); err != nil {
		return Invoice{}, err
	}
	inv.Status = to
	inv.PaidAt = paidAt
	return inv, nil
}
