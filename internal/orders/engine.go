package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ariefcatur/go-store-core/internal/catalog"
	"github.com/ariefcatur/go-store-core/internal/inventory"
	"github.com/ariefcatur/go-store-core/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const maxNumberAttempts = 5

// MaxLineQty is the largest quantity a single line may carry; the column is int4.
const MaxLineQty = math.MaxInt32

type Catalog interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

type Store interface {
	// CreateOrder writes header and lines in one transaction.
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	// UpdateStatus is a compare-and-set on the current status.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}

// CancelHook runs after an order is cancelled and its stock released.
// Errors are logged; the cancellation itself has already committed.
type CancelHook interface {
	OrderCancelled(ctx context.Context, orderID string) error
}

// Notifier delivers best-effort downstream events. Errors are logged by the
// engine and never fail the operation.
type Notifier interface {
	OrderCreated(ctx context.Context, o Order) error
	OrderStatusChanged(ctx context.Context, orderID string, from, to Status) error
}

var tracer = otel.Tracer("github.com/ariefcatur/go-store-core/internal/orders")

type Engine struct {
	Catalog  Catalog
	Guard    inventory.Reserver
	Store    Store
	Notifier Notifier
	OnCancel CancelHook
	Log      *zap.Logger

	// opsional, untuk test
	Now       func() time.Time
	NewNumber func(time.Time) string
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *Engine) newNumber(t time.Time) string {
	if e.NewNumber != nil {
		return e.NewNumber(t)
	}
	return NewOrderNumber(t)
}

// PlaceOrder turns a cart into a persisted PENDING order. Either the order and
// all its lines exist with exactly their quantities reserved, or nothing does.
func (e *Engine) PlaceOrder(ctx context.Context, customerID string, items []LineInput) (Order, error) {
	ctx, span := tracer.Start(ctx, "orders.place_order")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID), attribute.Int("order.lines", len(items)))
	log := logging.OrNop(e.Log).With(zap.String("customer_id", customerID))

	// 1-2) validasi dulu, sebelum ada mutasi apapun
	if len(items) == 0 {
		return Order{}, ErrEmptyCart
	}
	products := make([]catalog.Product, len(items))
	for i, it := range items {
		if it.Qty <= 0 || it.Qty > MaxLineQty {
			return Order{}, &InvalidQuantityError{ProductID: it.ProductID, Qty: it.Qty}
		}
		p, err := e.Catalog.GetProduct(ctx, it.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			return Order{}, &ProductNotFoundError{ID: it.ProductID}
		}
		if err != nil {
			return Order{}, fmt.Errorf("%w: lookup product %s: %w", ErrPersistence, it.ProductID, err)
		}
		products[i] = p
	}

	// 3) reserve per line; gagal di tengah -> release semua yang sudah di-reserve
	res := inventory.NewReservations(e.Guard)
	for i, it := range items {
		if _, err := res.Reserve(ctx, it.ProductID, it.Qty); err != nil {
			e.compensate(ctx, log, res)
			span.SetStatus(codes.Error, err.Error())
			return Order{}, e.reserveError(err, products[i], it.Qty)
		}
	}

	// 4) harga selalu dari katalog, bukan dari client
	now := e.now()
	o := Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
		Lines:      make([]OrderLine, len(items)),
	}
	for i, it := range items {
		o.Lines[i] = OrderLine{
			OrderID:     o.ID,
			ProductID:   products[i].ID,
			ProductName: products[i].Name,
			Qty:         it.Qty,
			PriceCents:  products[i].PriceCents,
		}
		o.TotalCents += o.Lines[i].SubtotalCents()
	}

	// 5) persist atomik, retry kalau nomor order tabrakan
	if err := e.persist(ctx, &o); err != nil {
		if persisted, ok := e.confirmPersisted(ctx, o.ID); ok {
			log.Warn("order persisted despite error", zap.String("order_id", o.ID), zap.Error(err))
			o = persisted
		} else {
			e.compensate(ctx, log, res)
			span.SetStatus(codes.Error, err.Error())
			return Order{}, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.number", o.OrderNumber))
	log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.Int64("total_cents", o.TotalCents),
	)

	// 6) best-effort
	if e.Notifier != nil {
		if err := e.Notifier.OrderCreated(ctx, o); err != nil {
			log.Warn("order created notification failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	return o, nil
}

func (e *Engine) persist(ctx context.Context, o *Order) error {
	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		o.OrderNumber = e.newNumber(o.CreatedAt)
		err = e.Store.CreateOrder(ctx, o)
		if !errors.Is(err, errDuplicateOrderNumber) {
			return err
		}
	}
	return fmt.Errorf("order number: %d attempts: %w", maxNumberAttempts, err)
}

// confirmPersisted covers a commit that succeeded while its acknowledgement
// was lost (e.g. the request deadline fired mid-commit).
func (e *Engine) confirmPersisted(ctx context.Context, id string) (Order, bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	o, err := e.Store.GetOrder(ctx, id)
	return o, err == nil
}

func (e *Engine) compensate(ctx context.Context, log *zap.Logger, res *inventory.Reservations) {
	held := res.Held()
	if len(held) == 0 {
		return
	}
	if err := res.ReleaseAll(ctx); err != nil {
		log.Error("compensation release failed", zap.Any("unreleased", res.Held()), zap.Error(err))
		return
	}
	log.Info("reservations released", zap.Int("count", len(held)))
}

func (e *Engine) reserveError(err error, p catalog.Product, qty int) error {
	var se *inventory.ShortageError
	switch {
	case errors.As(err, &se):
		return &InsufficientStockError{ID: p.ID, Name: p.Name, Requested: qty, Available: se.Available}
	case errors.Is(err, inventory.ErrInsufficientStock):
		return &InsufficientStockError{ID: p.ID, Name: p.Name, Requested: qty}
	case errors.Is(err, inventory.ErrProductNotFound):
		return &ProductNotFoundError{ID: p.ID}
	default:
		return fmt.Errorf("%w: reserve %s: %w", ErrPersistence, p.ID, err)
	}
}

func (e *Engine) GetOrder(ctx context.Context, id string) (Order, error) {
	return e.Store.GetOrder(ctx, id)
}

// ChangeStatus moves an order along its lifecycle. Cancelling returns every
// line's quantity to stock.
func (e *Engine) ChangeStatus(ctx context.Context, id string, to Status) (Order, error) {
	ctx, span := tracer.Start(ctx, "orders.change_status")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id), attribute.String("order.status.to", string(to)))
	log := logging.OrNop(e.Log).With(zap.String("order_id", id))

	o, err := e.Store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	from := o.Status
	if !CanTransition(from, to) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if err := e.Store.UpdateStatus(ctx, id, from, to); err != nil {
		return Order{}, err
	}
	o.Status = to
	o.UpdatedAt = e.now()

	if to == StatusCancelled {
		e.afterCancel(ctx, o, log)
	}
	log.Info("order status changed", zap.String("from", string(from)), zap.String("to", string(to)))

	if e.Notifier != nil {
		if err := e.Notifier.OrderStatusChanged(ctx, id, from, to); err != nil {
			log.Warn("status notification failed", zap.Error(err))
		}
	}
	return o, nil
}

// afterCancel returns the lines to stock and runs the cancel hook. Both run
// detached from the request under a bounded deadline.
func (e *Engine) afterCancel(ctx context.Context, o Order, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inventory.ReleaseTimeout)
	defer cancel()

	for _, l := range o.Lines {
		if _, err := e.Guard.Release(ctx, l.ProductID, l.Qty); err != nil {
			log.Error("release on cancel failed", zap.String("product_id", l.ProductID), zap.Int("qty", l.Qty), zap.Error(err))
		}
	}
	if e.OnCancel != nil {
		if err := e.OnCancel.OrderCancelled(ctx, o.ID); err != nil {
			log.Error("cancel hook failed", zap.Error(err))
		}
	}
}
