package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Reserver is implemented by *Guard.
type Reserver interface {
	Reserve(ctx context.Context, productID string, qty int) (int, error)
	Release(ctx context.Context, productID string, qty int) (int, error)
}

type Hold struct {
	ProductID string
	Qty       int
}

// ReleaseTimeout bounds a release that runs detached from the caller's
// deadline, so an expired request still gets its stock back.
const ReleaseTimeout = 10 * time.Second

// Reservations tracks every successful reservation within one logical
// operation so that all of them can be undone together.
// Not safe for concurrent use; one instance per call.
type Reservations struct {
	guard Reserver
	held  []Hold
}

func NewReservations(g Reserver) *Reservations {
	return &Reservations{guard: g}
}

func (r *Reservations) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	stock, err := r.guard.Reserve(ctx, productID, qty)
	if err != nil {
		return 0, err
	}
	r.held = append(r.held, Hold{ProductID: productID, Qty: qty})
	return stock, nil
}

func (r *Reservations) Held() []Hold {
	return append([]Hold(nil), r.held...)
}

// ReleaseAll undoes every held reservation, newest first. It keeps going on
// failure and returns the joined errors; holds that failed to release stay
// recorded so a caller may retry.
func (r *Reservations) ReleaseAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ReleaseTimeout)
	defer cancel()

	var errs error
	var failed []Hold
	for i := len(r.held) - 1; i >= 0; i-- {
		h := r.held[i]
		if _, err := r.guard.Release(ctx, h.ProductID, h.Qty); err != nil {
			errs = errors.Join(errs, fmt.Errorf("release %s x%d: %w", h.ProductID, h.Qty, err))
			failed = append(failed, h)
		}
	}
	r.held = failed
	return errs
}
