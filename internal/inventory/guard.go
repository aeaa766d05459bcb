package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-store-core/internal/postgres"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// ShortageError detail kekurangan stok; errors.Is(err, ErrInsufficientStock) == true.
type ShortageError struct {
	ProductID string
	Requested int
	Available int
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *ShortageError) Is(target error) bool { return target == ErrInsufficientStock }

var tracer = otel.Tracer("github.com/ariefcatur/go-store-core/internal/inventory")

// Guard is the only code path allowed to change products.stock.
// Every mutation is a single conditional UPDATE, so concurrent callers on the
// same row are serialized by Postgres row locking.
type Guard struct{ DB postgres.DB }

// Reserve decrements stock by qty iff stock >= qty and returns the new stock.
func (g *Guard) Reserve(ctx context.Context, productID string, qty int) (int, error) {
	ctx, span := tracer.Start(ctx, "inventory.reserve")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int("inventory.qty", qty))

	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	var stock int
	err := g.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING stock`, productID, qty).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("reserve %s: %w", productID, err)
	}

	// 0 row affected: bedakan produk tidak ada vs stok kurang.
	var available int
	err = g.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reserve %s: %w", productID, err)
	}
	span.SetAttributes(attribute.Int("inventory.available", available))
	return 0, &ShortageError{ProductID: productID, Requested: qty, Available: available}
}

// Release puts qty units back. Used for compensation and cancellation.
func (g *Guard) Release(ctx context.Context, productID string, qty int) (int, error) {
	ctx, span := tracer.Start(ctx, "inventory.release")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int("inventory.qty", qty))

	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	var stock int
	err := g.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1
		RETURNING stock`, productID, qty).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("release %s: %w", productID, err)
	}
	return stock, nil
}
