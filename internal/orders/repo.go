package orders

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-store-core/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.DB }

var _ Store = (*Repo)(nil)

func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO orders(id, order_number, customer_id, status, total_cents, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
		`, o.ID, o.OrderNumber, o.CustomerID, string(o.Status), o.TotalCents, o.CreatedAt); err != nil {
			return err
		}

		for i := range o.Lines {
			l := &o.Lines[i]
			if err := tx.QueryRow(ctx, `
				INSERT INTO order_lines(order_id, product_id, product_name, qty, price_cents)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				o.ID, l.ProductID, l.ProductName, l.Qty, l.PriceCents,
			).Scan(&l.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if postgres.IsUniqueViolation(err, "orders_order_number_key") {
		return errDuplicateOrderNumber
	}
	return err
}

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	var o Order
	var status string
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_number, customer_id, status, total_cents, created_at, updated_at
		FROM orders WHERE id=$1`, id,
	).Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &status, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, qty, price_cents
		FROM order_lines WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Qty, &l.PriceCents); err != nil {
			return Order{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func (r *Repo) GetOrderStatus(ctx context.Context, id string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	// 0 row: order tidak ada atau status sudah diubah request lain
	if _, err := r.GetOrderStatus(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}
