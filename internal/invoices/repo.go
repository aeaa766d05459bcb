package invoices

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-store-core/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.DB }

var _ Store = (*Repo)(nil)

const invoiceColumns = `id, order_id, invoice_number, base_cents, tax_cents, total_cents, status, paid_at, created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.OrderID, &inv.InvoiceNumber, &inv.BaseCents, &inv.TaxCents, &inv.TotalCents, &status, &inv.PaidAt, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	inv.Status = Status(status)
	return inv, err
}

func (r *Repo) Get(ctx context.Context, id string) (Invoice, error) {
	return scanInvoice(r.DB.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
}

func (r *Repo) GetByOrder(ctx context.Context, orderID string) (Invoice, error) {
	return scanInvoice(r.DB.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE order_id=$1`, orderID))
}

// Insert relies on UNIQUE(order_id): a concurrent duplicate becomes a no-op
// and the winner's row is returned instead.
func (r *Repo) Insert(ctx context.Context, inv *Invoice) (bool, error) {
	var id string
	err := r.DB.QueryRow(ctx, `
		INSERT INTO invoices(id, order_id, invoice_number, base_cents, tax_cents, total_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id`,
		inv.ID, inv.OrderID, inv.InvoiceNumber, inv.BaseCents, inv.TaxCents, inv.TotalCents, string(inv.Status), inv.CreatedAt,
	).Scan(&id)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	existing, err := r.GetByOrder(ctx, inv.OrderID)
	if err != nil {
		return false, err
	}
	*inv = existing
	return false, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status, paidAt *time.Time) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE invoices SET status=$3, paid_at=COALESCE($4, paid_at)
		WHERE id=$1 AND status=$2`, id, string(from), string(to), paidAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}
