package invoices

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool { return validNext[from][to] }

// Invoice is 1:0..1 with an order; amounts are frozen from the order's stored total.
type Invoice struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	InvoiceNumber string     `json:"invoice_number"`
	BaseCents     int64      `json:"base_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TotalCents    int64      `json:"total_cents"`
	Status        Status     `json:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func NumberFor(orderNumber string) string { return "INV-" + orderNumber }
