package orders

import "time"

type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"order_number"`
	CustomerID  string      `json:"customer_id"`
	Status      Status      `json:"status"` // lihat status.go
	TotalCents  int64       `json:"total_cents"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Lines       []OrderLine `json:"lines"`
}

// OrderLine menyimpan snapshot nama & harga saat order dibuat, tidak ikut berubah
// kalau produk di katalog berubah.
type OrderLine struct {
	ID          int64  `json:"id,omitempty"`
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
	PriceCents  int64  `json:"price_cents"`
}

func (l OrderLine) SubtotalCents() int64 { return l.PriceCents * int64(l.Qty) }

// LineInput is one requested cart line. PriceCents is accepted for client
// compatibility but never used for pricing.
type LineInput struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents *int64 `json:"price_cents,omitempty"`
}
