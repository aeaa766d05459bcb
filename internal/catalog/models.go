package catalog

import "time"

// Product harga & stok otoritatif ada di server; stok hanya diubah lewat inventory.Guard.
type Product struct {
	ID               string    `json:"id"`
	SKU              string    `json:"sku"`
	Name             string    `json:"name"`
	PriceCents       int64     `json:"price_cents"`
	Stock            int       `json:"stock"`
	ReorderThreshold int       `json:"reorder_threshold"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (p Product) NeedsReorder() bool { return p.Stock <= p.ReorderThreshold }
