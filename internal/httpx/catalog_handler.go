package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-store-core/internal/catalog"
	"github.com/go-chi/chi/v5"
)

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	ListLowStock(ctx context.Context) ([]catalog.Product, error)
}

type CatalogHandler struct {
	Products ProductReader
}

type productView struct {
	catalog.Product
	NeedsReorder bool `json:"needs_reorder"`
}

func toProductViews(ps []catalog.Product) []productView {
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, productView{Product: p, NeedsReorder: p.NeedsReorder()})
	}
	return out
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/low-stock", h.lowStock)
	r.Get("/products/{id}", h.get)
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Products.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductViews(ps))
}

func (h *CatalogHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Products.ListLowStock(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductViews(ps))
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productView{Product: p, NeedsReorder: p.NeedsReorder()})
}
