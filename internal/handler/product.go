package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/solenne/boutique/internal/domain/product"
)

type productResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Image       string              `json:"image"`
	BasePrice   float64             `json:"base_price"`
	Variations  []variationResponse `json:"variations,omitempty"`
}

type variationResponse struct {
	ID       string  `json:"id"`
	Size     string  `json:"size"`
	Color    string  `json:"color"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// ListProducts returns the catalog, optionally filtered by ?category=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = h.toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProduct returns a single product with its variations.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(*p))
}

func (h *Handler) toProductResponse(p product.Product) productResponse {
	resp := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Image:       h.imageURL(p.Image),
		BasePrice:   p.BasePrice.InexactFloat64(),
	}
	for _, v := range p.Variations {
		resp.Variations = append(resp.Variations, variationResponse{
			ID:       v.ID,
			Size:     v.Size,
			Color:    v.Color,
			Quantity: v.Quantity,
			Price:    v.Price.InexactFloat64(),
		})
	}
	return resp
}
