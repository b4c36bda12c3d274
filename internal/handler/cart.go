package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/solenne/boutique/internal/domain/cart"
	"github.com/solenne/boutique/internal/domain/product"
)

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
	Total float64            `json:"total"`
}

type cartItemResponse struct {
	ProductID   string  `json:"product_id"`
	VariationID string  `json:"variation_id"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

type addCartItemRequest struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id"`
	Quantity    int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart returns the caller's cart; users without one get an empty cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// AddCartItem adds a variation to the caller's cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID == "" || req.VariationID == "" {
		writeError(w, http.StatusBadRequest, "product_id and variation_id are required")
		return
	}

	c, err := h.carts.AddItem(r.Context(), UserIDFromContext(r.Context()), req.ProductID, req.VariationID, req.Quantity)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// UpdateCartItem sets the quantity of a cart line; quantity 0 removes it.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.carts.UpdateItem(r.Context(), UserIDFromContext(r.Context()), r.PathValue("variationID"), req.Quantity)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// RemoveCartItem deletes a cart line.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), UserIDFromContext(r.Context()), r.PathValue("variationID"))
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrItemNotInCart):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, product.ErrNotFound), errors.Is(err, product.ErrVariationNotFound):
		writeError(w, http.StatusUnprocessableEntity, "unknown product or variation")
	default:
		writeInternalError(w, r, err)
	}
}

func toCartResponse(c *cart.Cart) cartResponse {
	resp := cartResponse{
		Items: make([]cartItemResponse, len(c.Items)),
		Total: c.Total.InexactFloat64(),
	}
	for i, it := range c.Items {
		resp.Items[i] = cartItemResponse{
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			Quantity:    it.Quantity,
			Price:       it.Price.InexactFloat64(),
		}
	}
	return resp
}
