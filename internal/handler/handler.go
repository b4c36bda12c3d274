// Package handler exposes the storefront HTTP API: catalog reads, cart
// mutation, and checkout. Handlers decode requests, delegate to the domain
// services, and map domain errors to HTTP status codes.
package handler

import (
	"net/http"

	"github.com/solenne/boutique/internal/domain/cart"
	"github.com/solenne/boutique/internal/domain/order"
	"github.com/solenne/boutique/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler serves the storefront API.
type Handler struct {
	products     product.Repository
	carts        *cart.Service
	checkout     *order.CheckoutService
	orders       order.Repository
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products product.Repository,
	carts *cart.Service,
	checkout *order.CheckoutService,
	orders order.Repository,
) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		checkout:     checkout,
		orders:       orders,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Register mounts all API routes on mux. Routes touching a user's cart or
// orders are wrapped with the auth middleware.
func (h *Handler) Register(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	authed := func(fn http.HandlerFunc) http.Handler { return auth(fn) }
	mux.Handle("GET /api/cart", authed(h.GetCart))
	mux.Handle("POST /api/cart/items", authed(h.AddCartItem))
	mux.Handle("PATCH /api/cart/items/{variationID}", authed(h.UpdateCartItem))
	mux.Handle("DELETE /api/cart/items/{variationID}", authed(h.RemoveCartItem))
	mux.Handle("POST /api/orders", authed(h.PlaceOrder))
	mux.Handle("GET /api/orders", authed(h.ListOrders))
	mux.Handle("POST /api/orders/{number}/cancel", authed(h.CancelOrder))
}

// imageURL resolves a stored image path against the configured base URL.
func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" {
		return path
	}
	return h.imageBaseURL + "/" + path
}
