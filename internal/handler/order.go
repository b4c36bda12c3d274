package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/solenne/boutique/internal/domain/order"
)

type placeOrderRequest struct {
	ShippingAddress order.Address `json:"shipping_address"`
	BillingAddress  order.Address `json:"billing_address"`
	PaymentMethod   string        `json:"payment_method"`
}

type orderResponse struct {
	OrderNumber     string              `json:"order_number"`
	Items           []orderItemResponse `json:"items"`
	Total           float64             `json:"total"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"payment_status"`
	PaymentMethod   string              `json:"payment_method"`
	ShippingAddress order.Address       `json:"shipping_address"`
	BillingAddress  order.Address       `json:"billing_address"`
	CreatedAt       time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ProductID   string  `json:"product_id"`
	VariationID string  `json:"variation_id"`
	Name        string  `json:"name"`
	Image       string  `json:"image"`
	Size        string  `json:"size"`
	Color       string  `json:"color"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

type placeOrderResponse struct {
	Message string        `json:"message"`
	Order   orderResponse `json:"order"`
}

// PlaceOrder converts the caller's cart into an order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.ShippingAddress.Valid() || !req.BillingAddress.Valid() {
		writeError(w, http.StatusBadRequest, "shipping and billing addresses are required")
		return
	}
	if req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "payment_method is required")
		return
	}

	o, err := h.checkout.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:          UserIDFromContext(r.Context()),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, placeOrderResponse{
		Message: "order placed",
		Order:   h.toOrderResponse(o),
	})
}

// ListOrders returns the caller's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByUser(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = h.toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// CancelOrder cancels one of the caller's orders and restores its stock.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	err := h.checkout.Cancel(r.Context(), UserIDFromContext(r.Context()), r.PathValue("number"))
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, order.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "order can no longer be cancelled")
		default:
			writeInternalError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "order cancelled"})
}

// writeOrderError maps checkout domain errors to 400 responses with a message
// naming the offending item; anything else is a 500.
func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		refErr   *order.ReferenceNotFoundError
		stockErr *order.InsufficientStockError
	)
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.As(err, &refErr):
		writeError(w, http.StatusBadRequest, refErr.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusBadRequest, stockErr.Error())
	default:
		writeInternalError(w, r, err)
	}
}

func (h *Handler) toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			Name:        it.Name,
			Image:       h.imageURL(it.Image),
			Size:        it.Size,
			Color:       it.Color,
			Price:       it.Price.InexactFloat64(),
			Quantity:    it.Quantity,
		}
	}
	return orderResponse{
		OrderNumber:     o.Number,
		Items:           items,
		Total:           o.Total.InexactFloat64(),
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		CreatedAt:       o.CreatedAt,
	}
}
