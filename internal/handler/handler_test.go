package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solenne/boutique/internal/domain/auth"
	"github.com/solenne/boutique/internal/domain/cart"
	"github.com/solenne/boutique/internal/domain/order"
	"github.com/solenne/boutique/internal/domain/product"
)

// --- In-memory fixture ---

type fixture struct {
	products   map[string]product.Product
	variations map[string]product.Variation
	carts      map[string][]cart.Item
	orders     []*order.Order
	sessions   map[string]*auth.SessionInfo
	sessionErr error
}

func newFixture() *fixture {
	return &fixture{
		products:   make(map[string]product.Product),
		variations: make(map[string]product.Variation),
		carts:      make(map[string][]cart.Item),
		sessions:   make(map[string]*auth.SessionInfo),
	}
}

// product.Repository

func (f *fixture) List(_ context.Context, category string) ([]product.Product, error) {
	var out []product.Product
	for _, p := range f.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fixture) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (f *fixture) GetVariation(_ context.Context, id string) (*product.Variation, error) {
	v, ok := f.variations[id]
	if !ok {
		return nil, product.ErrVariationNotFound
	}
	return &v, nil
}

// product.Inventory

func (f *fixture) DecrementStock(_ context.Context, id string, qty int) error {
	v, ok := f.variations[id]
	if !ok || v.Quantity < qty {
		return product.ErrInsufficientStock
	}
	v.Quantity -= qty
	f.variations[id] = v
	return nil
}

func (f *fixture) RestoreStock(_ context.Context, id string, qty int) error {
	v := f.variations[id]
	v.Quantity += qty
	f.variations[id] = v
	return nil
}

// cart.Repository

func (f *fixture) Get(_ context.Context, userID string) (*cart.Cart, error) {
	items, ok := f.carts[userID]
	if !ok {
		return nil, nil
	}
	return &cart.Cart{UserID: userID, Items: items, Total: cart.ComputeTotal(items)}, nil
}

func (f *fixture) SetItems(_ context.Context, userID string, items []cart.Item) error {
	f.carts[userID] = items
	return nil
}

func (f *fixture) Clear(_ context.Context, userID string) error {
	f.carts[userID] = nil
	return nil
}

// order.Repository

func (f *fixture) Create(_ context.Context, o *order.Order) error {
	for _, existing := range f.orders {
		if existing.Number == o.Number {
			return order.ErrDuplicateOrderNumber
		}
	}
	cp := *o
	f.orders = append(f.orders, &cp)
	return nil
}

func (f *fixture) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	// Newest first: the fixture appends, so walk backwards.
	for i := len(f.orders) - 1; i >= 0; i-- {
		if f.orders[i].UserID == userID {
			out = append(out, *f.orders[i])
		}
	}
	return out, nil
}

func (f *fixture) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	for _, o := range f.orders {
		if o.Number == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (f *fixture) UpdateStatus(_ context.Context, number string, status order.Status) error {
	for _, o := range f.orders {
		if o.Number == number {
			if !o.Status.CanTransition(status) {
				return order.ErrInvalidTransition
			}
			o.Status = status
			return nil
		}
	}
	return order.ErrNotFound
}

func (f *fixture) UpdatePaymentStatus(_ context.Context, number string, status order.PaymentStatus) error {
	for _, o := range f.orders {
		if o.Number == number {
			o.PaymentStatus = status
			return nil
		}
	}
	return order.ErrNotFound
}

// order.Transactor — handler tests exercise HTTP mapping, not rollback.

func (f *fixture) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// auth.Repository

func (f *fixture) FindByTokenHash(_ context.Context, hash string) (*auth.SessionInfo, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	info, ok := f.sessions[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return info, nil
}

// --- Helpers ---

const (
	testPepper = "test-pepper"
	testToken  = "session-token-u1"
)

func (f *fixture) addSession(token, userID string) {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(token))
	hash := hex.EncodeToString(mac.Sum(nil))
	f.sessions[hash] = &auth.SessionInfo{ID: "s-" + userID, TokenHash: hash, UserID: userID}
}

func (f *fixture) addProduct(productID, variationID string, stock int, price string) {
	f.products[productID] = product.Product{
		ID:       productID,
		Name:     "Tweed Jacket " + productID,
		Category: "jackets",
		Image:    "jackets/" + productID + ".jpg",
	}
	f.variations[variationID] = product.Variation{
		ID:        variationID,
		ProductID: productID,
		Size:      "L",
		Color:     "forest",
		Quantity:  stock,
		Price:     decimal.RequireFromString(price),
	}
}

func newTestServer(f *fixture) *httptest.Server {
	cartService := cart.NewService(f, f)
	checkout := order.NewCheckoutService(f, f, f, f, f)
	h := New(Config{}, f, cartService, checkout, f)
	sessionAuth := NewSessionAuth(f, []byte(testPepper))

	mux := http.NewServeMux()
	h.Register(mux, sessionAuth.Middleware)
	return httptest.NewServer(mux)
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeInto[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func validPlaceOrderBody() map[string]any {
	addr := map[string]any{
		"name":        "Ada Moreau",
		"line1":       "12 Rue des Lilas",
		"city":        "Lyon",
		"postal_code": "69003",
		"country":     "FR",
	}
	return map[string]any{
		"shipping_address": addr,
		"billing_address":  addr,
		"payment_method":   "card",
	}
}

// --- Tests ---

func TestPlaceOrder_Unauthenticated(t *testing.T) {
	srv := newTestServer(newFixture())
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", "", validPlaceOrderBody())
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPlaceOrder_InvalidToken(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	srv := newTestServer(f)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", "wrong-token", validPlaceOrderBody())
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_SessionStoreFailure(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	f.sessionErr = errors.New("connection refused")
	srv := newTestServer(f)
	defer srv.Close()

	// A broken session store is a server fault, not a bad credential.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/cart", testToken, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	f.addProduct("p1", "v1", 5, "10.00")
	f.carts["u1"] = []cart.Item{{ProductID: "p1", VariationID: "v1", Quantity: 2, Price: decimal.RequireFromString("10.00")}}
	srv := newTestServer(f)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", testToken, validPlaceOrderBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeInto[placeOrderResponse](t, resp)
	assert.Equal(t, "order placed", body.Message)
	assert.Equal(t, 20.0, body.Order.Total)
	assert.Equal(t, "pending", body.Order.Status)
	assert.Equal(t, "pending", body.Order.PaymentStatus)
	assert.Regexp(t, `^ORD-\d{8}-\d{4}$`, body.Order.OrderNumber)
	require.Len(t, body.Order.Items, 1)
	assert.Equal(t, "Tweed Jacket p1", body.Order.Items[0].Name)

	assert.Equal(t, 3, f.variations["v1"].Quantity)
	assert.Empty(t, f.carts["u1"])
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	srv := newTestServer(f)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", testToken, validPlaceOrderBody())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeInto[errorResponse](t, resp)
	assert.Equal(t, "cart is empty", body.Message)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	f.addProduct("p1", "v1", 3, "15.00")
	f.carts["u1"] = []cart.Item{{ProductID: "p1", VariationID: "v1", Quantity: 10, Price: decimal.RequireFromString("15.00")}}
	srv := newTestServer(f)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", testToken, validPlaceOrderBody())
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeInto[errorResponse](t, resp)
	assert.Contains(t, body.Message, "Tweed Jacket p1")
	assert.Contains(t, body.Message, "size L")
	assert.Contains(t, body.Message, "color forest")
}

func TestPlaceOrder_MissingAddress(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	srv := newTestServer(f)
	defer srv.Close()

	body := validPlaceOrderBody()
	delete(body, "billing_address")
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", testToken, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPlaceOrder_MissingPaymentMethod(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	srv := newTestServer(f)
	defer srv.Close()

	body := validPlaceOrderBody()
	delete(body, "payment_method")
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", testToken, body)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListOrders_NewestFirst(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	f.addProduct("p1", "v1", 10, "10.00")
	srv := newTestServer(f)
	defer srv.Close()

	for range 2 {
		f.carts["u1"] = []cart.Item{{ProductID: "p1", VariationID: "v1", Quantity: 1, Price: decimal.RequireFromString("10.00")}}
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", testToken, validPlaceOrderBody())
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/orders", testToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	orders := decodeInto[[]orderResponse](t, resp)
	require.Len(t, orders, 2)
	assert.Equal(t, f.orders[1].Number, orders[0].OrderNumber)
	assert.Equal(t, f.orders[0].Number, orders[1].OrderNumber)
}

func TestCartFlow(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	f.addProduct("p1", "v1", 10, "12.50")
	srv := newTestServer(f)
	defer srv.Close()

	// Empty cart for a fresh user.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/cart", testToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c := decodeInto[cartResponse](t, resp)
	assert.Empty(t, c.Items)

	// Add an item.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/cart/items", testToken, map[string]any{
		"product_id":   "p1",
		"variation_id": "v1",
		"quantity":     2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c = decodeInto[cartResponse](t, resp)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 25.0, c.Total)

	// Update its quantity.
	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/cart/items/v1", testToken, map[string]any{"quantity": 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c = decodeInto[cartResponse](t, resp)
	assert.Equal(t, 4, c.Items[0].Quantity)
	assert.Equal(t, 50.0, c.Total)

	// Remove it.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/cart/items/v1", testToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c = decodeInto[cartResponse](t, resp)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0.0, c.Total)
}

func TestAddCartItem_UnknownVariation(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	srv := newTestServer(f)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/cart/items", testToken, map[string]any{
		"product_id":   "p1",
		"variation_id": "missing",
		"quantity":     1,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAddCartItem_NonPositiveQuantity(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	f.addProduct("p1", "v1", 5, "10.00")
	srv := newTestServer(f)
	defer srv.Close()

	for _, qty := range []int{0, -1} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/cart/items", testToken, map[string]any{
			"product_id":   "p1",
			"variation_id": "v1",
			"quantity":     qty,
		})
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "quantity %d", qty)
	}
}

func TestListProducts_FilterByCategory(t *testing.T) {
	f := newFixture()
	f.addProduct("p1", "v1", 5, "10.00")
	f.products["p2"] = product.Product{ID: "p2", Name: "Silk Scarf", Category: "accessories"}
	srv := newTestServer(f)
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/products?category=accessories", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	products := decodeInto[[]productResponse](t, resp)
	require.Len(t, products, 1)
	assert.Equal(t, "p2", products[0].ID)
}

func TestGetProduct_NotFound(t *testing.T) {
	srv := newTestServer(newFixture())
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/products/ghost", "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	f.addProduct("p1", "v1", 5, "10.00")
	f.carts["u1"] = []cart.Item{{ProductID: "p1", VariationID: "v1", Quantity: 2, Price: decimal.RequireFromString("10.00")}}
	srv := newTestServer(f)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders", testToken, validPlaceOrderBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	placed := decodeInto[placeOrderResponse](t, resp)
	require.Equal(t, 3, f.variations["v1"].Quantity)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/orders/"+placed.Order.OrderNumber+"/cancel", testToken, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 5, f.variations["v1"].Quantity)
	assert.Equal(t, order.StatusCancelled, f.orders[0].Status)
}

func TestCancelOrder_NotFound(t *testing.T) {
	f := newFixture()
	f.addSession(testToken, "u1")
	srv := newTestServer(f)
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/orders/ORD-00000000-0000/cancel", testToken, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
