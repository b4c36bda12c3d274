//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"strings"
	"testing"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-\d{4}$`)

func TestPlaceOrder_NoAuth(t *testing.T) {
	resp := doPost(t, "/api/orders", testOrderRequest())
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_InvalidToken(t *testing.T) {
	resp := doPostWithAuth(t, "/api/orders", testOrderRequest(), "wrong-token")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	clearCart(t)

	resp := doPostWithAuth(t, "/api/orders", testOrderRequest(), testSessionToken)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Message != "cart is empty" {
		t.Errorf("message: got %q, want %q", body.Message, "cart is empty")
	}
}

func TestPlaceOrder_MissingAddress(t *testing.T) {
	clearCart(t)
	addToCart(t, "prod-linen-shirt", "var-linen-s-white", 1)

	req := testOrderRequest()
	req.BillingAddress = addressJSON{}
	resp := doPostWithAuth(t, "/api/orders", req, testSessionToken)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceOrder_CheckoutFlow(t *testing.T) {
	clearCart(t)
	addToCart(t, "prod-linen-shirt", "var-linen-m-white", 2)   // 2 x 79.00
	addToCart(t, "prod-silk-scarf", "var-scarf-os-paisley", 1) // 1 x 65.00

	before := variationStock(t, "prod-linen-shirt", "var-linen-m-white")

	resp := doPostWithAuth(t, "/api/orders", testOrderRequest(), testSessionToken)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	placed := decodeJSON[placeOrderResponse](t, resp)
	order := placed.Order
	if !orderNumberPattern.MatchString(order.OrderNumber) {
		t.Errorf("order number %q does not match expected format", order.OrderNumber)
	}
	if order.Total != 223 {
		t.Errorf("total: got %v, want 223", order.Total)
	}
	if order.Status != "pending" {
		t.Errorf("status: got %q, want pending", order.Status)
	}
	if order.PaymentStatus != "pending" {
		t.Errorf("payment status: got %q, want pending", order.PaymentStatus)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	for _, item := range order.Items {
		if item.Name == "" || item.Size == "" {
			t.Errorf("item %s: snapshot missing name or size", item.VariationID)
		}
	}

	// Stock was decremented and the cart emptied.
	after := variationStock(t, "prod-linen-shirt", "var-linen-m-white")
	if after != before-2 {
		t.Errorf("stock: got %d, want %d", after, before-2)
	}

	cartResp := doGetWithAuth(t, "/api/cart", testSessionToken)
	defer cartResp.Body.Close()
	cart := decodeJSON[cartResponse](t, cartResp)
	if len(cart.Items) != 0 {
		t.Errorf("cart not cleared: %d items remain", len(cart.Items))
	}
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	clearCart(t)
	// The chore coat L has only 4 units seeded.
	addToCart(t, "prod-chore-coat", "var-chore-l-olive", 50)

	before := variationStock(t, "prod-chore-coat", "var-chore-l-olive")

	resp := doPostWithAuth(t, "/api/orders", testOrderRequest(), testSessionToken)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if !strings.Contains(body.Message, "Cotton Chore Coat") {
		t.Errorf("message %q does not name the product", body.Message)
	}

	// The failed checkout must not touch stock.
	after := variationStock(t, "prod-chore-coat", "var-chore-l-olive")
	if after != before {
		t.Errorf("stock changed on failed checkout: %d -> %d", before, after)
	}

	clearCart(t)
}

func TestListOrders(t *testing.T) {
	clearCart(t)
	addToCart(t, "prod-leather-belt", "var-belt-85-tan", 1)

	resp := doPostWithAuth(t, "/api/orders", testOrderRequest(), testSessionToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("place order: expected 200, got %d", resp.StatusCode)
	}
	placed := decodeJSON[placeOrderResponse](t, resp)
	resp.Body.Close()

	listResp := doGetWithAuth(t, "/api/orders", testSessionToken)
	defer listResp.Body.Close()

	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", listResp.StatusCode)
	}

	orders := decodeJSON[[]orderResponse](t, listResp)
	if len(orders) == 0 {
		t.Fatal("expected at least one order")
	}
	// Newest first: the order just placed leads the list.
	if orders[0].OrderNumber != placed.Order.OrderNumber {
		t.Errorf("first order: got %q, want %q", orders[0].OrderNumber, placed.Order.OrderNumber)
	}
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	clearCart(t)
	addToCart(t, "prod-merino-sweater", "var-merino-m-navy", 2)

	before := variationStock(t, "prod-merino-sweater", "var-merino-m-navy")

	resp := doPostWithAuth(t, "/api/orders", testOrderRequest(), testSessionToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("place order: expected 200, got %d", resp.StatusCode)
	}
	placed := decodeJSON[placeOrderResponse](t, resp)
	resp.Body.Close()

	cancelResp := doPostWithAuth(t, "/api/orders/"+placed.Order.OrderNumber+"/cancel", nil, testSessionToken)
	defer cancelResp.Body.Close()

	if cancelResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", cancelResp.StatusCode)
	}

	after := variationStock(t, "prod-merino-sweater", "var-merino-m-navy")
	if after != before {
		t.Errorf("stock after cancel: got %d, want %d", after, before)
	}

	// Cancelling twice is rejected.
	againResp := doPostWithAuth(t, "/api/orders/"+placed.Order.OrderNumber+"/cancel", nil, testSessionToken)
	defer againResp.Body.Close()
	if againResp.StatusCode != http.StatusConflict {
		t.Errorf("second cancel: expected 409, got %d", againResp.StatusCode)
	}
}

func TestCancelOrder_NotFound(t *testing.T) {
	resp := doPostWithAuth(t, "/api/orders/ORD-00000000-0000/cancel", nil, testSessionToken)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCartEndpoints_RequireAuth(t *testing.T) {
	resp := doGet(t, "/api/cart")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

// variationStock reads the current quantity of a variation from the public
// product endpoint.
func variationStock(t *testing.T, productID, variationID string) int {
	t.Helper()

	resp := doGet(t, "/api/products/"+productID)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get product %s: status %d", productID, resp.StatusCode)
	}

	p := decodeJSON[productResponse](t, resp)
	for _, v := range p.Variations {
		if v.ID == variationID {
			return v.Quantity
		}
	}
	t.Fatalf("variation %s not found on product %s", variationID, productID)
	return 0
}
