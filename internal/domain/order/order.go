package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order persistence.
var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateOrderNumber is returned when an insert collides with an
	// existing order number. Callers regenerate the number and retry.
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	// ErrInvalidTransition is returned when a status change is not allowed by
	// the order lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status is the fulfillment state of an order.
type Status string

// Order lifecycle: pending -> processing -> shipped -> delivered, with
// cancellation and returns as side branches.
const (
	StatusPending         Status = "pending"
	StatusProcessing      Status = "processing"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
	StatusReturnRequested Status = "return_requested"
	StatusReturned        Status = "returned"
)

var statusTransitions = map[Status][]Status{
	StatusPending:         {StatusProcessing, StatusCancelled},
	StatusProcessing:      {StatusShipped, StatusCancelled},
	StatusShipped:         {StatusDelivered},
	StatusDelivered:       {StatusReturnRequested},
	StatusReturnRequested: {StatusReturned, StatusDelivered},
}

// CanTransition reports whether the order may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentFailed},
	PaymentProcessing: {PaymentCompleted, PaymentFailed},
	PaymentCompleted:  {PaymentRefunded},
	PaymentFailed:     {PaymentProcessing},
}

// CanTransition reports whether the payment may move from s to next.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Address is a shipping or billing address captured at checkout.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Valid reports whether the required address fields are present.
func (a Address) Valid() bool {
	return a.Name != "" && a.Line1 != "" && a.City != "" && a.PostalCode != "" && a.Country != ""
}

// Item is an immutable line-item snapshot taken at purchase time. It carries
// no reference to the live variation: later catalog edits do not change what
// the customer bought.
type Item struct {
	ProductID   string          `json:"product_id"`
	VariationID string          `json:"variation_id"`
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// Order is the record of a completed checkout. Created exactly once, never
// deleted; only its status fields change afterwards.
type Order struct {
	Number          string
	UserID          string
	Items           []Item
	Total           decimal.Decimal
	Status          Status
	PaymentStatus   PaymentStatus
	PaymentMethod   string
	ShippingAddress Address
	BillingAddress  Address
	CreatedAt       time.Time
}

// Repository defines persistence operations for orders. Create must enforce
// order number uniqueness and surface collisions as ErrDuplicateOrderNumber.
// UpdateStatus and UpdatePaymentStatus must validate the transition against
// the stored state at write time, not at an earlier read, and return
// ErrInvalidTransition when a concurrent transition got there first.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	UpdateStatus(ctx context.Context, number string, status Status) error
	UpdatePaymentStatus(ctx context.Context, number string, status PaymentStatus) error
}
