// Package order holds the order aggregate, its status state machine, and the
// checkout, payment settlement, and reorder services.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrNotOwner is returned when a buyer acts on another buyer's order.
	ErrNotOwner = errors.New("order belongs to another buyer")
	// ErrEmptyCart is returned when checkout finds no line with quantity > 0.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrOrganizationNotAllowed is returned for an organization order placed
	// by a buyer without an approved organization membership.
	ErrOrganizationNotAllowed = errors.New("organization orders require an approved membership")
)

// MinOrderError reports a cart subtotal below the supplier's configured
// minimum order amount.
type MinOrderError struct {
	SupplierID     string
	SupplierName   string
	MinOrderAmount decimal.Decimal
	CurrentTotal   decimal.Decimal
}

func (e *MinOrderError) Error() string {
	return fmt.Sprintf("order total %s is below the minimum order amount %s for supplier %s",
		e.CurrentTotal, e.MinOrderAmount, e.SupplierName)
}

// Type distinguishes individual from organization purchases.
type Type string

const (
	TypeIndividual   Type = "individual"
	TypeOrganization Type = "organization"
)

// PaymentStatus tracks the payment sub-state independently of order status.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Order is the persisted order header. Total, TotalDiscount, and
// TotalProducts are denormalized aggregates recomputed transactionally from
// the order's lines; they are never mutated anywhere else.
type Order struct {
	ID            string
	UserID        string
	SupplierID    string
	Status        Status
	Type          Type
	Total         decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalProducts int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// Detail carries the order's shipping and payment information.
type Detail struct {
	OrderID           string
	ShippingAddressID string
	PaymentMethod     string
	ShippingMethod    string
	PaymentStatus     PaymentStatus
	TrackingNumber    string
	Notes             string
}

// Item is an immutable order line: product, quantity, and the price frozen
// at order-creation time. It is never recomputed.
type Item struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Payment is the payment record created at checkout and transitioned by the
// gateway callback.
type Payment struct {
	ID          string
	ReferenceID string // order id
	Method      string
	Status      PaymentStatus
	Amount      decimal.Decimal
	UserID      string
}

// Settlement describes the status updates applied on a payment callback.
type Settlement struct {
	OrderID string
	// PrevStatus is the order status observed before the transition. The
	// settlement applies only while the order still holds it, so a
	// concurrent or replayed callback cannot settle the same order twice.
	PrevStatus    Status
	OrderStatus   Status
	PaymentStatus PaymentStatus
	// DecrementStock applies the ordered quantities against product stock,
	// floored at zero. Stock is not re-validated at this point: the
	// commitment was made at order time.
	DecrementStock bool
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists the order header, detail, lines, and payment, and
	// clears the buyer's cart, all in one transaction. When a concurrent
	// checkout already emptied the cart it returns ErrEmptyCart and nothing
	// is written.
	Create(ctx context.Context, ord *Order, detail *Detail, items []Item, pay *Payment) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ItemsByOrder(ctx context.Context, orderID string) ([]Item, error)
	// SettlePayment applies a payment callback in one transaction: order
	// status, detail payment status, payment row, and (optionally) the
	// stock decrement for every order line. The status update is guarded by
	// s.PrevStatus; when the order moved on in the meantime it returns
	// InvalidTransitionError and writes nothing.
	SettlePayment(ctx context.Context, s Settlement) error
}
