// Package events publishes order lifecycle events to interested consumers.
// Publishing is best-effort and happens after the database transaction has
// committed; a delivery failure is logged and never fails the request.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderCreated is emitted once a checkout has been persisted.
type OrderCreated struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	SupplierID string          `json:"supplier_id"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
}

// OrderStatusChanged is emitted on every order status transition.
type OrderStatusChanged struct {
	OrderID       string    `json:"order_id"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	PaymentStatus string    `json:"payment_status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher delivers order lifecycle events.
type Publisher interface {
	OrderCreated(ctx context.Context, e OrderCreated)
	OrderStatusChanged(ctx context.Context, e OrderStatusChanged)
}

// Noop discards all events. Used when no broker is configured.
type Noop struct{}

func (Noop) OrderCreated(context.Context, OrderCreated)             {}
func (Noop) OrderStatusChanged(context.Context, OrderStatusChanged) {}
