// Package cart owns the buyer's line items and computes cart-wide totals
// from live product prices.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrSupplierConflict is returned when a line would mix suppliers in one cart.
var ErrSupplierConflict = errors.New("cart already holds items from a different supplier")

// ErrInvalidQuantity is returned for a requested quantity below 1.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// FailReason is the typed cause of a rejected line insertion.
type FailReason string

const (
	ReasonNotFound          FailReason = "not_found"
	ReasonUnpublished       FailReason = "unpublished"
	ReasonInactive          FailReason = "inactive"
	ReasonOutOfStock        FailReason = "out_of_stock"
	ReasonInsufficientStock FailReason = "insufficient_stock"
	ReasonSupplierConflict  FailReason = "supplier_conflict"
)

// InvalidProductError indicates a product cannot be added to the cart.
type InvalidProductError struct {
	ProductID string
	Reason    FailReason
}

func (e *InvalidProductError) Error() string {
	return fmt.Sprintf("product %s cannot be purchased: %s", e.ProductID, e.Reason)
}

// Line is one buyer/product/quantity tuple. PriceSnapshot records the
// product's discounted price at insertion time; it is retained for display
// only and superseded by the live product price at totals and checkout time.
type Line struct {
	ProductID     string
	Quantity      int
	PriceSnapshot decimal.Decimal
	AddedAt       time.Time
}

// Cart is a buyer's single active cart. A line with zero quantity is
// tolerated and treated as absent for totals and checkout.
type Cart struct {
	UserID string
	Lines  []Line
}

// Qualifying returns the lines with quantity > 0.
func (c *Cart) Qualifying() []Line {
	out := make([]Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		if l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return out
}

// Line returns the cart line for productID, or nil when absent.
func (c *Cart) Line(productID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Totals aggregates a cart from live product prices. Each sum is rounded to
// 2 decimal places once, after summation. TotalProducts counts distinct
// qualifying lines, not the sum of quantities.
type Totals struct {
	Total           decimal.Decimal
	TotalProducts   int
	TotalDiscount   decimal.Decimal
	TotalAfterTaxes decimal.Decimal
	TotalCountryTax decimal.Decimal
}

// SupplierRequirement reports one supplier's subtotal against their
// configured minimum order amount.
type SupplierRequirement struct {
	SupplierID     string
	SupplierName   string
	CurrentTotal   decimal.Decimal
	MinOrderAmount decimal.Decimal
	ResidualAmount decimal.Decimal
	Completed      bool
}

// Repository defines persistence operations for carts. Implementations must
// serialize concurrent mutations of one buyer's line set.
type Repository interface {
	// Get returns the buyer's cart, empty when no lines exist.
	Get(ctx context.Context, userID string) (*Cart, error)
	// AddLine inserts the line or adds its quantity to the existing line for
	// the same product. The addition must be atomic: two concurrent calls
	// both land, never overwriting each other. The stored line is returned
	// with the resulting quantity; an existing line keeps its added_at.
	AddLine(ctx context.Context, userID string, line Line) (*Line, error)
	// RemoveLine deletes a line; removing an absent line succeeds silently.
	RemoveLine(ctx context.Context, userID, productID string) error
	// Clear deletes every line; clearing an empty cart succeeds silently.
	Clear(ctx context.Context, userID string) error
}
