// Package product holds the catalog entity and the stock policy applied at
// cart-mutation and checkout time.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tamrhq/supplycart/internal/domain/pricing"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Status is the publication state of a product.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// StockTier classifies a product's stock level for supplier dashboards.
// Only an Expired tier (zero stock) blocks purchase by itself.
type StockTier string

const (
	TierExpired    StockTier = "expired"
	TierNearExpiry StockTier = "near_expiry"
	TierNormal     StockTier = "normal"
)

// Product is a supplier-owned catalog item. The derived price fields in
// Prices are recomputed through pricing.Calculate on every write path and
// never hand-edited.
type Product struct {
	ID                    string
	SupplierID            string
	Name                  string
	Description           string
	BasePrice             decimal.Decimal
	DiscountRate          decimal.Decimal
	Prices                pricing.Breakdown
	StockQty              int
	NearlyOutOfStockLimit int
	Status                Status
	Active                bool
	UnitType              string
}

// Purchasable reports whether qty units of the product can be bought right
// now: the product must be published, active, and hold at least qty stock.
func (p *Product) Purchasable(qty int) bool {
	return p.Status == StatusPublished &&
		p.Active &&
		qty >= 1 &&
		p.StockQty >= qty
}

// Tier classifies the product's current stock level.
func (p *Product) Tier() StockTier {
	switch {
	case p.StockQty == 0:
		return TierExpired
	case p.StockQty <= p.NearlyOutOfStockLimit:
		return TierNearExpiry
	default:
		return TierNormal
	}
}

// Reprice recomputes every derived price field from BasePrice, DiscountRate,
// and the given taxes. It must be called whenever any of those inputs change.
func (p *Product) Reprice(taxes []pricing.Tax) error {
	b, err := pricing.Calculate(p.BasePrice, p.DiscountRate, taxes)
	if err != nil {
		return errors.Wrapf(err, "reprice product %s", p.ID)
	}
	p.Prices = b
	return nil
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// List returns the published, active catalog.
	List(ctx context.Context) ([]Product, error)
	Upsert(ctx context.Context, p *Product) error
}
