package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tamrhq/supplycart/internal/domain/product"
	"github.com/tamrhq/supplycart/internal/domain/settings"
	"github.com/tamrhq/supplycart/internal/domain/supplier"
)

// Service implements cart mutations and aggregation over live product state.
type Service struct {
	carts     Repository
	products  product.Repository
	suppliers supplier.Repository
	settings  *settings.Store
	now       func() time.Time
}

// NewService creates a cart Service with the required domain dependencies.
func NewService(
	carts Repository,
	products product.Repository,
	suppliers supplier.Repository,
	st *settings.Store,
) *Service {
	return &Service{
		carts:     carts,
		products:  products,
		suppliers: suppliers,
		settings:  st,
		now:       time.Now,
	}
}

// Get returns the buyer's current cart.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddLine inserts a product into the buyer's cart or, when the line already
// exists, increments its quantity by summing. The cart must stay homogeneous:
// a product from a different supplier than the existing lines is rejected
// with ErrSupplierConflict and the line set is left unchanged. The product
// must be purchasable for the resulting quantity.
func (s *Service) AddLine(ctx context.Context, userID, productID string, quantity int) (*Line, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &InvalidProductError{ProductID: productID, Reason: ReasonNotFound}
		}
		return nil, errors.Wrapf(err, "get product %s", productID)
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	if err := s.checkSupplierHomogeneity(ctx, c, p.SupplierID); err != nil {
		return nil, err
	}

	newQty := quantity
	if existing := c.Line(productID); existing != nil {
		newQty += existing.Quantity
	}
	if !p.Purchasable(newQty) {
		return nil, &InvalidProductError{ProductID: productID, Reason: PurchaseFailReason(p, newQty)}
	}

	// The repository adds the delta to the stored quantity itself, so a
	// concurrent add between the read above and this write is not lost.
	stored, err := s.carts.AddLine(ctx, userID, Line{
		ProductID:     productID,
		Quantity:      quantity,
		PriceSnapshot: p.Prices.PriceAfterDiscount,
		AddedAt:       s.now(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "add cart line")
	}
	return stored, nil
}

// RemoveLine deletes a line from the cart. Removing an absent line succeeds.
func (s *Service) RemoveLine(ctx context.Context, userID, productID string) error {
	if err := s.carts.RemoveLine(ctx, userID, productID); err != nil {
		return errors.Wrap(err, "remove cart line")
	}
	return nil
}

// Clear empties the cart. Clearing an empty cart succeeds.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

// Totals aggregates the cart from current product records. Lines whose
// product no longer exists or is inactive are skipped here; checkout
// surfaces them as invalid instead.
func (s *Service) Totals(ctx context.Context, userID string) (*Totals, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	byID, lines, err := s.resolveLines(ctx, c)
	if err != nil {
		return nil, err
	}

	t := &Totals{
		Total:           decimal.Zero,
		TotalDiscount:   decimal.Zero,
		TotalAfterTaxes: decimal.Zero,
		TotalCountryTax: decimal.Zero,
	}
	for _, l := range lines {
		p := byID[l.ProductID]
		qty := decimal.NewFromInt(int64(l.Quantity))

		t.Total = t.Total.Add(p.Prices.PriceAfterDiscount.Mul(qty))
		t.TotalDiscount = t.TotalDiscount.Add(p.Prices.PriceBeforeDiscount.Sub(p.Prices.PriceAfterDiscount).Mul(qty))
		t.TotalAfterTaxes = t.TotalAfterTaxes.Add(p.Prices.PriceAfterTaxes.Mul(qty))
		t.TotalCountryTax = t.TotalCountryTax.Add(p.Prices.CountryTax.Mul(qty))
		t.TotalProducts++
	}

	t.Total = t.Total.Round(2)
	t.TotalDiscount = t.TotalDiscount.Round(2)
	t.TotalAfterTaxes = t.TotalAfterTaxes.Round(2)
	t.TotalCountryTax = t.TotalCountryTax.Round(2)

	return t, nil
}

// SupplierRequirements groups the cart by supplier and reports each group's
// subtotal against the supplier's configured minimum order amount. In
// practice a non-empty cart holds a single supplier, but the computation
// generalizes.
func (s *Service) SupplierRequirements(ctx context.Context, userID string) ([]SupplierRequirement, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	byID, lines, err := s.resolveLines(ctx, c)
	if err != nil {
		return nil, err
	}

	subtotals := make(map[string]decimal.Decimal)
	order := make([]string, 0, 1)
	for _, l := range lines {
		p := byID[l.ProductID]
		qty := decimal.NewFromInt(int64(l.Quantity))
		if _, ok := subtotals[p.SupplierID]; !ok {
			order = append(order, p.SupplierID)
		}
		subtotals[p.SupplierID] = subtotals[p.SupplierID].Add(p.Prices.PriceAfterDiscount.Mul(qty))
	}

	reqs := make([]SupplierRequirement, 0, len(order))
	for _, supplierID := range order {
		current := subtotals[supplierID].Round(2)

		minAmount, err := s.settings.MinOrderAmount(ctx, supplierID)
		if err != nil {
			return nil, err
		}

		name := ""
		if sup, err := s.suppliers.GetByID(ctx, supplierID); err == nil {
			name = sup.Name
		} else if !errors.Is(err, supplier.ErrNotFound) {
			return nil, errors.Wrapf(err, "get supplier %s", supplierID)
		}

		residual := minAmount.Sub(current).Round(2)
		if residual.IsNegative() {
			residual = decimal.Zero
		}

		reqs = append(reqs, SupplierRequirement{
			SupplierID:     supplierID,
			SupplierName:   name,
			CurrentTotal:   current,
			MinOrderAmount: minAmount,
			ResidualAmount: residual,
			Completed:      current.GreaterThanOrEqual(minAmount),
		})
	}

	return reqs, nil
}

// resolveLines batch-fetches the products behind the qualifying lines and
// drops lines whose product is missing or inactive.
func (s *Service) resolveLines(ctx context.Context, c *Cart) (map[string]product.Product, []Line, error) {
	qualifying := c.Qualifying()
	if len(qualifying) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, len(qualifying))
	for i, l := range qualifying {
		ids[i] = l.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get cart products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		if p.Active {
			byID[p.ID] = p
		}
	}

	lines := make([]Line, 0, len(qualifying))
	for _, l := range qualifying {
		if _, ok := byID[l.ProductID]; ok {
			lines = append(lines, l)
		}
	}
	return byID, lines, nil
}

// checkSupplierHomogeneity rejects a candidate supplier that differs from
// the supplier of any qualifying line already in the cart.
func (s *Service) checkSupplierHomogeneity(ctx context.Context, c *Cart, candidateSupplierID string) error {
	qualifying := c.Qualifying()
	if len(qualifying) == 0 {
		return nil
	}

	ids := make([]string, len(qualifying))
	for i, l := range qualifying {
		ids[i] = l.ProductID
	}
	existing, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get cart products")
	}
	for _, p := range existing {
		if p.SupplierID != candidateSupplierID {
			return ErrSupplierConflict
		}
	}
	return nil
}

// PurchaseFailReason classifies why a product failed the stock policy for
// the given quantity.
func PurchaseFailReason(p *product.Product, qty int) FailReason {
	switch {
	case p.Status != product.StatusPublished:
		return ReasonUnpublished
	case !p.Active:
		return ReasonInactive
	case p.StockQty == 0:
		return ReasonOutOfStock
	default:
		return ReasonInsufficientStock
	}
}
