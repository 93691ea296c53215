package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tamrhq/supplycart/internal/domain/cart"
	"github.com/tamrhq/supplycart/internal/domain/organization"
	"github.com/tamrhq/supplycart/internal/domain/product"
	"github.com/tamrhq/supplycart/internal/domain/settings"
	"github.com/tamrhq/supplycart/internal/domain/supplier"
	"github.com/tamrhq/supplycart/internal/events"
)

// CheckoutRequest holds the input for converting a cart into an order.
type CheckoutRequest struct {
	UserID            string
	ShippingAddressID string
	PaymentMethod     string
	ShippingMethod    string
	OrderType         Type
	Notes             string
}

// CheckoutResult holds the persisted order and its companions.
type CheckoutResult struct {
	Order   *Order
	Detail  *Detail
	Items   []Item
	Payment *Payment
}

// CheckoutService validates a cart end-to-end and atomically converts it
// into a persisted order. Stock is not touched here; it is decremented only
// on confirmed payment.
type CheckoutService struct {
	carts     cart.Repository
	products  product.Repository
	suppliers supplier.Repository
	settings  *settings.Store
	orders    Repository
	orgs      organization.Membership
	events    events.Publisher
	now       func() time.Time
}

// NewCheckoutService creates a CheckoutService with the required
// dependencies.
func NewCheckoutService(
	carts cart.Repository,
	products product.Repository,
	suppliers supplier.Repository,
	st *settings.Store,
	orders Repository,
	orgs organization.Membership,
	pub events.Publisher,
) *CheckoutService {
	return &CheckoutService{
		carts:     carts,
		products:  products,
		suppliers: suppliers,
		settings:  st,
		orders:    orders,
		orgs:      orgs,
		events:    pub,
		now:       time.Now,
	}
}

// Checkout validates the buyer's cart against live product state and, if
// every check passes, persists the order, detail, lines, and pending payment
// and empties the cart in one atomic operation. Any failure leaves cart and
// inventory untouched.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	c, err := s.carts.Get(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}

	lines := c.Qualifying()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	products, err := s.validateLines(ctx, lines)
	if err != nil {
		return nil, err
	}
	supplierID := products[lines[0].ProductID].SupplierID

	if req.OrderType == TypeOrganization {
		approved, err := s.orgs.IsApprovedMember(ctx, req.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "check organization membership")
		}
		if !approved {
			return nil, ErrOrganizationNotAllowed
		}
	}

	items, total, totalDiscount := buildItems(lines, products)

	if err := s.checkMinOrderAmount(ctx, supplierID, total); err != nil {
		return nil, err
	}

	now := s.now()
	ord := &Order{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		SupplierID:    supplierID,
		Status:        StatusPending,
		Type:          req.OrderType,
		Total:         total,
		TotalDiscount: totalDiscount,
		TotalProducts: len(items),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	detail := &Detail{
		OrderID:           ord.ID,
		ShippingAddressID: req.ShippingAddressID,
		PaymentMethod:     req.PaymentMethod,
		ShippingMethod:    req.ShippingMethod,
		PaymentStatus:     PaymentPending,
		Notes:             req.Notes,
	}
	pay := &Payment{
		ID:          uuid.New().String(),
		ReferenceID: ord.ID,
		Method:      req.PaymentMethod,
		Status:      PaymentPending,
		Amount:      total,
		UserID:      req.UserID,
	}

	if err := s.orders.Create(ctx, ord, detail, items, pay); err != nil {
		if errors.Is(err, ErrEmptyCart) {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "create order")
	}

	s.events.OrderCreated(ctx, events.OrderCreated{
		OrderID:    ord.ID,
		UserID:     ord.UserID,
		SupplierID: ord.SupplierID,
		Total:      ord.Total,
		CreatedAt:  ord.CreatedAt,
	})

	return &CheckoutResult{Order: ord, Detail: detail, Items: items, Payment: pay}, nil
}

// validateLines re-checks every qualifying line against live product state:
// the product must still be purchasable for the requested quantity, and all
// lines must belong to one supplier.
func (s *CheckoutService) validateLines(ctx context.Context, lines []cart.Line) (map[string]product.Product, error) {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get cart products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	supplierID := ""
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, &cart.InvalidProductError{ProductID: l.ProductID, Reason: cart.ReasonNotFound}
		}
		if !p.Purchasable(l.Quantity) {
			return nil, &cart.InvalidProductError{ProductID: l.ProductID, Reason: cart.PurchaseFailReason(&p, l.Quantity)}
		}
		// The insert-time guard keeps carts homogeneous; re-check anyway
		// since lines may predate a supplier change on the product.
		if supplierID == "" {
			supplierID = p.SupplierID
		} else if p.SupplierID != supplierID {
			return nil, cart.ErrSupplierConflict
		}
	}
	return byID, nil
}

func (s *CheckoutService) checkMinOrderAmount(ctx context.Context, supplierID string, total decimal.Decimal) error {
	minAmount, err := s.settings.MinOrderAmount(ctx, supplierID)
	if err != nil {
		return err
	}
	if total.GreaterThanOrEqual(minAmount) {
		return nil
	}

	name := supplierID
	if sup, err := s.suppliers.GetByID(ctx, supplierID); err == nil {
		name = sup.Name
	}
	return &MinOrderError{
		SupplierID:     supplierID,
		SupplierName:   name,
		MinOrderAmount: minAmount,
		CurrentTotal:   total,
	}
}

// buildItems freezes the live discounted price onto each order line and
// recomputes the denormalized aggregates, rounded once after summation.
func buildItems(lines []cart.Line, products map[string]product.Product) ([]Item, decimal.Decimal, decimal.Decimal) {
	items := make([]Item, len(lines))
	total := decimal.Zero
	totalDiscount := decimal.Zero

	for i, l := range lines {
		p := products[l.ProductID]
		qty := decimal.NewFromInt(int64(l.Quantity))

		items[i] = Item{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     p.Prices.PriceAfterDiscount,
		}
		total = total.Add(p.Prices.PriceAfterDiscount.Mul(qty))
		totalDiscount = totalDiscount.Add(p.Prices.PriceBeforeDiscount.Sub(p.Prices.PriceAfterDiscount).Mul(qty))
	}

	return items, total.Round(2), totalDiscount.Round(2)
}
