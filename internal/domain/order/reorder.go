package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/tamrhq/supplycart/internal/domain/cart"
)

// LineFailure reports one order line that could not be re-added to the cart.
type LineFailure struct {
	ProductID string
	Reason    cart.FailReason
}

// ReorderResult aggregates per-line outcomes of a reorder attempt.
type ReorderResult struct {
	AddedCount int
	Succeeded  []cart.Line
	Errors     []LineFailure
}

// ReorderService re-inserts a historical order's lines into the buyer's
// current cart, re-validating availability per line.
type ReorderService struct {
	orders Repository
	cart   *cart.Service
}

// NewReorderService creates a ReorderService.
func NewReorderService(orders Repository, cartSvc *cart.Service) *ReorderService {
	return &ReorderService{orders: orders, cart: cartSvc}
}

// Reorder attempts to add each line of the historical order back into the
// buyer's cart with its original quantity. Individual line failures are
// collected, never raised; only an unknown order or a foreign owner aborts.
func (s *ReorderService) Reorder(ctx context.Context, userID, orderID string) (*ReorderResult, error) {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.UserID != userID {
		return nil, ErrNotOwner
	}

	items, err := s.orders.ItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "load order lines")
	}

	result := &ReorderResult{}
	for _, item := range items {
		line, err := s.cart.AddLine(ctx, userID, item.ProductID, item.Quantity)
		if err == nil {
			result.AddedCount++
			result.Succeeded = append(result.Succeeded, *line)
			continue
		}

		var ipErr *cart.InvalidProductError
		switch {
		case errors.As(err, &ipErr):
			result.Errors = append(result.Errors, LineFailure{ProductID: ipErr.ProductID, Reason: ipErr.Reason})
		case errors.Is(err, cart.ErrSupplierConflict):
			result.Errors = append(result.Errors, LineFailure{ProductID: item.ProductID, Reason: cart.ReasonSupplierConflict})
		default:
			return nil, errors.Wrapf(err, "re-add product %s", item.ProductID)
		}
	}

	return result, nil
}
