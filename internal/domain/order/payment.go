package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/tamrhq/supplycart/internal/events"
)

// PaymentResult is the outcome reported by the payment gateway callback.
type PaymentResult string

const (
	PaymentResultPaid   PaymentResult = "paid"
	PaymentResultFailed PaymentResult = "failed"
)

// ErrUnknownPaymentResult is returned for a callback status outside
// {paid, failed}.
var ErrUnknownPaymentResult = errors.New("unknown payment result")

// PaymentService applies payment gateway callbacks to orders.
type PaymentService struct {
	orders Repository
	events events.Publisher
	now    func() time.Time
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(orders Repository, pub events.Publisher) *PaymentService {
	return &PaymentService{orders: orders, events: pub, now: time.Now}
}

// HandleCallback settles an order after the gateway reports a result. On
// paid: the order moves to Paid, the payment records become Paid, and every
// line's product stock is decremented by the ordered quantity (floored at
// zero, without re-validation) in the same transaction. On failed: statuses
// move to Failed with no inventory effect.
func (s *PaymentService) HandleCallback(ctx context.Context, orderID string, result PaymentResult) error {
	var (
		orderStatus Status
		payStatus   PaymentStatus
		decrement   bool
	)
	switch result {
	case PaymentResultPaid:
		orderStatus, payStatus, decrement = StatusPaid, PaymentPaid, true
	case PaymentResultFailed:
		orderStatus, payStatus = StatusFailed, PaymentFailed
	default:
		return ErrUnknownPaymentResult
	}

	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if !CanTransition(ord.Status, orderStatus) {
		return &InvalidTransitionError{From: ord.Status, To: orderStatus}
	}

	err = s.orders.SettlePayment(ctx, Settlement{
		OrderID:        orderID,
		PrevStatus:     ord.Status,
		OrderStatus:    orderStatus,
		PaymentStatus:  payStatus,
		DecrementStock: decrement,
	})
	var trErr *InvalidTransitionError
	if errors.As(err, &trErr) {
		// A concurrent callback settled the order between our read and the
		// guarded update.
		return trErr
	}
	if err != nil {
		return errors.Wrap(err, "settle payment")
	}

	s.events.OrderStatusChanged(ctx, events.OrderStatusChanged{
		OrderID:       orderID,
		From:          string(ord.Status),
		To:            string(orderStatus),
		PaymentStatus: string(payStatus),
		OccurredAt:    s.now(),
	})

	return nil
}
