package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamrhq/supplycart/internal/events"
)

func pendingOrder(id string) *Order {
	return &Order{ID: id, UserID: "u1", SupplierID: "s1", Status: StatusPending}
}

func TestHandleCallback_PaidDecrementsStock(t *testing.T) {
	repo := &mockOrderRepo{ordersByID: map[string]*Order{"o1": pendingOrder("o1")}}
	svc := NewPaymentService(repo, events.Noop{})

	require.NoError(t, svc.HandleCallback(context.Background(), "o1", PaymentResultPaid))

	require.Len(t, repo.settlements, 1)
	s := repo.settlements[0]
	assert.Equal(t, "o1", s.OrderID)
	assert.Equal(t, StatusPaid, s.OrderStatus)
	assert.Equal(t, PaymentPaid, s.PaymentStatus)
	assert.True(t, s.DecrementStock)
}

func TestHandleCallback_FailedKeepsStock(t *testing.T) {
	repo := &mockOrderRepo{ordersByID: map[string]*Order{"o1": pendingOrder("o1")}}
	svc := NewPaymentService(repo, events.Noop{})

	require.NoError(t, svc.HandleCallback(context.Background(), "o1", PaymentResultFailed))

	require.Len(t, repo.settlements, 1)
	s := repo.settlements[0]
	assert.Equal(t, StatusFailed, s.OrderStatus)
	assert.Equal(t, PaymentFailed, s.PaymentStatus)
	assert.False(t, s.DecrementStock)
}

func TestHandleCallback_UnknownResult(t *testing.T) {
	repo := &mockOrderRepo{ordersByID: map[string]*Order{"o1": pendingOrder("o1")}}
	svc := NewPaymentService(repo, events.Noop{})

	err := svc.HandleCallback(context.Background(), "o1", PaymentResult("refunded"))
	require.ErrorIs(t, err, ErrUnknownPaymentResult)
	assert.Empty(t, repo.settlements)
}

func TestHandleCallback_UnknownOrder(t *testing.T) {
	repo := &mockOrderRepo{ordersByID: map[string]*Order{}}
	svc := NewPaymentService(repo, events.Noop{})

	err := svc.HandleCallback(context.Background(), "missing", PaymentResultPaid)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHandleCallback_ConcurrentPaidSettlesOnce(t *testing.T) {
	repo := &mockOrderRepo{ordersByID: map[string]*Order{"o1": pendingOrder("o1")}}
	// Both callbacks observe the order as still pending, as two connections
	// reading before either settlement commits would.
	repo.getOverride = func(string) (*Order, error) { return pendingOrder("o1"), nil }
	svc := NewPaymentService(repo, events.Noop{})

	require.NoError(t, svc.HandleCallback(context.Background(), "o1", PaymentResultPaid))

	err := svc.HandleCallback(context.Background(), "o1", PaymentResultPaid)
	var trErr *InvalidTransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, StatusPaid, trErr.From)

	// Only the first settlement landed, so stock is decremented exactly once.
	require.Len(t, repo.settlements, 1)
	assert.True(t, repo.settlements[0].DecrementStock)
}

func TestHandleCallback_RejectsInvalidTransition(t *testing.T) {
	delivered := pendingOrder("o1")
	delivered.Status = StatusDelivered
	repo := &mockOrderRepo{ordersByID: map[string]*Order{"o1": delivered}}
	svc := NewPaymentService(repo, events.Noop{})

	err := svc.HandleCallback(context.Background(), "o1", PaymentResultPaid)

	var trErr *InvalidTransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, StatusDelivered, trErr.From)
	assert.Equal(t, StatusPaid, trErr.To)
	assert.Empty(t, repo.settlements)
}
