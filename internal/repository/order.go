package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tamrhq/supplycart/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, supplier_id, status, order_type, total, total_discount, total_products, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	createOrderDetailSQL = `INSERT INTO order_details (order_id, shipping_address_id, payment_method, shipping_method, payment_status, tracking_number, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	createOrderProductSQL = `INSERT INTO order_products (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)`

	createPaymentSQL = `INSERT INTO payments (id, reference_id, method, status, amount, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)`

	clearCartForOrderSQL = `DELETE FROM cart_lines WHERE user_id = $1 AND quantity > 0`

	getOrderByIDSQL = `SELECT id, user_id, supplier_id, status, order_type, total, total_discount, total_products, created_at, updated_at, deleted_at
		FROM orders WHERE id = $1 AND deleted_at IS NULL`

	getOrderItemsSQL = `SELECT product_id, quantity, price
		FROM order_products WHERE order_id = $1 ORDER BY product_id`

	settleOrderSQL = `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3 AND deleted_at IS NULL`

	getOrderStatusSQL = `SELECT status FROM orders WHERE id = $1 AND deleted_at IS NULL`

	settleDetailSQL = `UPDATE order_details SET payment_status = $2 WHERE order_id = $1`

	settlePaymentSQL = `UPDATE payments SET status = $2, updated_at = now() WHERE reference_id = $1`

	decrementStockSQL = `UPDATE products p
		SET stock_qty = GREATEST(p.stock_qty - op.quantity, 0), updated_at = now()
		FROM order_products op
		WHERE op.order_id = $1 AND op.product_id = p.id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header, detail, lines, and payment, and clears
// the buyer's cart, all in one transaction. The cart delete doubles as the
// concurrency guard: when a concurrent checkout already consumed the cart,
// zero rows are deleted and the transaction rolls back with ErrEmptyCart.
func (r *OrderRepository) Create(ctx context.Context, ord *order.Order, detail *order.Detail, items []order.Item, pay *order.Payment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning order transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, clearCartForOrderSQL, ord.UserID)
	if err != nil {
		return fmt.Errorf("clearing cart for order %q: %w", ord.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrEmptyCart
	}

	_, err = tx.Exec(ctx, createOrderSQL,
		ord.ID, ord.UserID, ord.SupplierID, ord.Status, ord.Type,
		ord.Total, ord.TotalDiscount, ord.TotalProducts, ord.CreatedAt, ord.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", ord.ID, err)
	}

	_, err = tx.Exec(ctx, createOrderDetailSQL,
		detail.OrderID, detail.ShippingAddressID, detail.PaymentMethod,
		detail.ShippingMethod, detail.PaymentStatus, detail.TrackingNumber, detail.Notes,
	)
	if err != nil {
		return fmt.Errorf("creating order detail %q: %w", ord.ID, err)
	}

	for _, item := range items {
		_, err = tx.Exec(ctx, createOrderProductSQL, ord.ID, item.ProductID, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("creating order line %q/%q: %w", ord.ID, item.ProductID, err)
		}
	}

	_, err = tx.Exec(ctx, createPaymentSQL,
		pay.ID, pay.ReferenceID, pay.Method, pay.Status, pay.Amount, pay.UserID,
	)
	if err != nil {
		return fmt.Errorf("creating payment for order %q: %w", ord.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", ord.ID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	err := r.pool.QueryRow(ctx, getOrderByIDSQL, id).Scan(
		&o.ID, &o.UserID, &o.SupplierID, &o.Status, &o.Type,
		&o.Total, &o.TotalDiscount, &o.TotalProducts,
		&o.CreatedAt, &o.UpdatedAt, &o.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ItemsByOrder returns the order's lines ordered by product ID.
func (r *OrderRepository) ItemsByOrder(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.pool.Query(ctx, getOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting lines for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var item order.Item
		err := row.Scan(&item.ProductID, &item.Quantity, &item.Price)
		return item, err
	})
}

// SettlePayment applies a payment callback in one transaction: order status,
// detail payment status, payment row, and optionally the stock decrement for
// every order line, floored at zero. The status update only applies while
// the order still holds s.PrevStatus, so concurrent callbacks for the same
// order settle exactly once; the loser gets InvalidTransitionError.
func (r *OrderRepository) SettlePayment(ctx context.Context, s order.Settlement) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning settlement transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, settleOrderSQL, s.OrderID, s.OrderStatus, s.PrevStatus)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", s.OrderID, err)
	}
	if tag.RowsAffected() == 0 {
		var current order.Status
		err := tx.QueryRow(ctx, getOrderStatusSQL, s.OrderID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return order.ErrNotFound
			}
			return fmt.Errorf("getting order %q status: %w", s.OrderID, err)
		}
		return &order.InvalidTransitionError{From: current, To: s.OrderStatus}
	}

	if _, err := tx.Exec(ctx, settleDetailSQL, s.OrderID, s.PaymentStatus); err != nil {
		return fmt.Errorf("updating order %q detail: %w", s.OrderID, err)
	}
	if _, err := tx.Exec(ctx, settlePaymentSQL, s.OrderID, s.PaymentStatus); err != nil {
		return fmt.Errorf("updating order %q payment: %w", s.OrderID, err)
	}

	if s.DecrementStock {
		if _, err := tx.Exec(ctx, decrementStockSQL, s.OrderID); err != nil {
			return fmt.Errorf("decrementing stock for order %q: %w", s.OrderID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing settlement for order %q: %w", s.OrderID, err)
	}
	return nil
}
