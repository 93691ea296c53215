package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tamrhq/supplycart/internal/domain/cart"
)

const (
	getCartLinesSQL = `SELECT product_id, quantity, price_snapshot, added_at
		FROM cart_lines WHERE user_id = $1 ORDER BY added_at, product_id`

	addCartLineSQL = `INSERT INTO cart_lines (user_id, product_id, quantity, price_snapshot, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			quantity = cart_lines.quantity + EXCLUDED.quantity,
			price_snapshot = EXCLUDED.price_snapshot
		RETURNING quantity, added_at`

	removeCartLineSQL = `DELETE FROM cart_lines WHERE user_id = $1 AND product_id = $2`

	clearCartSQL = `DELETE FROM cart_lines WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. The
// (user_id, product_id) primary key serializes concurrent writes to one line.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the buyer's cart, empty when no lines exist.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, getCartLinesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart for user %q: %w", userID, err)
	}

	lines, err := pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("getting cart for user %q: %w", userID, err)
	}
	return &cart.Cart{UserID: userID, Lines: lines}, nil
}

// AddLine inserts the line or adds its quantity to the existing one. The sum
// happens inside the upsert, so two concurrent adds both land; the row lock
// taken by ON CONFLICT serializes them. The original added_at is kept on an
// existing line.
func (r *CartRepository) AddLine(ctx context.Context, userID string, line cart.Line) (*cart.Line, error) {
	stored := line
	err := r.pool.QueryRow(ctx, addCartLineSQL,
		userID, line.ProductID, line.Quantity, line.PriceSnapshot, line.AddedAt,
	).Scan(&stored.Quantity, &stored.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("adding cart line %q for user %q: %w", line.ProductID, userID, err)
	}
	return &stored, nil
}

// RemoveLine deletes a line. Removing an absent line succeeds silently.
func (r *CartRepository) RemoveLine(ctx context.Context, userID, productID string) error {
	_, err := r.pool.Exec(ctx, removeCartLineSQL, userID, productID)
	if err != nil {
		return fmt.Errorf("removing cart line %q for user %q: %w", productID, userID, err)
	}
	return nil
}

// Clear deletes every line. Clearing an empty cart succeeds silently.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, clearCartSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(&l.ProductID, &l.Quantity, &l.PriceSnapshot, &l.AddedAt)
	return l, err
}
