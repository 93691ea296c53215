package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tamrhq/supplycart/internal/domain/product"
)

const (
	productColumns = `id, supplier_id, name, description, base_price, discount_rate,
		price_before_discount, total_discount, price_after_discount,
		platform_tax, country_tax, other_tax, total_taxes, price_after_taxes,
		stock_qty, nearly_out_of_stock_limit, status, active, unit_type`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE status = 'published' AND active = TRUE ORDER BY id`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = ANY($1)`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			supplier_id = EXCLUDED.supplier_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			base_price = EXCLUDED.base_price,
			discount_rate = EXCLUDED.discount_rate,
			price_before_discount = EXCLUDED.price_before_discount,
			total_discount = EXCLUDED.total_discount,
			price_after_discount = EXCLUDED.price_after_discount,
			platform_tax = EXCLUDED.platform_tax,
			country_tax = EXCLUDED.country_tax,
			other_tax = EXCLUDED.other_tax,
			total_taxes = EXCLUDED.total_taxes,
			price_after_taxes = EXCLUDED.price_after_taxes,
			stock_qty = EXCLUDED.stock_qty,
			nearly_out_of_stock_limit = EXCLUDED.nearly_out_of_stock_limit,
			status = EXCLUDED.status,
			active = EXCLUDED.active,
			unit_type = EXCLUDED.unit_type,
			updated_at = now()`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the published, active catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs. Missing IDs are
// simply absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Upsert inserts or fully replaces a product row, derived price columns
// included.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.SupplierID, p.Name, p.Description, p.BasePrice, p.DiscountRate,
		p.Prices.PriceBeforeDiscount, p.Prices.TotalDiscount, p.Prices.PriceAfterDiscount,
		p.Prices.PlatformTax, p.Prices.CountryTax, p.Prices.OtherTax,
		p.Prices.TotalTaxes, p.Prices.PriceAfterTaxes,
		p.StockQty, p.NearlyOutOfStockLimit, p.Status, p.Active, p.UnitType,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.SupplierID, &p.Name, &p.Description, &p.BasePrice, &p.DiscountRate,
		&p.Prices.PriceBeforeDiscount, &p.Prices.TotalDiscount, &p.Prices.PriceAfterDiscount,
		&p.Prices.PlatformTax, &p.Prices.CountryTax, &p.Prices.OtherTax,
		&p.Prices.TotalTaxes, &p.Prices.PriceAfterTaxes,
		&p.StockQty, &p.NearlyOutOfStockLimit, &p.Status, &p.Active, &p.UnitType,
	)
	p.Prices.BasePrice = p.BasePrice
	return p, err
}
