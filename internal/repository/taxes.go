package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tamrhq/supplycart/internal/domain/pricing"
)

const (
	activeProductTaxesSQL = `SELECT id, rate, tax_group, applies_to, active
		FROM taxes WHERE active = TRUE AND applies_to = 'product' ORDER BY id`

	upsertTaxSQL = `INSERT INTO taxes (id, rate, tax_group, applies_to, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			rate = EXCLUDED.rate,
			tax_group = EXCLUDED.tax_group,
			applies_to = EXCLUDED.applies_to,
			active = EXCLUDED.active`
)

var _ pricing.TaxSource = (*TaxRepository)(nil)

// TaxRepository provides the tax definitions backed by PostgreSQL.
type TaxRepository struct {
	pool *pgxpool.Pool
}

// NewTaxRepository returns a TaxRepository that uses the given pool.
func NewTaxRepository(pool *pgxpool.Pool) *TaxRepository {
	return &TaxRepository{pool: pool}
}

// ActiveProductTaxes returns the active, product-scoped tax set ordered by ID.
func (r *TaxRepository) ActiveProductTaxes(ctx context.Context) ([]pricing.Tax, error) {
	rows, err := r.pool.Query(ctx, activeProductTaxesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing active product taxes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (pricing.Tax, error) {
		var t pricing.Tax
		err := row.Scan(&t.ID, &t.Rate, &t.Group, &t.AppliesTo, &t.Active)
		return t, err
	})
}

// Upsert inserts or replaces a tax definition.
func (r *TaxRepository) Upsert(ctx context.Context, t pricing.Tax) error {
	_, err := r.pool.Exec(ctx, upsertTaxSQL, t.ID, t.Rate, t.Group, t.AppliesTo, t.Active)
	if err != nil {
		return fmt.Errorf("upserting tax %q: %w", t.ID, err)
	}
	return nil
}
