package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tamrhq/supplycart/internal/domain/supplier"
)

const (
	getSupplierByIDSQL = `SELECT id, name, active FROM suppliers WHERE id = $1`

	upsertSupplierSQL = `INSERT INTO suppliers (id, name, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active`
)

var _ supplier.Repository = (*SupplierRepository)(nil)

// SupplierRepository implements supplier.Repository backed by PostgreSQL.
type SupplierRepository struct {
	pool *pgxpool.Pool
}

// NewSupplierRepository returns a SupplierRepository that uses the given pool.
func NewSupplierRepository(pool *pgxpool.Pool) *SupplierRepository {
	return &SupplierRepository{pool: pool}
}

// GetByID returns a single supplier by its identifier.
func (r *SupplierRepository) GetByID(ctx context.Context, id string) (*supplier.Supplier, error) {
	var s supplier.Supplier
	err := r.pool.QueryRow(ctx, getSupplierByIDSQL, id).Scan(&s.ID, &s.Name, &s.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, supplier.ErrNotFound
		}
		return nil, fmt.Errorf("getting supplier %q: %w", id, err)
	}
	return &s, nil
}

// Upsert inserts or replaces a supplier row.
func (r *SupplierRepository) Upsert(ctx context.Context, s *supplier.Supplier) error {
	_, err := r.pool.Exec(ctx, upsertSupplierSQL, s.ID, s.Name, s.Active)
	if err != nil {
		return fmt.Errorf("upserting supplier %q: %w", s.ID, err)
	}
	return nil
}
