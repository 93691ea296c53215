package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tamrhq/supplycart/internal/domain/settings"
)

const (
	getSettingSQL = `SELECT value FROM supplier_settings WHERE supplier_id = $1 AND key = $2`

	setSettingSQL = `INSERT INTO supplier_settings (supplier_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (supplier_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
)

var _ settings.Repository = (*SettingsRepository)(nil)

// SettingsRepository implements settings.Repository backed by PostgreSQL.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

// GetDecimal returns the value for (supplierID, key) and whether it was set.
func (r *SettingsRepository) GetDecimal(ctx context.Context, supplierID string, key settings.Key) (decimal.Decimal, bool, error) {
	var v decimal.Decimal
	err := r.pool.QueryRow(ctx, getSettingSQL, supplierID, string(key)).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("getting setting %q for supplier %q: %w", key, supplierID, err)
	}
	return v, true, nil
}

// SetDecimal writes the value for (supplierID, key). Keys outside the closed
// set are rejected.
func (r *SettingsRepository) SetDecimal(ctx context.Context, supplierID string, key settings.Key, value decimal.Decimal) error {
	if !key.Valid() {
		return settings.ErrUnknownKey
	}
	_, err := r.pool.Exec(ctx, setSettingSQL, supplierID, string(key), value)
	if err != nil {
		return fmt.Errorf("setting %q for supplier %q: %w", key, supplierID, err)
	}
	return nil
}
