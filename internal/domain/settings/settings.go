// Package settings is the typed per-supplier configuration store. Keys form
// a closed, enumerated set rather than an open string/value map.
package settings

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Key identifies a recognized supplier setting.
type Key string

// KeyMinOrderAmount holds the supplier's minimum order subtotal below which
// checkout is refused. Defaults to 0 when unset.
const KeyMinOrderAmount Key = "order.min_order_amount"

// Valid reports whether k is one of the recognized setting keys.
func (k Key) Valid() bool {
	return k == KeyMinOrderAmount
}

// ErrUnknownKey is returned when writing a setting outside the closed key set.
var ErrUnknownKey = errors.New("unknown setting key")

// Repository provides the persisted setting values.
type Repository interface {
	// GetDecimal returns the value for (supplierID, key) and whether it was set.
	GetDecimal(ctx context.Context, supplierID string, key Key) (decimal.Decimal, bool, error)
	SetDecimal(ctx context.Context, supplierID string, key Key, value decimal.Decimal) error
}

// Cache is an optional read-through cache in front of the repository.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Store reads supplier settings, consulting the cache first when configured.
// Cache failures degrade to repository reads and are never surfaced.
type Store struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
}

// NewStore creates a Store without a cache.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// NewCachedStore creates a Store that caches values for ttl.
func NewCachedStore(repo Repository, cache Cache, ttl time.Duration) *Store {
	return &Store{repo: repo, cache: cache, ttl: ttl}
}

// MinOrderAmount returns the supplier's configured minimum order subtotal,
// or zero when the setting is absent.
func (s *Store) MinOrderAmount(ctx context.Context, supplierID string) (decimal.Decimal, error) {
	return s.getDecimal(ctx, supplierID, KeyMinOrderAmount)
}

// SetMinOrderAmount persists the supplier's minimum order subtotal and
// refreshes the cache entry.
func (s *Store) SetMinOrderAmount(ctx context.Context, supplierID string, v decimal.Decimal) error {
	if err := s.repo.SetDecimal(ctx, supplierID, KeyMinOrderAmount, v); err != nil {
		return errors.Wrap(err, "set min order amount")
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey(supplierID, KeyMinOrderAmount), v.String(), s.ttl)
	}
	return nil
}

func (s *Store) getDecimal(ctx context.Context, supplierID string, key Key) (decimal.Decimal, error) {
	ck := cacheKey(supplierID, key)

	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, ck); err == nil && ok {
			if v, perr := decimal.NewFromString(raw); perr == nil {
				return v, nil
			}
		}
	}

	v, ok, err := s.repo.GetDecimal(ctx, supplierID, key)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "get setting %s for supplier %s", key, supplierID)
	}
	if !ok {
		v = decimal.Zero
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, ck, v.String(), s.ttl)
	}
	return v, nil
}

func cacheKey(supplierID string, key Key) string {
	return "settings:" + supplierID + ":" + string(key)
}
