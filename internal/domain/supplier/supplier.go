// Package supplier holds the supplier entity referenced by products, carts,
// and orders.
package supplier

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested supplier does not exist.
var ErrNotFound = errors.New("supplier not found")

// Supplier is a seller on the marketplace.
type Supplier struct {
	ID     string
	Name   string
	Active bool
}

// Repository defines persistence operations for suppliers.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Supplier, error)
	Upsert(ctx context.Context, s *Supplier) error
}
