// Package auth defines the authenticated identity attached to every request
// and the API key lookup contract.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no API key matches the presented hash.
var ErrKeyNotFound = errors.New("api key not found")

// Roles recognized by the API surface.
const (
	RoleBuyer    = "buyer"
	RoleSupplier = "supplier"
	RoleAdmin    = "admin"
)

// Identity is the resolved caller of a request. The core trusts it
// unconditionally once the security layer has established it.
type Identity struct {
	UserID string
	Role   string
}

// Repository provides lookup of API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Identity, error)
}
