// Package organization exposes the membership collaborator consulted for
// organization-type orders.
package organization

import "context"

// Membership answers whether a buyer is an approved member of an
// organization. Only checkout with the organization order type consults it.
type Membership interface {
	IsApprovedMember(ctx context.Context, userID string) (bool, error)
}
