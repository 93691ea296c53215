package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tamrhq/supplycart/internal/domain/organization"
)

const getMembershipSQL = `SELECT approved FROM organization_members WHERE user_id = $1`

var _ organization.Membership = (*OrganizationRepository)(nil)

// OrganizationRepository answers organization membership checks from
// PostgreSQL.
type OrganizationRepository struct {
	pool *pgxpool.Pool
}

// NewOrganizationRepository returns an OrganizationRepository that uses the
// given pool.
func NewOrganizationRepository(pool *pgxpool.Pool) *OrganizationRepository {
	return &OrganizationRepository{pool: pool}
}

// IsApprovedMember reports whether the user holds an approved organization
// membership. Users with no membership row are simply not members.
func (r *OrganizationRepository) IsApprovedMember(ctx context.Context, userID string) (bool, error) {
	var approved bool
	err := r.pool.QueryRow(ctx, getMembershipSQL, userID).Scan(&approved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking organization membership for user %q: %w", userID, err)
	}
	return approved, nil
}
