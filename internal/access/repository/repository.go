package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo implements the access oracle over the store schema.
type Repo struct {
	pool               *pgxpool.Pool
	membershipsEnabled bool
}

// New creates a new access repository. membershipsEnabled models whether the
// membership extension is installed at all.
func New(pool *pgxpool.Pool, membershipsEnabled bool) *Repo {
	return &Repo{pool: pool, membershipsEnabled: membershipsEnabled}
}

// Compile-time check that Repo implements Oracle.
var _ Oracle = (*Repo)(nil)

// CustomerEmailByID resolves a customer's account email, empty when absent.
func (r *Repo) CustomerEmailByID(ctx context.Context, customerID int64) (string, error) {
	var email string
	row := r.pool.QueryRow(ctx, `SELECT email FROM customers WHERE id = $1`, customerID)
	if err := row.Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("customer email by id: %w", err)
	}
	return email, nil
}

// CustomerBoughtProduct reports whether a completed purchase of the product
// exists for the given email or customer ID.
func (r *Repo) CustomerBoughtProduct(ctx context.Context, customerEmail string, customerID, productID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM purchases
			WHERE product_id = $1
				AND status IN ('completed', 'processing')
				AND (($2 <> '' AND lower(customer_email) = lower($2))
					OR ($3 <> 0 AND customer_id = $3))
		)`

	var bought bool
	if err := r.pool.QueryRow(ctx, query, productID, customerEmail, customerID).Scan(&bought); err != nil {
		return false, fmt.Errorf("purchase lookup: %w", err)
	}
	return bought, nil
}

// MembershipPlanIDByName resolves a plan name to its identifier.
func (r *Repo) MembershipPlanIDByName(ctx context.Context, name string) (int64, bool, error) {
	var planID int64
	row := r.pool.QueryRow(ctx, `SELECT id FROM membership_plans WHERE lower(name) = lower($1)`, name)
	if err := row.Scan(&planID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("membership plan by name: %w", err)
	}
	return planID, true, nil
}

// IsActiveMember reports whether the customer holds an active membership.
func (r *Repo) IsActiveMember(ctx context.Context, customerID, planID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM customer_memberships
			WHERE customer_id = $1 AND plan_id = $2 AND status = 'active'
		)`

	var active bool
	if err := r.pool.QueryRow(ctx, query, customerID, planID).Scan(&active); err != nil {
		return false, fmt.Errorf("membership lookup: %w", err)
	}
	return active, nil
}

// SupportsMemberships reports whether membership checking is available.
func (r *Repo) SupportsMemberships() bool {
	return r.membershipsEnabled
}
