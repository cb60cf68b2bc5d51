package repository

import "context"

// Oracle answers purchase and membership questions about a customer.
// SupportsMemberships is an explicit capability probe: when it reports false
// the membership path is skipped entirely, it is never an error.
type Oracle interface {
	// CustomerEmailByID resolves the account email for a customer ID.
	// An unknown customer yields an empty string, not an error.
	CustomerEmailByID(ctx context.Context, customerID int64) (string, error)
	// CustomerBoughtProduct reports whether the identity, matched by email
	// or by ID, holds a completed purchase of the product.
	CustomerBoughtProduct(ctx context.Context, customerEmail string, customerID, productID int64) (bool, error)
	// MembershipPlanIDByName resolves a plan name to its identifier.
	MembershipPlanIDByName(ctx context.Context, name string) (int64, bool, error)
	// IsActiveMember reports whether the customer holds an active membership
	// of the plan.
	IsActiveMember(ctx context.Context, customerID, planID int64) (bool, error)
	// SupportsMemberships reports whether membership checking is available.
	SupportsMemberships() bool
}
