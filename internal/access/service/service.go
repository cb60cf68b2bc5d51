// Package service implements the access validation decision logic.
package service

import (
	"context"
	"strconv"
	"strings"

	"product_update_server/internal/access/repository"
	"product_update_server/platform/logger"
)

// Service decides whether caller-asserted identity claims authorize
// disclosure of a product's download reference. Oracle failures fail the
// individual check; access is never granted on ambiguity.
type Service struct {
	oracle repository.Oracle
	log    *logger.Logger
}

// New creates a new access validation service.
func New(oracle repository.Oracle, log *logger.Logger) *Service {
	return &Service{oracle: oracle, log: log}
}

// HasAccess runs the authorization paths in order, short-circuiting on the
// first grant:
//  1. resolve a missing email from the customer ID (best effort),
//  2. purchase check for any non-empty identity,
//  3. membership check, first by resolving the plan name to an ID, then
//     treating the raw value itself as a plan ID. Both sub-checks are kept;
//     either convention may independently grant access.
func (s *Service) HasAccess(ctx context.Context, productID int64, customerEmail string, customerID int64, membershipPlan string) bool {
	customerEmail = strings.TrimSpace(customerEmail)
	membershipPlan = strings.TrimSpace(membershipPlan)

	if customerID != 0 && customerEmail == "" {
		email, err := s.oracle.CustomerEmailByID(ctx, customerID)
		if err != nil {
			s.log.DatabaseError("customer email lookup", err)
		} else {
			customerEmail = email
		}
	}

	if customerEmail != "" || customerID != 0 {
		bought, err := s.oracle.CustomerBoughtProduct(ctx, customerEmail, customerID, productID)
		if err != nil {
			s.log.DatabaseError("purchase lookup", err)
		} else if bought {
			s.log.AccessDecision(productID, customerEmail, customerID, true, "purchase")
			return true
		}
	}

	if membershipPlan != "" && customerID != 0 && s.oracle.SupportsMemberships() {
		if planID, found, err := s.oracle.MembershipPlanIDByName(ctx, membershipPlan); err != nil {
			s.log.DatabaseError("membership plan lookup", err)
		} else if found {
			active, err := s.oracle.IsActiveMember(ctx, customerID, planID)
			if err != nil {
				s.log.DatabaseError("membership lookup", err)
			} else if active {
				s.log.AccessDecision(productID, customerEmail, customerID, true, "membership_plan_name")
				return true
			}
		}

		// Fallback for callers that pass a plan ID instead of a plan name.
		if rawID, err := strconv.ParseInt(membershipPlan, 10, 64); err == nil && rawID > 0 {
			active, err := s.oracle.IsActiveMember(ctx, customerID, rawID)
			if err != nil {
				s.log.DatabaseError("membership lookup", err)
			} else if active {
				s.log.AccessDecision(productID, customerEmail, customerID, true, "membership_plan_id")
				return true
			}
		}
	}

	s.log.AccessDecision(productID, customerEmail, customerID, false, "")
	return false
}
