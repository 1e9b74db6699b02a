package engine

import (
	"context"
	"time"

	"talentworth/internal/domain"
)

// CheckEntitlement decides whether userID may invoke paid analysis.
// Entitled callers have a premium subscription whose expiry is either
// unset or strictly in the future. A missing profile or a failed read
// is an *EntitlementLookupError, not a business decision.
func (e Engine) CheckEntitlement(ctx context.Context, userID string) error {
	profile, err := e.Repo.GetProfile(ctx, userID)
	if err != nil {
		return &EntitlementLookupError{Err: err}
	}
	if profile.SubscriptionStatus != domain.SubscriptionPremium {
		return ErrNotEntitled
	}
	if profile.SubscriptionExpiresAt == nil {
		return nil
	}
	expires, err := time.Parse(time.RFC3339, *profile.SubscriptionExpiresAt)
	if err != nil {
		return &EntitlementLookupError{Err: err}
	}
	if !expires.After(e.now()) {
		return ErrNotEntitled
	}
	return nil
}
