package auth

import (
	"context"

	"github.com/google/uuid"
	appcounting "github.com/tally/backend/internal/application/counting"
)

type claimsContextKey struct{}

// ContextWithClaims stores validated claims in the context. The JWT
// middleware calls this so downstream capability checks can read the
// bearer's grants without another lookup.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext retrieves validated claims from the context
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok
}

// ClaimsCapabilityChecker answers capability checks from the JWT claims of
// the current request. A capability only counts when the token belongs to
// the same tenant and actor the service is asking about.
type ClaimsCapabilityChecker struct{}

// NewClaimsCapabilityChecker creates a new ClaimsCapabilityChecker
func NewClaimsCapabilityChecker() *ClaimsCapabilityChecker {
	return &ClaimsCapabilityChecker{}
}

// HasCapability reports whether the request's token grants the capability
func (c *ClaimsCapabilityChecker) HasCapability(ctx context.Context, tenantID, actorID uuid.UUID, capability string) (bool, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return false, nil
	}
	if claims.TenantID != tenantID.String() || claims.UserID != actorID.String() {
		return false, nil
	}
	return claims.HasCapability(capability), nil
}

// Ensure ClaimsCapabilityChecker implements the application contract
var _ appcounting.CapabilityChecker = (*ClaimsCapabilityChecker)(nil)
