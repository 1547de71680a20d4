package counting

import (
	"context"

	"github.com/google/uuid"
)

// Capability names checked before privileged counting operations
const (
	CapabilityReopenSector   = "counting:sector:reopen"
	CapabilityReleaseSector  = "counting:sector:release"
	CapabilityReconcile      = "counting:divergence:reconcile"
	CapabilityForceFinalize  = "counting:inventory:force-finalize"
	CapabilityCloseInventory = "counting:inventory:close"
)

// CapabilityChecker answers whether an actor holds a named capability.
// The HTTP layer backs it with JWT claims; tests use a stub.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, tenantID, actorID uuid.UUID, capability string) (bool, error)
}
