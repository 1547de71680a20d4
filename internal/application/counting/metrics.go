package counting

import (
	"context"

	"github.com/google/uuid"
)

// MetricsSink receives business metric signals from the counting workflows.
// Implementations must be safe for concurrent use and must not block; a nil
// sink disables metrics entirely.
type MetricsSink interface {
	// RecordSectorClaim records a sector open attempt. granted is false when
	// the claim lost the storage-level race to another operator.
	RecordSectorClaim(ctx context.Context, tenantID uuid.UUID, granted bool)

	// RecordSectorFinalized records a sector finalization.
	RecordSectorFinalized(ctx context.Context, tenantID uuid.UUID)

	// RecordCountsSubmitted records count entries accepted into the log.
	RecordCountsSubmitted(ctx context.Context, tenantID uuid.UUID, entries int64)

	// RecordInventoryClosed records a campaign finalize or close. forced
	// indicates remaining blocks were overridden with a justification.
	RecordInventoryClosed(ctx context.Context, tenantID uuid.UUID, forced bool)
}
