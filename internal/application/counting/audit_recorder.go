package counting

import (
	"context"

	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditRecorder subscribes to counting events and appends one audit row per
// lifecycle transition. Recording is best effort: a failed insert is logged
// and swallowed so the business operation that raised the event never fails
// because of the trail.
type AuditRecorder struct {
	auditRepo counting.AuditEntryRepository
	logger    *zap.Logger
}

// NewAuditRecorder creates a new AuditRecorder
func NewAuditRecorder(auditRepo counting.AuditEntryRepository, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (r *AuditRecorder) EventTypes() []string {
	return []string{
		counting.EventTypeSectorOpened,
		counting.EventTypeSectorFinalized,
		counting.EventTypeSectorReopened,
		counting.EventTypeSectorReleased,
		counting.EventTypeCountRecorded,
		counting.EventTypeProductReconciled,
		counting.EventTypeInventoryFinalized,
		counting.EventTypeInventoryReopened,
		counting.EventTypeInventoryClosed,
	}
}

// Handle appends an audit row for a counting event
func (r *AuditRecorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	entry := r.entryFor(event)
	if entry == nil {
		return nil
	}

	if err := r.auditRepo.Append(ctx, entry); err != nil {
		r.logger.Warn("audit record dropped",
			zap.String("action", entry.Action),
			zap.String("aggregate_id", entry.AggregateID.String()),
			zap.Error(err),
		)
	}
	return nil
}

func (r *AuditRecorder) entryFor(event shared.DomainEvent) *counting.AuditEntry {
	switch e := event.(type) {
	case *counting.SectorOpenedEvent:
		return r.sectorEntry(e.SectorEventData, counting.AuditActionSectorOpened, nil)
	case *counting.SectorFinalizedEvent:
		return r.sectorEntry(e.SectorEventData, counting.AuditActionSectorFinalized, nil)
	case *counting.SectorReopenedEvent:
		return r.sectorEntry(e.SectorEventData, counting.AuditActionSectorReopened, nil)
	case *counting.SectorReleasedEvent:
		return r.sectorEntry(e.SectorEventData, counting.AuditActionSectorReleased, nil)
	case *counting.CountRecordedEvent:
		return r.sectorEntry(e.SectorEventData, counting.AuditActionCountRecorded, map[string]any{
			"entry_id":   e.EntryID.String(),
			"product_id": e.ProductID.String(),
			"quantity":   e.Quantity.String(),
		})
	case *counting.ProductReconciledEvent:
		return r.sectorEntry(e.SectorEventData, counting.AuditActionProductReconciled, map[string]any{
			"product_id":       e.ProductID.String(),
			"entries_affected": e.EntriesAffected,
		})
	case *counting.InventoryFinalizedEvent:
		return r.inventoryEntry(e.InventoryEventData, counting.AuditActionInventoryFinalized, forcedMetadata(e.Forced, e.Justification, nil))
	case *counting.InventoryReopenedEvent:
		return r.inventoryEntry(e.InventoryEventData, counting.AuditActionInventoryReopened, nil)
	case *counting.InventoryClosedEvent:
		return r.inventoryEntry(e.InventoryEventData, counting.AuditActionInventoryClosed, forcedMetadata(e.Forced, e.Justification, e.Overrides))
	}

	r.logger.Warn("unexpected event type in audit recorder",
		zap.String("event_type", event.EventType()),
	)
	return nil
}

func (r *AuditRecorder) sectorEntry(base counting.SectorEventData, action string, metadata map[string]any) *counting.AuditEntry {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["sector_number"] = base.SectorNumber
	return counting.NewAuditEntry(
		base.TenantID(),
		action,
		counting.AggregateTypeSector,
		base.SectorID,
		base.InventoryID,
		counting.Actor{ID: base.ActorID, Name: base.ActorName},
		counting.Origin{IPAddress: base.IPAddress, UserAgent: base.UserAgent},
		base.OccurredAt(),
		metadata,
	)
}

func (r *AuditRecorder) inventoryEntry(base counting.InventoryEventData, action string, metadata map[string]any) *counting.AuditEntry {
	return counting.NewAuditEntry(
		base.TenantID(),
		action,
		counting.AggregateTypeInventory,
		base.InventoryID,
		base.InventoryID,
		counting.Actor{ID: base.ActorID, Name: base.ActorName},
		counting.Origin{IPAddress: base.IPAddress, UserAgent: base.UserAgent},
		base.OccurredAt(),
		metadata,
	)
}

func forcedMetadata(forced bool, justification string, overrides []string) map[string]any {
	if !forced {
		return nil
	}
	metadata := map[string]any{
		"forced":        true,
		"justification": justification,
	}
	if len(overrides) > 0 {
		metadata["overrides"] = overrides
	}
	return metadata
}

// Ensure AuditRecorder implements shared.EventHandler
var _ shared.EventHandler = (*AuditRecorder)(nil)

// AuditService serves the audit trail read side
type AuditService struct {
	auditRepo counting.AuditEntryRepository
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo counting.AuditEntryRepository) *AuditService {
	return &AuditService{auditRepo: auditRepo}
}

// ListByInventory retrieves the audit trail of a campaign, newest first
func (s *AuditService) ListByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID, filter shared.Filter) ([]AuditEntryResponse, int64, error) {
	entries, err := s.auditRepo.FindByInventory(ctx, tenantID, inventoryID, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.auditRepo.CountByInventory(ctx, tenantID, inventoryID)
	if err != nil {
		return nil, 0, err
	}

	return ToAuditEntryResponses(entries), total, nil
}

