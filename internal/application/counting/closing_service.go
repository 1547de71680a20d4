package counting

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/infrastructure/telemetry"
)

// DivergenceCounter is the slice of DivergenceService the closing workflow
// needs: the pending total that gates finalization.
type DivergenceCounter interface {
	CountPending(ctx context.Context, tenantID, inventoryID uuid.UUID) (int64, error)
}

// ClosingService runs the inventory finalization workflow. The preview
// (GetClosingStatus) and the finalize/close guards share one evaluation, so
// what the supervisor sees is exactly what the guard enforces.
type ClosingService struct {
	inventoryRepo counting.InventoryRepository
	sectorRepo    counting.SectorRepository
	divergences   DivergenceCounter
	capabilities  CapabilityChecker
	eventBus      shared.EventBus
	metrics       MetricsSink
}

// NewClosingService creates a new ClosingService
func NewClosingService(
	inventoryRepo counting.InventoryRepository,
	sectorRepo counting.SectorRepository,
	divergences DivergenceCounter,
	capabilities CapabilityChecker,
	eventBus shared.EventBus,
) *ClosingService {
	return &ClosingService{
		inventoryRepo: inventoryRepo,
		sectorRepo:    sectorRepo,
		divergences:   divergences,
		capabilities:  capabilities,
		eventBus:      eventBus,
	}
}

// SetMetrics attaches an optional metrics sink. Must be called before the
// service handles requests.
func (s *ClosingService) SetMetrics(metrics MetricsSink) {
	s.metrics = metrics
}

// evaluate loads the closing inputs and runs the shared evaluation
func (s *ClosingService) evaluate(ctx context.Context, tenantID, inventoryID uuid.UUID) (counting.ClosingStatus, error) {
	sectors, err := s.sectorRepo.FindByInventory(ctx, tenantID, inventoryID)
	if err != nil {
		return counting.ClosingStatus{}, err
	}

	pending, err := s.divergences.CountPending(ctx, tenantID, inventoryID)
	if err != nil {
		return counting.ClosingStatus{}, err
	}

	return counting.EvaluateClosing(sectors, pending), nil
}

// GetClosingStatus returns the closing preview for a campaign
func (s *ClosingService) GetClosingStatus(ctx context.Context, tenantID, inventoryID uuid.UUID) (*ClosingStatusResponse, error) {
	if _, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, inventoryID); err != nil {
		return nil, err
	}

	status, err := s.evaluate(ctx, tenantID, inventoryID)
	if err != nil {
		return nil, err
	}

	response := ToClosingStatusResponse(inventoryID, status)
	return &response, nil
}

// checkBlocks turns an evaluation into either a guard error (not forced) or
// the list of overridden blocks (forced)
func (s *ClosingService) checkBlocks(status counting.ClosingStatus, forced bool) ([]string, error) {
	if status.ReadyToClose {
		return nil, nil
	}

	overrides := make([]string, 0, 2)
	if status.OpenSectorCount > 0 {
		if !forced {
			numbers := make([]int, len(status.OpenSectors))
			for i, ref := range status.OpenSectors {
				numbers[i] = ref.Number
			}
			return nil, counting.ErrSectorsStillOpen.
				WithDetail("open_sectors", status.OpenSectors).
				WithDetail("open_sector_numbers", numbers)
		}
		overrides = append(overrides, counting.ErrSectorsStillOpen.Code)
	}
	if status.PendingDivergences > 0 {
		if !forced {
			return nil, counting.ErrUnreconciledDivergences.
				WithDetail("pending_divergences", status.PendingDivergences)
		}
		overrides = append(overrides, counting.ErrUnreconciledDivergences.Code)
	}
	return overrides, nil
}

// Finalize finishes a campaign. When blocks remain, forced=true with the
// force capability overrides them; the overridden blocks and any
// justification text supplied are recorded on the event and returned to
// the caller.
func (s *ClosingService) Finalize(ctx context.Context, tenantID, inventoryID uuid.UUID, req FinalizeInventoryRequest, actor counting.Actor, origin counting.Origin) (*ClosingResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "closing", "finalize")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInventoryID, inventoryID.String(),
		telemetry.SpanAttrForced, req.Forced,
	)

	inv, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, inventoryID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	status, err := s.evaluate(ctx, tenantID, inventoryID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if req.Forced {
		if err := s.requireCapability(ctx, tenantID, actor.ID, CapabilityForceFinalize); err != nil {
			return nil, err
		}
	}

	overrides, err := s.checkBlocks(status, req.Forced)
	if err != nil {
		return nil, err
	}

	if err := inv.Finalize(actor, origin, req.Forced, req.Justification); err != nil {
		return nil, err
	}

	if err := s.inventoryRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordInventoryClosed(ctx, tenantID, req.Forced)
	}

	s.publishEvents(ctx, inv)

	return &ClosingResult{
		Inventory: ToInventoryResponse(inv),
		Forced:    req.Forced,
		Overrides: overrides,
	}, nil
}

// Reopen reactivates a finalized campaign
func (s *ClosingService) Reopen(ctx context.Context, tenantID, inventoryID uuid.UUID, actor counting.Actor, origin counting.Origin) (*InventoryResponse, error) {
	if err := s.requireCapability(ctx, tenantID, actor.ID, CapabilityForceFinalize); err != nil {
		return nil, err
	}

	inv, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, inventoryID)
	if err != nil {
		return nil, err
	}

	if err := inv.Reopen(actor, origin); err != nil {
		return nil, err
	}

	if err := s.inventoryRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, inv)

	response := ToInventoryResponse(inv)
	return &response, nil
}

// Close hard-closes a campaign. Closing is terminal and always requires the
// close capability; remaining blocks additionally require forced=true, and
// forcing past unreconciled divergences requires a justification.
func (s *ClosingService) Close(ctx context.Context, tenantID, inventoryID uuid.UUID, req CloseInventoryRequest, actor counting.Actor, origin counting.Origin) (*ClosingResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "closing", "close")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInventoryID, inventoryID.String(),
		telemetry.SpanAttrForced, req.Forced,
	)

	if err := s.requireCapability(ctx, tenantID, actor.ID, CapabilityCloseInventory); err != nil {
		return nil, err
	}

	inv, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, inventoryID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	status, err := s.evaluate(ctx, tenantID, inventoryID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if req.Forced && status.PendingDivergences > 0 && strings.TrimSpace(req.Justification) == "" {
		return nil, counting.ErrJustificationRequired
	}

	overrides, err := s.checkBlocks(status, req.Forced)
	if err != nil {
		return nil, err
	}

	if err := inv.Close(actor, origin, req.Forced, req.Justification, overrides); err != nil {
		return nil, err
	}

	if err := s.inventoryRepo.SaveWithLock(ctx, inv); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordInventoryClosed(ctx, tenantID, req.Forced)
	}

	s.publishEvents(ctx, inv)

	return &ClosingResult{
		Inventory: ToInventoryResponse(inv),
		Forced:    req.Forced,
		Overrides: overrides,
	}, nil
}

func (s *ClosingService) requireCapability(ctx context.Context, tenantID, actorID uuid.UUID, capability string) error {
	allowed, err := s.capabilities.HasCapability(ctx, tenantID, actorID, capability)
	if err != nil {
		return err
	}
	if !allowed {
		return shared.ErrForbidden.WithDetail("capability", capability)
	}
	return nil
}

// publishEvents publishes domain events from the aggregate
func (s *ClosingService) publishEvents(ctx context.Context, inv *counting.Inventory) {
	if s.eventBus == nil {
		return
	}

	for _, event := range inv.GetDomainEvents() {
		_ = s.eventBus.Publish(ctx, event)
	}
	inv.ClearDomainEvents()
}
