package counting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/infrastructure/telemetry"
)

// SectorService drives the sector state machine. The exclusive-open and
// one-sector-per-operator guarantees do not rely on any in-process state:
// the repository Claim is a conditional update backed by a partial unique
// index, so concurrent opens across instances resolve to exactly one winner.
type SectorService struct {
	sectorRepo    counting.SectorRepository
	inventoryRepo counting.InventoryRepository
	capabilities  CapabilityChecker
	eventBus      shared.EventBus
	metrics       MetricsSink
}

// NewSectorService creates a new SectorService
func NewSectorService(
	sectorRepo counting.SectorRepository,
	inventoryRepo counting.InventoryRepository,
	capabilities CapabilityChecker,
	eventBus shared.EventBus,
) *SectorService {
	return &SectorService{
		sectorRepo:    sectorRepo,
		inventoryRepo: inventoryRepo,
		capabilities:  capabilities,
		eventBus:      eventBus,
	}
}

// SetMetrics attaches an optional metrics sink. Must be called before the
// service handles requests.
func (s *SectorService) SetMetrics(metrics MetricsSink) {
	s.metrics = metrics
}

// ===================== Query Methods =====================

// GetByID retrieves a sector by ID
func (s *SectorService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*SectorResponse, error) {
	sector, err := s.sectorRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	response := ToSectorResponse(sector)
	return &response, nil
}

// ===================== Command Methods =====================

// Open claims a sector for an operator. Reopening a sector the operator
// already holds is an idempotent success. Opening while holding another
// sector of the same campaign fails; opening out of declared order only
// warns when the campaign requests sequential sectors.
func (s *SectorService) Open(ctx context.Context, tenantID, sectorID uuid.UUID, operator counting.Actor, origin counting.Origin) (*OpenSectorResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sector", "open")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSectorID, sectorID.String(),
	)

	sector, err := s.sectorRepo.FindByIDForTenant(ctx, tenantID, sectorID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrInventoryID, sector.InventoryID.String())

	inv, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, sector.InventoryID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if inv.IsClosed() {
		return nil, counting.ErrInventoryAlreadyClosed
	}
	if !inv.Active {
		return nil, counting.ErrInventoryNotActive
	}

	alreadyHeld, err := sector.CheckOpenable(operator)
	if err != nil {
		return nil, err
	}
	if alreadyHeld {
		response := ToSectorResponse(sector)
		return &OpenSectorResponse{Sector: response, Warning: "sector already open for this operator"}, nil
	}

	open, err := s.sectorRepo.FindOpenByOperator(ctx, tenantID, sector.InventoryID, operator.ID)
	if err != nil {
		return nil, err
	}
	for i := range open {
		if open[i].ID != sector.ID {
			return nil, counting.ErrOperatorHasOpenSector.
				WithDetail("open_sector_number", open[i].Number).
				WithDetail("open_sector_id", open[i].ID)
		}
	}

	warning := ""
	if inv.SequentialSectors {
		pendingBefore, err := s.sectorRepo.HasPendingBefore(ctx, tenantID, sector.InventoryID, sector.Number)
		if err != nil {
			return nil, err
		}
		if pendingBefore {
			warning = fmt.Sprintf("sector %d opened out of sequence: earlier sectors are not finalized", sector.Number)
		}
	}

	if err := s.claim(ctx, tenantID, sector, operator); err != nil {
		if s.metrics != nil && errors.Is(err, counting.ErrSectorInUse) {
			s.metrics.RecordSectorClaim(ctx, tenantID, false)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordSectorClaim(ctx, tenantID, true)
	}
	telemetry.AddEvent(span, "sector_claimed",
		telemetry.SpanAttrSectorCode, fmt.Sprintf("%d", sector.Number),
	)

	if err := sector.Open(operator, origin); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, sector)

	response := ToSectorResponse(sector)
	return &OpenSectorResponse{Sector: response, Warning: warning}, nil
}

// claim runs the storage-level conditional update, retrying once after a
// conflict: a released sector is claimable again, and a lost race against the
// same operator's retried request must come back idempotent, not failed.
func (s *SectorService) claim(ctx context.Context, tenantID uuid.UUID, sector *counting.Sector, operator counting.Actor) error {
	for attempt := 0; attempt < 2; attempt++ {
		err := s.sectorRepo.Claim(ctx, tenantID, counting.SectorClaim{
			SectorID:       sector.ID,
			InventoryID:    sector.InventoryID,
			ExpectedStatus: sector.Status,
			HolderID:       operator.ID,
			HolderName:     operator.Name,
			OpenedAt:       time.Now(),
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, shared.ErrConcurrencyConflict) {
			return err
		}

		current, findErr := s.sectorRepo.FindByIDForTenant(ctx, tenantID, sector.ID)
		if findErr != nil {
			return findErr
		}
		*sector = *current

		alreadyHeld, checkErr := sector.CheckOpenable(operator)
		if checkErr != nil {
			return checkErr
		}
		if alreadyHeld {
			// A concurrent duplicate of this operator's request won the race.
			return nil
		}
	}
	return s.claimConflictError(ctx, tenantID, sector, operator)
}

// claimConflictError names the reason an exhausted claim kept failing: the
// operator already holds another open sector of the campaign, or somebody
// else holds this one.
func (s *SectorService) claimConflictError(ctx context.Context, tenantID uuid.UUID, sector *counting.Sector, operator counting.Actor) error {
	open, err := s.sectorRepo.FindOpenByOperator(ctx, tenantID, sector.InventoryID, operator.ID)
	if err == nil {
		for i := range open {
			if open[i].ID != sector.ID {
				return counting.ErrOperatorHasOpenSector.
					WithDetail("open_sector_number", open[i].Number).
					WithDetail("open_sector_id", open[i].ID)
			}
		}
	}
	return counting.ErrSectorInUse.WithDetail("holder_name", sector.HolderName)
}

// Finalize closes a sector to further counting. Only the current holder may
// finalize it.
func (s *SectorService) Finalize(ctx context.Context, tenantID, sectorID uuid.UUID, operator counting.Actor, origin counting.Origin) (*SectorResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sector", "finalize")
	defer span.End()

	telemetry.SetAttribute(span, telemetry.SpanAttrSectorID, sectorID.String())

	sector, err := s.sectorRepo.FindByIDForTenant(ctx, tenantID, sectorID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// State first: finalizing a PENDING or FINALIZED sector is a state
	// problem, not a holdership one.
	if sector.Status != counting.SectorStatusInProgress {
		return nil, counting.ErrSectorNotInProgress.WithDetail("status", sector.Status.String())
	}
	if !sector.HeldBy(operator.ID) {
		return nil, counting.ErrSectorNotHeldByOperator.WithDetail("holder_name", sector.HolderName)
	}

	if err := sector.Finalize(operator, origin); err != nil {
		return nil, err
	}

	if err := s.sectorRepo.SaveWithLock(ctx, sector); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordSectorFinalized(ctx, tenantID)
	}

	s.publishEvents(ctx, sector)

	response := ToSectorResponse(sector)
	return &response, nil
}

// Reopen puts a finalized sector back in progress, requiring the reopen
// capability. The campaign must still be active.
func (s *SectorService) Reopen(ctx context.Context, tenantID, sectorID uuid.UUID, operator counting.Actor, origin counting.Origin) (*SectorResponse, error) {
	if err := s.requireCapability(ctx, tenantID, operator.ID, CapabilityReopenSector); err != nil {
		return nil, err
	}

	sector, err := s.sectorRepo.FindByIDForTenant(ctx, tenantID, sectorID)
	if err != nil {
		return nil, err
	}

	inv, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, sector.InventoryID)
	if err != nil {
		return nil, err
	}
	if inv.IsClosed() {
		return nil, counting.ErrInventoryAlreadyClosed
	}
	if !inv.Active {
		return nil, counting.ErrInventoryNotActive
	}

	if err := sector.Reopen(operator, origin); err != nil {
		return nil, err
	}

	if err := s.sectorRepo.SaveWithLock(ctx, sector); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, sector)

	response := ToSectorResponse(sector)
	return &response, nil
}

// Release returns an in-progress sector to the pending pool. The holder may
// always release their own sector; releasing someone else's requires the
// release capability.
func (s *SectorService) Release(ctx context.Context, tenantID, sectorID uuid.UUID, operator counting.Actor, origin counting.Origin) (*SectorResponse, error) {
	sector, err := s.sectorRepo.FindByIDForTenant(ctx, tenantID, sectorID)
	if err != nil {
		return nil, err
	}

	if !sector.HeldBy(operator.ID) {
		if err := s.requireCapability(ctx, tenantID, operator.ID, CapabilityReleaseSector); err != nil {
			return nil, err
		}
	}

	if err := sector.Release(operator, origin); err != nil {
		return nil, err
	}

	if err := s.sectorRepo.SaveWithLock(ctx, sector); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, sector)

	response := ToSectorResponse(sector)
	return &response, nil
}

func (s *SectorService) requireCapability(ctx context.Context, tenantID, actorID uuid.UUID, capability string) error {
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
func (s *SectorService) publishEvents(ctx context.Context, sector *counting.Sector) {
	if s.eventBus == nil {
		return
	}

	for _, event := range sector.GetDomainEvents() {
		_ = s.eventBus.Publish(ctx, event)
	}
	sector.ClearDomainEvents()
}
