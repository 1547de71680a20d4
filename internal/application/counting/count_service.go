package counting

import (
	"context"

	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// CountService records count submissions and supervisor reconciliations.
// Submissions are append-only; retried requests are deduplicated through the
// idempotency store when the client sends a key.
type CountService struct {
	countRepo     counting.CountEntryRepository
	sectorRepo    counting.SectorRepository
	inventoryRepo counting.InventoryRepository
	capabilities  CapabilityChecker
	eventBus      shared.EventBus
	idempotency   shared.IdempotencyStore
	idemConfig    shared.IdempotencyConfig
	metrics       MetricsSink
}

// NewCountService creates a new CountService
func NewCountService(
	countRepo counting.CountEntryRepository,
	sectorRepo counting.SectorRepository,
	inventoryRepo counting.InventoryRepository,
	capabilities CapabilityChecker,
	eventBus shared.EventBus,
	idempotency shared.IdempotencyStore,
	idemConfig shared.IdempotencyConfig,
) *CountService {
	return &CountService{
		countRepo:     countRepo,
		sectorRepo:    sectorRepo,
		inventoryRepo: inventoryRepo,
		capabilities:  capabilities,
		eventBus:      eventBus,
		idempotency:   idempotency,
		idemConfig:    idemConfig,
	}
}

// SetMetrics attaches an optional metrics sink. Must be called before the
// service handles requests.
func (s *CountService) SetMetrics(metrics MetricsSink) {
	s.metrics = metrics
}

// ===================== Query Methods =====================

// ListBySector retrieves the count entries of a sector
func (s *CountService) ListBySector(ctx context.Context, tenantID, sectorID uuid.UUID, filter shared.Filter) ([]CountEntryResponse, int64, error) {
	entries, err := s.countRepo.FindBySector(ctx, tenantID, sectorID, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.countRepo.CountBySector(ctx, tenantID, sectorID)
	if err != nil {
		return nil, 0, err
	}

	return ToCountEntryResponses(entries), total, nil
}

// ===================== Command Methods =====================

// SubmitCount appends a count entry to a sector held by the operator. When
// idempotencyKey is non-empty and was seen before, the submission is dropped
// and the response flags a duplicate.
func (s *CountService) SubmitCount(ctx context.Context, tenantID, sectorID uuid.UUID, req SubmitCountRequest, operator counting.Actor, origin counting.Origin, idempotencyKey string) (*CountEntryResponse, error) {
	sector, err := s.sectorRepo.FindByIDForTenant(ctx, tenantID, sectorID)
	if err != nil {
		return nil, err
	}

	if !sector.HeldBy(operator.ID) {
		return nil, counting.ErrSectorNotHeldByOperator.WithDetail("sector_number", sector.Number)
	}

	inv, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, sector.InventoryID)
	if err != nil {
		return nil, err
	}
	if !inv.Active {
		return nil, counting.ErrInventoryNotActive
	}

	idemKey := ""
	if idempotencyKey != "" && s.idempotency != nil && s.idemConfig.Enabled {
		idemKey = tenantID.String() + ":" + idempotencyKey
		fresh, err := s.idempotency.MarkProcessed(ctx, idemKey, s.idemConfig.TTL)
		if err != nil {
			return nil, err
		}
		if !fresh {
			return &CountEntryResponse{SectorID: sectorID, ProductID: req.ProductID, Duplicate: true}, nil
		}
	}

	entry, err := counting.NewCountEntry(inv, sectorID, req.ProductID, req.ProductCode, req.Quantity, req.LotCode, req.ExpiresAt, operator)
	if err != nil {
		s.releaseIdempotencyKey(ctx, idemKey)
		return nil, err
	}

	if err := s.countRepo.Append(ctx, entry); err != nil {
		// The mark must not outlive a failed insert, or the client's
		// retry would be dropped as a duplicate with nothing stored.
		s.releaseIdempotencyKey(ctx, idemKey)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordCountsSubmitted(ctx, tenantID, 1)
	}

	if s.eventBus != nil {
		_ = s.eventBus.Publish(ctx, counting.NewCountRecordedEvent(sector, entry, operator, origin))
	}

	response := ToCountEntryResponse(entry)
	return &response, nil
}

func (s *CountService) releaseIdempotencyKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	_ = s.idempotency.Release(ctx, key)
}

// ReconcileProduct marks every entry of a (sector, product) pair as reviewed.
// Requires the reconcile capability.
func (s *CountService) ReconcileProduct(ctx context.Context, tenantID, sectorID, productID uuid.UUID, actor counting.Actor, origin counting.Origin) (*ReconcileResponse, error) {
	allowed, err := s.capabilities.HasCapability(ctx, tenantID, actor.ID, CapabilityReconcile)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, shared.ErrForbidden.WithDetail("capability", CapabilityReconcile)
	}

	sector, err := s.sectorRepo.FindByIDForTenant(ctx, tenantID, sectorID)
	if err != nil {
		return nil, err
	}

	affected, err := s.countRepo.SetReconciled(ctx, tenantID, sectorID, productID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, shared.ErrNotFound.WithDetail("product_id", productID)
	}

	if s.eventBus != nil {
		_ = s.eventBus.Publish(ctx, counting.NewProductReconciledEvent(sector, productID, affected, actor, origin))
	}

	return &ReconcileResponse{
		SectorID:        sectorID,
		ProductID:       productID,
		EntriesAffected: affected,
	}, nil
}
