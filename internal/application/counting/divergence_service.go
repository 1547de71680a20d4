package counting

import (
	"context"

	"github.com/google/uuid"
	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AggregationStrategy produces per (product, sector) totals for a campaign.
// The two implementations must be behaviorally identical; which one runs is
// purely a resilience decision.
type AggregationStrategy interface {
	Name() string
	Aggregate(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]counting.SectorProductCount, error)
}

// StorageAggregationStrategy sums in the database with a grouped query.
// This is the primary path: one round trip regardless of entry volume.
type StorageAggregationStrategy struct {
	countRepo counting.CountEntryRepository
}

// NewStorageAggregationStrategy creates the grouped-query strategy
func NewStorageAggregationStrategy(countRepo counting.CountEntryRepository) *StorageAggregationStrategy {
	return &StorageAggregationStrategy{countRepo: countRepo}
}

// Name identifies the strategy in logs
func (s *StorageAggregationStrategy) Name() string { return "storage" }

// Aggregate sums counted quantities in storage
func (s *StorageAggregationStrategy) Aggregate(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]counting.SectorProductCount, error) {
	totals, err := s.countRepo.AggregateByInventory(ctx, tenantID, inventoryID)
	if err != nil {
		return nil, err
	}

	counts := make([]counting.SectorProductCount, len(totals))
	for i, t := range totals {
		counts[i] = counting.SectorProductCount{
			SectorID:    t.SectorID,
			ProductID:   t.ProductID,
			ProductCode: t.ProductCode,
			Quantity:    t.Quantity,
			Reconciled:  t.Reconciled,
			Entries:     int(t.Entries),
		}
	}
	return counts, nil
}

// PagedAggregationStrategy walks the raw entry log in pages and folds it in
// memory. Fallback path for when the grouped query is unavailable.
type PagedAggregationStrategy struct {
	countRepo counting.CountEntryRepository
	pageSize  int
}

// NewPagedAggregationStrategy creates the in-memory fallback strategy
func NewPagedAggregationStrategy(countRepo counting.CountEntryRepository, pageSize int) *PagedAggregationStrategy {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &PagedAggregationStrategy{countRepo: countRepo, pageSize: pageSize}
}

// Name identifies the strategy in logs
func (s *PagedAggregationStrategy) Name() string { return "paged" }

// Aggregate fetches the raw entries page by page and folds them in memory
func (s *PagedAggregationStrategy) Aggregate(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]counting.SectorProductCount, error) {
	var all []counting.CountEntry
	for offset := 0; ; offset += s.pageSize {
		page, err := s.countRepo.FindByInventoryPaged(ctx, tenantID, inventoryID, offset, s.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			break
		}
	}
	return counting.AggregateEntries(all), nil
}

// DivergenceService computes the divergence view of a campaign. Divergences
// are never stored: every read joins the aggregated counts against the
// expected-balance snapshot.
type DivergenceService struct {
	balanceRepo counting.ProductBalanceRepository
	primary     AggregationStrategy
	fallback    AggregationStrategy
	logger      *zap.Logger
}

// NewDivergenceService creates a new DivergenceService. fallback may be nil
// when no secondary path is configured.
func NewDivergenceService(
	balanceRepo counting.ProductBalanceRepository,
	primary AggregationStrategy,
	fallback AggregationStrategy,
	logger *zap.Logger,
) *DivergenceService {
	return &DivergenceService{
		balanceRepo: balanceRepo,
		primary:     primary,
		fallback:    fallback,
		logger:      logger,
	}
}

// aggregate runs the primary strategy and falls back on failure
func (s *DivergenceService) aggregate(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]counting.SectorProductCount, error) {
	counts, err := s.primary.Aggregate(ctx, tenantID, inventoryID)
	if err == nil {
		return counts, nil
	}
	if s.fallback == nil {
		return nil, err
	}

	s.logger.Warn("aggregation strategy failed, falling back",
		zap.String("primary", s.primary.Name()),
		zap.String("fallback", s.fallback.Name()),
		zap.String("inventory_id", inventoryID.String()),
		zap.Error(err),
	)
	return s.fallback.Aggregate(ctx, tenantID, inventoryID)
}

// Compute returns all divergences of a campaign, sorted by absolute
// difference descending
func (s *DivergenceService) Compute(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]counting.Divergence, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "divergence", "compute")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInventoryID, inventoryID.String(),
		telemetry.SpanAttrStrategy, s.primary.Name(),
	)

	var divergences []counting.Divergence
	var computeErr error
	labels := telemetry.CountingOperationLabels(telemetry.OperationListDivergence, s.primary.Name())
	telemetry.WithProfilingLabels(ctx, labels, func(c context.Context) {
		counts, err := s.aggregate(c, tenantID, inventoryID)
		if err != nil {
			computeErr = err
			return
		}

		balances, err := s.balanceRepo.FindByInventory(c, tenantID, inventoryID)
		if err != nil {
			computeErr = err
			return
		}

		divergences = counting.ComputeDivergences(counts, balances)
	})
	if computeErr != nil {
		telemetry.RecordError(span, computeErr)
		return nil, computeErr
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrDivergenceCount, len(divergences))
	return divergences, nil
}

// List returns one page of divergences, optionally filtered by status.
// Pagination happens after the sort so page boundaries are stable.
func (s *DivergenceService) List(ctx context.Context, tenantID, inventoryID uuid.UUID, filter DivergenceListFilter) ([]counting.Divergence, int64, error) {
	divergences, err := s.Compute(ctx, tenantID, inventoryID)
	if err != nil {
		return nil, 0, err
	}

	if filter.SectorID != nil {
		bySector := make([]counting.Divergence, 0, len(divergences))
		for _, d := range divergences {
			if d.SectorID == *filter.SectorID {
				bySector = append(bySector, d)
			}
		}
		divergences = bySector
	}
	if filter.Status != "" {
		divergences = counting.FilterDivergences(divergences, filter.Status)
	}
	total := int64(len(divergences))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	start := (page - 1) * pageSize
	if start >= len(divergences) {
		return []counting.Divergence{}, total, nil
	}
	end := start + pageSize
	if end > len(divergences) {
		end = len(divergences)
	}
	return divergences[start:end], total, nil
}

// CountPending returns the number of unreconciled divergences of a campaign
func (s *DivergenceService) CountPending(ctx context.Context, tenantID, inventoryID uuid.UUID) (int64, error) {
	divergences, err := s.Compute(ctx, tenantID, inventoryID)
	if err != nil {
		return 0, err
	}
	return int64(len(counting.FilterDivergences(divergences, counting.DivergenceStatusPending))), nil
}
