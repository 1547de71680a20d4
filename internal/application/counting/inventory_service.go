package counting

import (
	"context"
	"errors"
	"time"

	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InventoryService provides application services for managing counting
// campaigns: scheduling, sector layout and the expected-balance snapshot.
type InventoryService struct {
	inventoryRepo counting.InventoryRepository
	sectorRepo    counting.SectorRepository
	balanceRepo   counting.ProductBalanceRepository
	countRepo     counting.CountEntryRepository
	eventBus      shared.EventBus
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(
	inventoryRepo counting.InventoryRepository,
	sectorRepo counting.SectorRepository,
	balanceRepo counting.ProductBalanceRepository,
	countRepo counting.CountEntryRepository,
	eventBus shared.EventBus,
) *InventoryService {
	return &InventoryService{
		inventoryRepo: inventoryRepo,
		sectorRepo:    sectorRepo,
		balanceRepo:   balanceRepo,
		countRepo:     countRepo,
		eventBus:      eventBus,
	}
}

// ===================== Query Methods =====================

// GetByID retrieves a campaign by ID
func (s *InventoryService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*InventoryResponse, error) {
	inv, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	response := ToInventoryResponse(inv)
	return &response, nil
}

// List retrieves a paginated list of campaigns
func (s *InventoryService) List(ctx context.Context, tenantID uuid.UUID, filter InventoryListFilter) ([]InventoryResponse, int64, error) {
	domainFilter := shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  filter.OrderBy,
		OrderDir: filter.OrderDir,
		Search:   filter.Search,
	}

	total, err := s.inventoryRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	invs, err := s.inventoryRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToInventoryResponses(invs), total, nil
}

// ListSectors retrieves all sectors of a campaign ordered by number
func (s *InventoryService) ListSectors(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]SectorResponse, error) {
	if _, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, inventoryID); err != nil {
		return nil, err
	}

	sectors, err := s.sectorRepo.FindByInventory(ctx, tenantID, inventoryID)
	if err != nil {
		return nil, err
	}

	return ToSectorResponses(sectors), nil
}

// ===================== Command Methods =====================

// Create schedules a new counting campaign with its sector layout and the
// expected-balance snapshot. Only one active campaign per store is allowed.
func (s *InventoryService) Create(ctx context.Context, tenantID uuid.UUID, req CreateInventoryRequest, createdBy counting.Actor) (*InventoryResponse, error) {
	existing, err := s.inventoryRepo.FindActiveByStore(ctx, tenantID, req.StoreID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, counting.ErrInventoryAlreadyActive.WithDetail("inventory_id", existing.ID)
	}

	startsAt := time.Now()
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
	}

	inv, err := counting.NewInventory(tenantID, req.StoreID, req.StoreName, startsAt, req.ScheduledEndAt, counting.InventoryPolicy{
		MinCountsPerProduct: req.MinCountsPerProduct,
		TrackLots:           req.TrackLots,
		TrackExpiry:         req.TrackExpiry,
		SequentialSectors:   req.SequentialSectors,
	}, createdBy)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool, len(req.Sectors))
	sectors := make([]*counting.Sector, 0, len(req.Sectors))
	for _, def := range req.Sectors {
		if seen[def.Number] {
			return nil, shared.ErrInvalidInput.WithDetail("duplicate_sector_number", def.Number)
		}
		seen[def.Number] = true

		sector, err := counting.NewSector(tenantID, inv.ID, def.Number, def.RangeStart, def.RangeEnd, def.Label)
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, sector)
	}

	balances := make([]*counting.ProductBalance, 0, len(req.Balances))
	for _, def := range req.Balances {
		balance, err := counting.NewProductBalance(tenantID, inv.ID, def.ProductID, def.ProductCode, def.ProductName, def.Unit, def.ExpectedQuantity)
		if err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}

	if err := s.inventoryRepo.Save(ctx, inv); err != nil {
		return nil, err
	}
	if err := s.sectorRepo.SaveBatch(ctx, sectors); err != nil {
		return nil, err
	}
	if len(balances) > 0 {
		if err := s.balanceRepo.SaveBatch(ctx, balances); err != nil {
			return nil, err
		}
	}

	s.publishEvents(ctx, inv)

	response := ToInventoryResponse(inv)
	return &response, nil
}

// AddSectors appends sectors to an active campaign. Numbers must not collide
// with sectors that already exist.
func (s *InventoryService) AddSectors(ctx context.Context, tenantID, inventoryID uuid.UUID, defs []SectorDefinition) ([]SectorResponse, error) {
	inv, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, inventoryID)
	if err != nil {
		return nil, err
	}
	if !inv.Active {
		return nil, counting.ErrInventoryNotActive
	}

	existing, err := s.sectorRepo.FindByInventory(ctx, tenantID, inventoryID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(existing)+len(defs))
	for i := range existing {
		seen[existing[i].Number] = true
	}

	sectors := make([]*counting.Sector, 0, len(defs))
	for _, def := range defs {
		if seen[def.Number] {
			return nil, shared.ErrInvalidInput.WithDetail("duplicate_sector_number", def.Number)
		}
		seen[def.Number] = true

		sector, err := counting.NewSector(tenantID, inventoryID, def.Number, def.RangeStart, def.RangeEnd, def.Label)
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, sector)
	}

	if err := s.sectorRepo.SaveBatch(ctx, sectors); err != nil {
		return nil, err
	}

	created := make([]counting.Sector, len(sectors))
	for i := range sectors {
		created[i] = *sectors[i]
	}
	return ToSectorResponses(created), nil
}

// LoadBalances replaces the expected-balance snapshot of a campaign. The
// snapshot is frozen once counting starts: any existing count entry blocks
// the reload.
func (s *InventoryService) LoadBalances(ctx context.Context, tenantID, inventoryID uuid.UUID, defs []ProductBalanceDefinition) (int, error) {
	inv, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, inventoryID)
	if err != nil {
		return 0, err
	}
	if !inv.Active {
		return 0, counting.ErrInventoryNotActive
	}

	hasCounts, err := s.countRepo.ExistsForInventory(ctx, tenantID, inventoryID)
	if err != nil {
		return 0, err
	}
	if hasCounts {
		return 0, shared.ErrInvalidState.WithDetail("reason", "counting already started, balance snapshot is frozen")
	}

	balances := make([]*counting.ProductBalance, 0, len(defs))
	for _, def := range defs {
		balance, err := counting.NewProductBalance(tenantID, inventoryID, def.ProductID, def.ProductCode, def.ProductName, def.Unit, def.ExpectedQuantity)
		if err != nil {
			return 0, err
		}
		balances = append(balances, balance)
	}

	if err := s.balanceRepo.DeleteByInventory(ctx, tenantID, inventoryID); err != nil {
		return 0, err
	}
	if err := s.balanceRepo.SaveBatch(ctx, balances); err != nil {
		return 0, err
	}
	return len(balances), nil
}

// Delete removes a campaign that never received counts, along with its
// sectors and balance snapshot
func (s *InventoryService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	inv, err := s.inventoryRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return err
	}

	hasCounts, err := s.countRepo.ExistsForInventory(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if hasCounts {
		return counting.ErrInventoryHasCountEntries
	}

	sectors, err := s.sectorRepo.FindByInventory(ctx, tenantID, id)
	if err != nil {
		return err
	}
	for i := range sectors {
		if err := s.sectorRepo.Delete(ctx, sectors[i].ID); err != nil {
			return err
		}
	}

	if err := s.balanceRepo.DeleteByInventory(ctx, tenantID, id); err != nil {
		return err
	}

	return s.inventoryRepo.Delete(ctx, inv.ID)
}

// publishEvents publishes domain events from the aggregate
func (s *InventoryService) publishEvents(ctx context.Context, inv *counting.Inventory) {
	if s.eventBus == nil {
		return
	}

	for _, event := range inv.GetDomainEvents() {
		_ = s.eventBus.Publish(ctx, event)
	}
	inv.ClearDomainEvents()
}
