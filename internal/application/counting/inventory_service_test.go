package counting

import (
	"context"
	"testing"

	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestInventoryService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	storeID := uuid.New()
	creator := testOperator()

	validRequest := func() CreateInventoryRequest {
		return CreateInventoryRequest{
			StoreID:   storeID,
			StoreName: "Store Centro",
			Sectors: []SectorDefinition{
				{Number: 1, RangeStart: 0, RangeEnd: 1000},
				{Number: 2, RangeStart: 1000, RangeEnd: 2000, Label: "Cold storage"},
			},
			Balances: []ProductBalanceDefinition{
				{ProductID: uuid.New(), ProductCode: "PRD-001", ProductName: "Rice 5kg", Unit: "un", ExpectedQuantity: decimal.NewFromInt(40)},
			},
		}
	}

	t.Run("creates campaign with sectors and balance snapshot", func(t *testing.T) {
		inventoryRepo := new(MockInventoryRepository)
		sectorRepo := new(MockSectorRepository)
		balanceRepo := new(MockProductBalanceRepository)

		inventoryRepo.On("FindActiveByStore", ctx, tenantID, storeID).Return(nil, shared.ErrNotFound)
		inventoryRepo.On("Save", ctx, mock.Anything).Return(nil)
		sectorRepo.On("SaveBatch", ctx, mock.MatchedBy(func(sectors []*counting.Sector) bool {
			return len(sectors) == 2 && sectors[0].Number == 1 && sectors[1].Number == 2
		})).Return(nil)
		balanceRepo.On("SaveBatch", ctx, mock.MatchedBy(func(balances []*counting.ProductBalance) bool {
			return len(balances) == 1 && balances[0].ProductCode == "PRD-001"
		})).Return(nil)

		svc := NewInventoryService(inventoryRepo, sectorRepo, balanceRepo, new(MockCountEntryRepository), &captureBus{})
		resp, err := svc.Create(ctx, tenantID, validRequest(), creator)

		require.NoError(t, err)
		assert.True(t, resp.Active)
		assert.Equal(t, "Store Centro", resp.StoreName)
		sectorRepo.AssertExpectations(t)
		balanceRepo.AssertExpectations(t)
	})

	t.Run("rejects a second active campaign for the store", func(t *testing.T) {
		existing := activeInventory(t, tenantID)
		inventoryRepo := new(MockInventoryRepository)
		inventoryRepo.On("FindActiveByStore", ctx, tenantID, storeID).Return(existing, nil)

		svc := NewInventoryService(inventoryRepo, new(MockSectorRepository), new(MockProductBalanceRepository), new(MockCountEntryRepository), &captureBus{})
		_, err := svc.Create(ctx, tenantID, validRequest(), creator)

		require.Error(t, err)
		assert.ErrorIs(t, err, counting.ErrInventoryAlreadyActive)
	})

	t.Run("rejects duplicate sector numbers", func(t *testing.T) {
		inventoryRepo := new(MockInventoryRepository)
		inventoryRepo.On("FindActiveByStore", ctx, tenantID, storeID).Return(nil, shared.ErrNotFound)
		req := validRequest()
		req.Sectors = append(req.Sectors, SectorDefinition{Number: 1})

		svc := NewInventoryService(inventoryRepo, new(MockSectorRepository), new(MockProductBalanceRepository), new(MockCountEntryRepository), &captureBus{})
		_, err := svc.Create(ctx, tenantID, req, creator)

		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestInventoryService_Delete(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("deletes a campaign without counts", func(t *testing.T) {
		inv := activeInventory(t, tenantID)
		sector := pendingSector(t, tenantID, inv, 1)
		inventoryRepo := new(MockInventoryRepository)
		sectorRepo := new(MockSectorRepository)
		balanceRepo := new(MockProductBalanceRepository)
		countRepo := new(MockCountEntryRepository)

		inventoryRepo.On("FindByIDForTenant", ctx, tenantID, inv.ID).Return(inv, nil)
		countRepo.On("ExistsForInventory", ctx, tenantID, inv.ID).Return(false, nil)
		sectorRepo.On("FindByInventory", ctx, tenantID, inv.ID).Return([]counting.Sector{*sector}, nil)
		sectorRepo.On("Delete", ctx, sector.ID).Return(nil)
		balanceRepo.On("DeleteByInventory", ctx, tenantID, inv.ID).Return(nil)
		inventoryRepo.On("Delete", ctx, inv.ID).Return(nil)

		svc := NewInventoryService(inventoryRepo, sectorRepo, balanceRepo, countRepo, &captureBus{})
		err := svc.Delete(ctx, tenantID, inv.ID)

		require.NoError(t, err)
		inventoryRepo.AssertExpectations(t)
	})

	t.Run("refuses to delete once counts exist", func(t *testing.T) {
		inv := activeInventory(t, tenantID)
		inventoryRepo := new(MockInventoryRepository)
		countRepo := new(MockCountEntryRepository)

		inventoryRepo.On("FindByIDForTenant", ctx, tenantID, inv.ID).Return(inv, nil)
		countRepo.On("ExistsForInventory", ctx, tenantID, inv.ID).Return(true, nil)

		svc := NewInventoryService(inventoryRepo, new(MockSectorRepository), new(MockProductBalanceRepository), countRepo, &captureBus{})
		err := svc.Delete(ctx, tenantID, inv.ID)

		require.Error(t, err)
		assert.ErrorIs(t, err, counting.ErrInventoryHasCountEntries)
	})
}
