package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	countingapp "github.com/tally/backend/internal/application/counting"
	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/interfaces/http/dto"
)

type inventoryHandlerMocks struct {
	inventoryRepo *MockInventoryRepository
	sectorRepo    *MockSectorRepository
	balanceRepo   *MockProductBalanceRepository
	countRepo     *MockCountEntryRepository
}

func newInventoryHandler() (*InventoryHandler, inventoryHandlerMocks) {
	m := inventoryHandlerMocks{
		inventoryRepo: new(MockInventoryRepository),
		sectorRepo:    new(MockSectorRepository),
		balanceRepo:   new(MockProductBalanceRepository),
		countRepo:     new(MockCountEntryRepository),
	}
	service := countingapp.NewInventoryService(m.inventoryRepo, m.sectorRepo, m.balanceRepo, m.countRepo, nil)
	return NewInventoryHandler(service), m
}

func TestInventoryHandler_Create_Success(t *testing.T) {
	h, m := newInventoryHandler()

	storeID := uuid.New()
	m.inventoryRepo.On("FindActiveByStore", mock.Anything, testTenantID, storeID).Return(nil, shared.ErrNotFound)
	m.inventoryRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	m.sectorRepo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

	body := map[string]any{
		"store_id":   storeID.String(),
		"store_name": "Store 12 - Centro",
		"sectors": []map[string]any{
			{"number": 1, "range_start": 0, "range_end": 500},
			{"number": 2, "range_start": 500, "range_end": 1000},
		},
	}

	c, w := newAuthedContext(t, http.MethodPost, "/counting/inventories", body)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Store 12 - Centro", data["store_name"])
	assert.Equal(t, true, data["active"])
	assert.Equal(t, testUserID.String(), data["created_by_id"])
}

func TestInventoryHandler_Create_MissingSectors(t *testing.T) {
	h, _ := newInventoryHandler()

	body := map[string]any{
		"store_id":   uuid.New().String(),
		"store_name": "Store 12 - Centro",
	}

	c, w := newAuthedContext(t, http.MethodPost, "/counting/inventories", body)

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInventoryHandler_List_ReturnsMeta(t *testing.T) {
	h, m := newInventoryHandler()

	inv := activeInventory()
	m.inventoryRepo.On("FindAllForTenant", mock.Anything, testTenantID, mock.Anything).Return([]counting.Inventory{*inv}, nil)
	m.inventoryRepo.On("CountForTenant", mock.Anything, testTenantID, mock.Anything).Return(int64(1), nil)

	c, w := newAuthedContext(t, http.MethodGet, "/counting/inventories?page=1&page_size=20", nil)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(1), resp.Meta.Total)
	assert.Equal(t, 1, resp.Meta.Page)
}

func TestInventoryHandler_AddSectors_DuplicateNumber(t *testing.T) {
	h, m := newInventoryHandler()

	inv := activeInventory()
	existing := pendingSector(inv.ID, 1)
	m.inventoryRepo.On("FindByIDForTenant", mock.Anything, testTenantID, inv.ID).Return(inv, nil)
	m.sectorRepo.On("FindByInventory", mock.Anything, testTenantID, inv.ID).Return([]counting.Sector{*existing}, nil)

	body := map[string]any{
		"sectors": []map[string]any{
			{"number": 1, "range_start": 0, "range_end": 100},
		},
	}

	c, w := newAuthedContext(t, http.MethodPost, "/sectors", body)
	c.Params = gin.Params{{Key: "id", Value: inv.ID.String()}}

	h.AddSectors(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeInvalidInput, resp.Error.Code)
	assert.Equal(t, float64(1), resp.Error.Data["duplicate_sector_number"])
}

func TestInventoryHandler_LoadBalances_FrozenAfterFirstCount(t *testing.T) {
	h, m := newInventoryHandler()

	inv := activeInventory()
	m.inventoryRepo.On("FindByIDForTenant", mock.Anything, testTenantID, inv.ID).Return(inv, nil)
	m.countRepo.On("ExistsForInventory", mock.Anything, testTenantID, inv.ID).Return(true, nil)

	body := map[string]any{
		"balances": []map[string]any{
			{"product_id": uuid.New().String(), "product_code": "7891000100103", "expected_quantity": "12"},
		},
	}

	c, w := newAuthedContext(t, http.MethodPost, "/balances", body)
	c.Params = gin.Params{{Key: "id", Value: inv.ID.String()}}

	h.LoadBalances(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
}

func TestInventoryHandler_LoadBalances_Success(t *testing.T) {
	h, m := newInventoryHandler()

	inv := activeInventory()
	m.inventoryRepo.On("FindByIDForTenant", mock.Anything, testTenantID, inv.ID).Return(inv, nil)
	m.countRepo.On("ExistsForInventory", mock.Anything, testTenantID, inv.ID).Return(false, nil)
	m.balanceRepo.On("DeleteByInventory", mock.Anything, testTenantID, inv.ID).Return(nil)
	m.balanceRepo.On("SaveBatch", mock.Anything, mock.Anything).Return(nil)

	body := map[string]any{
		"balances": []map[string]any{
			{"product_id": uuid.New().String(), "product_code": "7891000100103", "expected_quantity": "12.5"},
			{"product_id": uuid.New().String(), "product_code": "7891000100110", "expected_quantity": "3"},
		},
	}

	c, w := newAuthedContext(t, http.MethodPost, "/balances", body)
	c.Params = gin.Params{{Key: "id", Value: inv.ID.String()}}

	h.LoadBalances(c)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["loaded"])
}

func TestInventoryHandler_Delete_RejectedOnceCountsExist(t *testing.T) {
	h, m := newInventoryHandler()

	inv := activeInventory()
	m.inventoryRepo.On("FindByIDForTenant", mock.Anything, testTenantID, inv.ID).Return(inv, nil)
	m.countRepo.On("ExistsForInventory", mock.Anything, testTenantID, inv.ID).Return(true, nil)

	c, w := newAuthedContext(t, http.MethodDelete, "/counting/inventories/"+inv.ID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: inv.ID.String()}}

	h.Delete(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
}
