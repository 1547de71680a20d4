package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	countingapp "github.com/tally/backend/internal/application/counting"
	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/interfaces/http/dto"
)

func newSectorHandler(sectorRepo *MockSectorRepository, inventoryRepo *MockInventoryRepository) *SectorHandler {
	service := countingapp.NewSectorService(sectorRepo, inventoryRepo, grantAll{}, nil)
	return NewSectorHandler(service)
}

func TestSectorHandler_Open_Success(t *testing.T) {
	inv := activeInventory()
	sector := pendingSector(inv.ID, 1)

	sectorRepo := new(MockSectorRepository)
	inventoryRepo := new(MockInventoryRepository)
	sectorRepo.On("FindByIDForTenant", mock.Anything, testTenantID, sector.ID).Return(sector, nil)
	inventoryRepo.On("FindByIDForTenant", mock.Anything, testTenantID, inv.ID).Return(inv, nil)
	sectorRepo.On("FindOpenByOperator", mock.Anything, testTenantID, inv.ID, testUserID).Return([]counting.Sector{}, nil)
	sectorRepo.On("Claim", mock.Anything, testTenantID, mock.Anything).Return(nil)

	h := newSectorHandler(sectorRepo, inventoryRepo)

	c, w := newAuthedContext(t, http.MethodPost, "/counting/inventories/"+inv.ID.String()+"/sectors/"+sector.ID.String()+"/open", nil)
	c.Params = gin.Params{
		{Key: "id", Value: inv.ID.String()},
		{Key: "sectorId", Value: sector.ID.String()},
	}

	h.Open(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Warning)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "IN_PROGRESS", data["status"])
	assert.Equal(t, testUserID.String(), data["holder_id"])
}

func TestSectorHandler_Open_OutOfSequenceWarns(t *testing.T) {
	inv := activeInventory()
	inv.SequentialSectors = true
	sector := pendingSector(inv.ID, 3)

	sectorRepo := new(MockSectorRepository)
	inventoryRepo := new(MockInventoryRepository)
	sectorRepo.On("FindByIDForTenant", mock.Anything, testTenantID, sector.ID).Return(sector, nil)
	inventoryRepo.On("FindByIDForTenant", mock.Anything, testTenantID, inv.ID).Return(inv, nil)
	sectorRepo.On("FindOpenByOperator", mock.Anything, testTenantID, inv.ID, testUserID).Return([]counting.Sector{}, nil)
	sectorRepo.On("HasPendingBefore", mock.Anything, testTenantID, inv.ID, 3).Return(true, nil)
	sectorRepo.On("Claim", mock.Anything, testTenantID, mock.Anything).Return(nil)

	h := newSectorHandler(sectorRepo, inventoryRepo)

	c, w := newAuthedContext(t, http.MethodPost, "/open", nil)
	c.Params = gin.Params{
		{Key: "id", Value: inv.ID.String()},
		{Key: "sectorId", Value: sector.ID.String()},
	}

	h.Open(c)

	// The open still succeeds; the sequence violation is only a warning
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Warning, "out of sequence")
}

func TestSectorHandler_Open_HeldByAnotherOperator(t *testing.T) {
	inv := activeInventory()
	other := heldSector(inv.ID, 1, testTenantID, "Joao Santos")

	sectorRepo := new(MockSectorRepository)
	inventoryRepo := new(MockInventoryRepository)
	sectorRepo.On("FindByIDForTenant", mock.Anything, testTenantID, other.ID).Return(other, nil)
	inventoryRepo.On("FindByIDForTenant", mock.Anything, testTenantID, inv.ID).Return(inv, nil)

	h := newSectorHandler(sectorRepo, inventoryRepo)

	c, w := newAuthedContext(t, http.MethodPost, "/open", nil)
	c.Params = gin.Params{
		{Key: "id", Value: inv.ID.String()},
		{Key: "sectorId", Value: other.ID.String()},
	}

	h.Open(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeSectorInUse, resp.Error.Code)
	assert.Equal(t, "Joao Santos", resp.Error.Data["holder_name"])
}

func TestSectorHandler_Open_InvalidSectorID(t *testing.T) {
	h := newSectorHandler(new(MockSectorRepository), new(MockInventoryRepository))

	c, w := newAuthedContext(t, http.MethodPost, "/open", nil)
	c.Params = gin.Params{
		{Key: "id", Value: activeInventory().ID.String()},
		{Key: "sectorId", Value: "not-a-uuid"},
	}

	h.Open(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSectorHandler_Finalize_NotHolder(t *testing.T) {
	inv := activeInventory()
	sector := heldSector(inv.ID, 2, testTenantID, "Joao Santos")

	sectorRepo := new(MockSectorRepository)
	sectorRepo.On("FindByIDForTenant", mock.Anything, testTenantID, sector.ID).Return(sector, nil)

	h := newSectorHandler(sectorRepo, new(MockInventoryRepository))

	c, w := newAuthedContext(t, http.MethodPost, "/finalize", nil)
	c.Params = gin.Params{{Key: "id", Value: sector.ID.String()}}

	h.Finalize(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeForbidden, resp.Error.Code)
}

func TestSectorHandler_Finalize_Success(t *testing.T) {
	inv := activeInventory()
	sector := heldSector(inv.ID, 2, testUserID, "Maria Silva")

	sectorRepo := new(MockSectorRepository)
	sectorRepo.On("FindByIDForTenant", mock.Anything, testTenantID, sector.ID).Return(sector, nil)
	sectorRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

	h := newSectorHandler(sectorRepo, new(MockInventoryRepository))

	c, w := newAuthedContext(t, http.MethodPost, "/finalize", nil)
	c.Params = gin.Params{{Key: "id", Value: sector.ID.String()}}

	h.Finalize(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "FINALIZED", data["status"])
}

func TestSectorHandler_Release_ReturnsSectorToPending(t *testing.T) {
	inv := activeInventory()
	sector := heldSector(inv.ID, 4, testUserID, "Maria Silva")

	sectorRepo := new(MockSectorRepository)
	sectorRepo.On("FindByIDForTenant", mock.Anything, testTenantID, sector.ID).Return(sector, nil)
	sectorRepo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

	h := newSectorHandler(sectorRepo, new(MockInventoryRepository))

	c, w := newAuthedContext(t, http.MethodPost, "/release", nil)
	c.Params = gin.Params{{Key: "id", Value: sector.ID.String()}}

	h.Release(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "PENDING", data["status"])
	assert.Nil(t, data["holder_id"])
}
