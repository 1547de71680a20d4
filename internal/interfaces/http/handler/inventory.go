package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	countingapp "github.com/tally/backend/internal/application/counting"
)

// InventoryHandler handles counting campaign API endpoints
type InventoryHandler struct {
	BaseHandler
	inventoryService *countingapp.InventoryService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(inventoryService *countingapp.InventoryService) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
	}
}

// AddSectorsRequest adds sectors to an existing campaign
type AddSectorsRequest struct {
	Sectors []countingapp.SectorDefinition `json:"sectors" binding:"required,min=1,dive"`
}

// LoadBalancesRequest replaces the expected-balance snapshot of a campaign
type LoadBalancesRequest struct {
	Balances []countingapp.ProductBalanceDefinition `json:"balances" binding:"required,min=1,dive"`
}

// LoadBalancesResponse reports how many balance rows were loaded
type LoadBalancesResponse struct {
	Loaded int `json:"loaded"`
}

// GetByID retrieves a counting campaign with its configuration
func (h *InventoryHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid inventory ID format")
		return
	}

	result, err := h.inventoryService.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// List retrieves a paginated list of counting campaigns
func (h *InventoryHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var filter countingapp.InventoryListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if storeIDStr := c.Query("store_id"); storeIDStr != "" {
		storeID, err := uuid.Parse(storeIDStr)
		if err != nil {
			h.BadRequest(c, "Invalid store ID format")
			return
		}
		filter.StoreID = &storeID
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	items, total, err := h.inventoryService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// ListSectors retrieves all sectors of a campaign ordered by number
func (h *InventoryHandler) ListSectors(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid inventory ID format")
		return
	}

	sectors, err := h.inventoryService.ListSectors(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, sectors)
}

// Create schedules a new counting campaign with its sector plan and an
// optional expected-balance snapshot
func (h *InventoryHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	createdBy, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	var req countingapp.CreateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.inventoryService.Create(c.Request.Context(), tenantID, req, createdBy)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// AddSectors appends sectors to a campaign that has not finished yet
func (h *InventoryHandler) AddSectors(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid inventory ID format")
		return
	}

	var req AddSectorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	sectors, err := h.inventoryService.AddSectors(c.Request.Context(), tenantID, id, req.Sectors)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, sectors)
}

// LoadBalances replaces the expected-balance snapshot. Rejected once the
// first count entry exists because the snapshot is frozen at that point.
func (h *InventoryHandler) LoadBalances(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid inventory ID format")
		return
	}

	var req LoadBalancesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	loaded, err := h.inventoryService.LoadBalances(c.Request.Context(), tenantID, id, req.Balances)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, LoadBalancesResponse{Loaded: loaded})
}

// Delete removes a campaign that never recorded a count entry
func (h *InventoryHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid inventory ID format")
		return
	}

	if err := h.inventoryService.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}
