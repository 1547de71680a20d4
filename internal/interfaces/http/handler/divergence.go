package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	countingapp "github.com/tally/backend/internal/application/counting"
	"github.com/tally/backend/internal/domain/counting"
)

// DivergenceHandler serves the derived divergence view of a campaign
type DivergenceHandler struct {
	BaseHandler
	divergenceService *countingapp.DivergenceService
}

// NewDivergenceHandler creates a new DivergenceHandler
func NewDivergenceHandler(divergenceService *countingapp.DivergenceService) *DivergenceHandler {
	return &DivergenceHandler{
		divergenceService: divergenceService,
	}
}

// List retrieves one page of divergences, sorted by absolute difference
// descending. The view is computed on read, never stored.
func (h *DivergenceHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	inventoryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid inventory ID format")
		return
	}

	var filter countingapp.DivergenceListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := counting.DivergenceStatus(statusStr)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid status value")
			return
		}
		filter.Status = status
	}

	if sectorIDStr := c.Query("sector_id"); sectorIDStr != "" {
		sectorID, err := uuid.Parse(sectorIDStr)
		if err != nil {
			h.BadRequest(c, "Invalid sector ID format")
			return
		}
		filter.SectorID = &sectorID
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	divergences, total, err := h.divergenceService.List(c.Request.Context(), tenantID, inventoryID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, divergences, total, filter.Page, filter.PageSize)
}
