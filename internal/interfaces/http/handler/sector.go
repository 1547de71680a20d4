package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	countingapp "github.com/tally/backend/internal/application/counting"
	"github.com/tally/backend/internal/domain/counting"
)

// SectorHandler handles sector lifecycle API endpoints
type SectorHandler struct {
	BaseHandler
	sectorService *countingapp.SectorService
}

// NewSectorHandler creates a new SectorHandler
func NewSectorHandler(sectorService *countingapp.SectorService) *SectorHandler {
	return &SectorHandler{
		sectorService: sectorService,
	}
}

// GetByID retrieves a sector with its current holder and status
func (h *SectorHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid sector ID format")
		return
	}

	result, err := h.sectorService.GetByID(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Open claims the sector for the calling operator. At most one operator
// holds a sector at a time; the losing side of a race gets a conflict.
// An out-of-sequence open on a sequential campaign succeeds with a warning.
func (h *SectorHandler) Open(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	if _, err := uuid.Parse(c.Param("id")); err != nil {
		h.BadRequest(c, "Invalid inventory ID format")
		return
	}

	sectorID, err := uuid.Parse(c.Param("sectorId"))
	if err != nil {
		h.BadRequest(c, "Invalid sector ID format")
		return
	}

	operator, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	result, err := h.sectorService.Open(c.Request.Context(), tenantID, sectorID, operator, getOrigin(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithWarning(c, result.Sector, result.Warning)
}

// Finalize closes the sector held by the calling operator
func (h *SectorHandler) Finalize(c *gin.Context) {
	h.transition(c, h.sectorService.Finalize)
}

// Reopen puts a finalized sector back in progress for a recount
func (h *SectorHandler) Reopen(c *gin.Context) {
	h.transition(c, h.sectorService.Reopen)
}

// Release gives up the sector without finalizing it, returning it to the
// pool of pending sectors
func (h *SectorHandler) Release(c *gin.Context) {
	h.transition(c, h.sectorService.Release)
}

type sectorTransition func(ctx context.Context, tenantID, sectorID uuid.UUID, operator counting.Actor, origin counting.Origin) (*countingapp.SectorResponse, error)

// transition runs one of the holder-bound state changes
func (h *SectorHandler) transition(c *gin.Context, op sectorTransition) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	sectorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid sector ID format")
		return
	}

	operator, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	result, err := op(c.Request.Context(), tenantID, sectorID, operator, getOrigin(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
