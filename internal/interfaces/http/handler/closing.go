package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	countingapp "github.com/tally/backend/internal/application/counting"
)

// ClosingHandler handles the campaign finalization workflow
type ClosingHandler struct {
	BaseHandler
	closingService *countingapp.ClosingService
}

// NewClosingHandler creates a new ClosingHandler
func NewClosingHandler(closingService *countingapp.ClosingService) *ClosingHandler {
	return &ClosingHandler{
		closingService: closingService,
	}
}

// GetClosingStatus previews whether the campaign can finalize. The same
// evaluation backs the finalize guard, so a clean preview means a plain
// finalize will go through.
func (h *ClosingHandler) GetClosingStatus(c *gin.Context) {
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

	result, err := h.closingService.GetClosingStatus(c.Request.Context(), tenantID, inventoryID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Finalize finishes the campaign. Open sectors or pending divergences block
// a plain finalize; a forced finalize records each overridden block and
// requires a justification.
func (h *ClosingHandler) Finalize(c *gin.Context) {
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

	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	var req countingapp.FinalizeInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.closingService.Finalize(c.Request.Context(), tenantID, inventoryID, req, actor, getOrigin(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Reopen puts a finalized campaign back in progress
func (h *ClosingHandler) Reopen(c *gin.Context) {
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

	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	result, err := h.closingService.Reopen(c.Request.Context(), tenantID, inventoryID, actor, getOrigin(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Close hard-closes the campaign. A closed campaign accepts no further
// transitions, not even a reopen.
func (h *ClosingHandler) Close(c *gin.Context) {
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

	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	var req countingapp.CloseInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.closingService.Close(c.Request.Context(), tenantID, inventoryID, req, actor, getOrigin(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
