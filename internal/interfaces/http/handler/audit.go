package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	countingapp "github.com/tally/backend/internal/application/counting"
	"github.com/tally/backend/internal/domain/shared"
)

// AuditHandler serves the audit trail of a campaign
type AuditHandler struct {
	BaseHandler
	auditService *countingapp.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(auditService *countingapp.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

// ListByInventory retrieves audit records of a campaign, newest first
func (h *AuditHandler) ListByInventory(c *gin.Context) {
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

	filter := shared.DefaultFilter()
	var listReq struct {
		Page     int `form:"page" binding:"omitempty,min=1"`
		PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if listReq.Page > 0 {
		filter.Page = listReq.Page
	}
	if listReq.PageSize > 0 {
		filter.PageSize = listReq.PageSize
	}

	entries, total, err := h.auditService.ListByInventory(c.Request.Context(), tenantID, inventoryID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, entries, total, filter.Page, filter.PageSize)
}
