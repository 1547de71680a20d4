package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	countingapp "github.com/tally/backend/internal/application/counting"
	"github.com/tally/backend/internal/domain/shared"
)

// IdempotencyKeyHeader carries the client-chosen key that makes count
// submission retries safe
const IdempotencyKeyHeader = "X-Idempotency-Key"

// CountHandler handles count entry API endpoints
type CountHandler struct {
	BaseHandler
	countService *countingapp.CountService
}

// NewCountHandler creates a new CountHandler
func NewCountHandler(countService *countingapp.CountService) *CountHandler {
	return &CountHandler{
		countService: countService,
	}
}

// Submit appends a count entry to the sector held by the calling operator.
// Entries are append only: a second count of the same product adds to the
// sector total instead of replacing it.
func (h *CountHandler) Submit(c *gin.Context) {
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

	var req countingapp.SubmitCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	idempotencyKey := c.GetHeader(IdempotencyKeyHeader)

	result, err := h.countService.SubmitCount(c.Request.Context(), tenantID, sectorID, req, operator, getOrigin(c), idempotencyKey)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	if result.Duplicate {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// ListBySector retrieves the count entries of a sector
func (h *CountHandler) ListBySector(c *gin.Context) {
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

	entries, total, err := h.countService.ListBySector(c.Request.Context(), tenantID, sectorID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, entries, total, filter.Page, filter.PageSize)
}

// Reconcile marks every entry of one product in one sector as reconciled.
// The flag only moves one way; later entries for the product start fresh.
func (h *CountHandler) Reconcile(c *gin.Context) {
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

	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}

	actor, err := getActor(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return
	}

	result, err := h.countService.ReconcileProduct(c.Request.Context(), tenantID, sectorID, productID, actor, getOrigin(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
