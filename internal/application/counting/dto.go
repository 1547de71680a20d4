package counting

import (
	"time"

	"github.com/tally/backend/internal/domain/counting"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===================== Request DTOs =====================

// SectorDefinition describes one sector of a new inventory
type SectorDefinition struct {
	Number     int    `json:"number" binding:"required,min=1"`
	RangeStart int64  `json:"range_start" binding:"min=0"`
	RangeEnd   int64  `json:"range_end" binding:"min=0"`
	Label      string `json:"label" binding:"max=100"`
}

// ProductBalanceDefinition is one expected-quantity row of the snapshot taken
// when an inventory is created
type ProductBalanceDefinition struct {
	ProductID        uuid.UUID       `json:"product_id" binding:"required"`
	ProductCode      string          `json:"product_code" binding:"required"`
	ProductName      string          `json:"product_name"`
	Unit             string          `json:"unit"`
	ExpectedQuantity decimal.Decimal `json:"expected_quantity"`
}

// CreateInventoryRequest represents a request to schedule a counting campaign
type CreateInventoryRequest struct {
	StoreID             uuid.UUID                  `json:"store_id" binding:"required"`
	StoreName           string                     `json:"store_name" binding:"required"`
	StartsAt            *time.Time                 `json:"starts_at"` // Optional, defaults to now
	ScheduledEndAt      *time.Time                 `json:"scheduled_end_at"`
	MinCountsPerProduct int                        `json:"min_counts_per_product" binding:"min=0"`
	TrackLots           bool                       `json:"track_lots"`
	TrackExpiry         bool                       `json:"track_expiry"`
	SequentialSectors   bool                       `json:"sequential_sectors"`
	Sectors             []SectorDefinition         `json:"sectors" binding:"required,min=1"`
	Balances            []ProductBalanceDefinition `json:"balances"`
}

// SubmitCountRequest represents one count submission inside a sector
type SubmitCountRequest struct {
	ProductID   uuid.UUID       `json:"product_id" binding:"required"`
	ProductCode string          `json:"product_code"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	LotCode     string          `json:"lot_code"`
	ExpiresAt   *time.Time      `json:"expires_at"`
}

// FinalizeInventoryRequest represents a request to finish a campaign.
// Forced requires a justification and elevated permissions.
type FinalizeInventoryRequest struct {
	Forced        bool   `json:"forced"`
	Justification string `json:"justification" binding:"max=500"`
}

// CloseInventoryRequest represents a request to hard-close a campaign
type CloseInventoryRequest struct {
	Forced        bool   `json:"forced"`
	Justification string `json:"justification" binding:"max=500"`
}

// InventoryListFilter represents filter options for the campaign list
type InventoryListFilter struct {
	Search   string     `form:"search"`
	StoreID  *uuid.UUID `form:"-"`
	Active   *bool      `form:"active"`
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string     `form:"order_by"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// DivergenceListFilter represents filter options for the divergence list
type DivergenceListFilter struct {
	SectorID *uuid.UUID                `form:"-"`
	Status   counting.DivergenceStatus `form:"status" binding:"omitempty,oneof=pending reconciled"`
	Page     int                       `form:"page" binding:"omitempty,min=1"`
	PageSize int                       `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ===================== Response DTOs =====================

// InventoryResponse represents a counting campaign in API responses
type InventoryResponse struct {
	ID                  uuid.UUID  `json:"id"`
	TenantID            uuid.UUID  `json:"tenant_id"`
	StoreID             uuid.UUID  `json:"store_id"`
	StoreName           string     `json:"store_name"`
	StartsAt            time.Time  `json:"starts_at"`
	ScheduledEndAt      *time.Time `json:"scheduled_end_at,omitempty"`
	MinCountsPerProduct int        `json:"min_counts_per_product"`
	TrackLots           bool       `json:"track_lots"`
	TrackExpiry         bool       `json:"track_expiry"`
	SequentialSectors   bool       `json:"sequential_sectors"`
	Active              bool       `json:"active"`
	FinalizedAt         *time.Time `json:"finalized_at,omitempty"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
	CreatedByID         uuid.UUID  `json:"created_by_id"`
	CreatedByName       string     `json:"created_by_name"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// SectorResponse represents a sector in API responses
type SectorResponse struct {
	ID          uuid.UUID  `json:"id"`
	InventoryID uuid.UUID  `json:"inventory_id"`
	Number      int        `json:"number"`
	RangeStart  int64      `json:"range_start"`
	RangeEnd    int64      `json:"range_end"`
	Label       string     `json:"label,omitempty"`
	Status      string     `json:"status"`
	HolderID    *uuid.UUID `json:"holder_id,omitempty"`
	HolderName  string     `json:"holder_name,omitempty"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}

// OpenSectorResponse carries the opened sector plus any soft warning raised
// during the open (out-of-sequence opening, already-held idempotent repeat)
type OpenSectorResponse struct {
	Sector  SectorResponse `json:"sector"`
	Warning string         `json:"warning,omitempty"`
}

// CountEntryResponse represents a count entry in API responses
type CountEntryResponse struct {
	ID            uuid.UUID       `json:"id"`
	InventoryID   uuid.UUID       `json:"inventory_id"`
	SectorID      uuid.UUID       `json:"sector_id"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductCode   string          `json:"product_code"`
	Quantity      decimal.Decimal `json:"quantity"`
	LotCode       string          `json:"lot_code,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	Reconciled    bool            `json:"reconciled"`
	CountedByID   uuid.UUID       `json:"counted_by_id"`
	CountedByName string          `json:"counted_by_name"`
	CreatedAt     time.Time       `json:"created_at"`
	Duplicate     bool            `json:"duplicate,omitempty"`
}

// ReconcileResponse reports how many entries a reconciliation touched
type ReconcileResponse struct {
	SectorID        uuid.UUID `json:"sector_id"`
	ProductID       uuid.UUID `json:"product_id"`
	EntriesAffected int64     `json:"entries_affected"`
}

// ClosingStatusResponse is the closing preview returned to supervisors
type ClosingStatusResponse struct {
	InventoryID        uuid.UUID      `json:"inventory_id"`
	OpenSectors        []SectorRefDTO `json:"open_sectors"`
	OpenSectorCount    int            `json:"open_sector_count"`
	PendingDivergences int64          `json:"pending_divergences"`
	ReadyToClose       bool           `json:"ready_to_close"`
}

// SectorRefDTO is a compact sector reference inside closing responses
type SectorRefDTO struct {
	ID     uuid.UUID `json:"id"`
	Number int       `json:"number"`
	Label  string    `json:"label,omitempty"`
	Status string    `json:"status"`
}

// ClosingResult reports a finalize or close, including which blocks were
// overridden when forced
type ClosingResult struct {
	Inventory InventoryResponse `json:"inventory"`
	Forced    bool              `json:"forced"`
	Overrides []string          `json:"overrides,omitempty"`
}

// AuditEntryResponse represents an audit record in API responses
type AuditEntryResponse struct {
	ID            uuid.UUID      `json:"id"`
	Action        string         `json:"action"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   uuid.UUID      `json:"aggregate_id"`
	ActorID       uuid.UUID      `json:"actor_id"`
	ActorName     string         `json:"actor_name"`
	IPAddress     string         `json:"ip_address,omitempty"`
	UserAgent     string         `json:"user_agent,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ===================== Mappers =====================

// ToInventoryResponse converts an Inventory aggregate to a response DTO
func ToInventoryResponse(inv *counting.Inventory) InventoryResponse {
	return InventoryResponse{
		ID:                  inv.ID,
		TenantID:            inv.TenantID,
		StoreID:             inv.StoreID,
		StoreName:           inv.StoreName,
		StartsAt:            inv.StartsAt,
		ScheduledEndAt:      inv.ScheduledEndAt,
		MinCountsPerProduct: inv.MinCountsPerProduct,
		TrackLots:           inv.TrackLots,
		TrackExpiry:         inv.TrackExpiry,
		SequentialSectors:   inv.SequentialSectors,
		Active:              inv.Active,
		FinalizedAt:         inv.FinalizedAt,
		ClosedAt:            inv.ClosedAt,
		CreatedByID:         inv.CreatedByID,
		CreatedByName:       inv.CreatedByName,
		CreatedAt:           inv.CreatedAt,
		UpdatedAt:           inv.UpdatedAt,
	}
}

// ToInventoryResponses converts a slice of inventories
func ToInventoryResponses(invs []counting.Inventory) []InventoryResponse {
	responses := make([]InventoryResponse, len(invs))
	for i := range invs {
		responses[i] = ToInventoryResponse(&invs[i])
	}
	return responses
}

// ToSectorResponse converts a Sector aggregate to a response DTO
func ToSectorResponse(s *counting.Sector) SectorResponse {
	return SectorResponse{
		ID:          s.ID,
		InventoryID: s.InventoryID,
		Number:      s.Number,
		RangeStart:  s.RangeStart,
		RangeEnd:    s.RangeEnd,
		Label:       s.Label,
		Status:      s.Status.String(),
		HolderID:    s.HolderID,
		HolderName:  s.HolderName,
		OpenedAt:    s.OpenedAt,
		FinalizedAt: s.FinalizedAt,
	}
}

// ToSectorResponses converts a slice of sectors
func ToSectorResponses(sectors []counting.Sector) []SectorResponse {
	responses := make([]SectorResponse, len(sectors))
	for i := range sectors {
		responses[i] = ToSectorResponse(&sectors[i])
	}
	return responses
}

// ToCountEntryResponse converts a CountEntry to a response DTO
func ToCountEntryResponse(e *counting.CountEntry) CountEntryResponse {
	return CountEntryResponse{
		ID:            e.ID,
		InventoryID:   e.InventoryID,
		SectorID:      e.SectorID,
		ProductID:     e.ProductID,
		ProductCode:   e.ProductCode,
		Quantity:      e.Quantity,
		LotCode:       e.LotCode,
		ExpiresAt:     e.ExpiresAt,
		Reconciled:    e.Reconciled,
		CountedByID:   e.CountedByID,
		CountedByName: e.CountedByName,
		CreatedAt:     e.CreatedAt,
	}
}

// ToCountEntryResponses converts a slice of count entries
func ToCountEntryResponses(entries []counting.CountEntry) []CountEntryResponse {
	responses := make([]CountEntryResponse, len(entries))
	for i := range entries {
		responses[i] = ToCountEntryResponse(&entries[i])
	}
	return responses
}

// ToClosingStatusResponse converts a ClosingStatus projection
func ToClosingStatusResponse(inventoryID uuid.UUID, status counting.ClosingStatus) ClosingStatusResponse {
	refs := make([]SectorRefDTO, len(status.OpenSectors))
	for i, ref := range status.OpenSectors {
		refs[i] = SectorRefDTO{
			ID:     ref.ID,
			Number: ref.Number,
			Label:  ref.Label,
			Status: ref.Status.String(),
		}
	}
	return ClosingStatusResponse{
		InventoryID:        inventoryID,
		OpenSectors:        refs,
		OpenSectorCount:    status.OpenSectorCount,
		PendingDivergences: status.PendingDivergences,
		ReadyToClose:       status.ReadyToClose,
	}
}

// ToAuditEntryResponses converts a slice of audit entries
func ToAuditEntryResponses(entries []counting.AuditEntry) []AuditEntryResponse {
	responses := make([]AuditEntryResponse, len(entries))
	for i := range entries {
		e := &entries[i]
		responses[i] = AuditEntryResponse{
			ID:            e.ID,
			Action:        e.Action,
			AggregateType: e.AggregateType,
			AggregateID:   e.AggregateID,
			ActorID:       e.ActorID,
			ActorName:     e.ActorName,
			IPAddress:     e.IPAddress,
			UserAgent:     e.UserAgent,
			OccurredAt:    e.OccurredAt,
			Metadata:      e.Metadata,
		}
	}
	return responses
}
