package counting

import (
	"time"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Audit action constants, one per recorded lifecycle transition
const (
	AuditActionSectorOpened       = "SECTOR_OPENED"
	AuditActionSectorFinalized    = "SECTOR_FINALIZED"
	AuditActionSectorReopened     = "SECTOR_REOPENED"
	AuditActionSectorReleased     = "SECTOR_RELEASED"
	AuditActionCountRecorded      = "COUNT_RECORDED"
	AuditActionProductReconciled  = "PRODUCT_RECONCILED"
	AuditActionInventoryFinalized = "INVENTORY_FINALIZED"
	AuditActionInventoryReopened  = "INVENTORY_REOPENED"
	AuditActionInventoryClosed    = "INVENTORY_CLOSED"
)

// AuditEntry is an append-only record of who did what, where, and when.
// Entries are never updated or deleted after insertion.
type AuditEntry struct {
	shared.BaseEntity
	TenantID      uuid.UUID      `json:"tenant_id"`
	Action        string         `json:"action"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   uuid.UUID      `json:"aggregate_id"`
	InventoryID   uuid.UUID      `json:"inventory_id"`
	ActorID       uuid.UUID      `json:"actor_id"`
	ActorName     string         `json:"actor_name"`
	IPAddress     string         `json:"ip_address,omitempty"`
	UserAgent     string         `json:"user_agent,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewAuditEntry builds an audit record for a lifecycle action
func NewAuditEntry(tenantID uuid.UUID, action, aggregateType string, aggregateID, inventoryID uuid.UUID, actor Actor, origin Origin, occurredAt time.Time, metadata map[string]any) *AuditEntry {
	return &AuditEntry{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		Action:        action,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		InventoryID:   inventoryID,
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		IPAddress:     origin.IPAddress,
		UserAgent:     origin.UserAgent,
		OccurredAt:    occurredAt,
		Metadata:      metadata,
	}
}
