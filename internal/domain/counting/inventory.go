package counting

import (
	"time"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Inventory represents one physical counting campaign for a store.
// It is the aggregate root of the counting workflow.
type Inventory struct {
	shared.TenantAggregateRoot
	StoreID             uuid.UUID
	StoreName           string
	StartsAt            time.Time
	ScheduledEndAt      *time.Time
	MinCountsPerProduct int  // minimum count submissions required per product
	TrackLots           bool // count entries must carry a lot code
	TrackExpiry         bool // count entries must carry an expiry date
	SequentialSectors   bool // warn when sectors are opened out of declared order
	Active              bool
	FinalizedAt         *time.Time
	ClosedAt            *time.Time
	CreatedByID         uuid.UUID
	CreatedByName       string
}

// InventoryPolicy groups the per-campaign counting policies
type InventoryPolicy struct {
	MinCountsPerProduct int
	TrackLots           bool
	TrackExpiry         bool
	SequentialSectors   bool
}

// NewInventory creates a new active counting campaign
func NewInventory(tenantID, storeID uuid.UUID, storeName string, startsAt time.Time, scheduledEndAt *time.Time, policy InventoryPolicy, createdBy Actor) (*Inventory, error) {
	if storeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STORE", "Store ID cannot be empty")
	}
	if storeName == "" {
		return nil, shared.NewDomainError("INVALID_STORE_NAME", "Store name cannot be empty")
	}
	if createdBy.ID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CREATOR", "Creator ID cannot be empty")
	}
	if policy.MinCountsPerProduct < 0 {
		return nil, shared.NewDomainError("INVALID_POLICY", "Minimum counts per product cannot be negative")
	}
	if scheduledEndAt != nil && scheduledEndAt.Before(startsAt) {
		return nil, shared.NewDomainError("INVALID_SCHEDULE", "Scheduled end cannot precede start")
	}

	return &Inventory{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		StoreID:             storeID,
		StoreName:           storeName,
		StartsAt:            startsAt,
		ScheduledEndAt:      scheduledEndAt,
		MinCountsPerProduct: policy.MinCountsPerProduct,
		TrackLots:           policy.TrackLots,
		TrackExpiry:         policy.TrackExpiry,
		SequentialSectors:   policy.SequentialSectors,
		Active:              true,
		CreatedByID:         createdBy.ID,
		CreatedByName:       createdBy.Name,
	}, nil
}

// IsClosed reports whether the inventory has been hard-closed
func (inv *Inventory) IsClosed() bool {
	return inv.ClosedAt != nil
}

// Finalize marks the campaign as finished. Precondition checks against open
// sectors and pending divergences happen at the workflow level; this method
// only enforces the inventory's own state transitions.
func (inv *Inventory) Finalize(actor Actor, origin Origin, forced bool, justification string) error {
	if inv.IsClosed() {
		return ErrInventoryAlreadyClosed
	}
	if !inv.Active {
		return ErrInventoryNotActive
	}

	now := time.Now()
	inv.Active = false
	inv.FinalizedAt = &now
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInventoryFinalizedEvent(inv, actor, origin, forced, justification))
	return nil
}

// Reopen makes a finalized campaign active again. It never reopens sectors.
func (inv *Inventory) Reopen(actor Actor, origin Origin) error {
	if inv.IsClosed() {
		return ErrInventoryAlreadyClosed
	}
	if inv.Active {
		return ErrInventoryAlreadyActive
	}

	inv.Active = true
	inv.FinalizedAt = nil
	inv.Touch()
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInventoryReopenedEvent(inv, actor, origin))
	return nil
}

// Close permanently closes the campaign. Closing is terminal: a closed
// inventory can never be reopened.
func (inv *Inventory) Close(actor Actor, origin Origin, forced bool, justification string, overrides []string) error {
	if inv.IsClosed() {
		return ErrInventoryAlreadyClosed
	}

	now := time.Now()
	inv.Active = false
	if inv.FinalizedAt == nil {
		inv.FinalizedAt = &now
	}
	inv.ClosedAt = &now
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInventoryClosedEvent(inv, actor, origin, forced, justification, overrides))
	return nil
}
