package counting

import (
	"context"
	"time"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryRepository provides access to counting campaigns
type InventoryRepository interface {
	// FindByID finds a campaign by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Inventory, error)

	// FindByIDForTenant finds a campaign by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Inventory, error)

	// FindActiveByStore finds the active campaign for a store, if any
	FindActiveByStore(ctx context.Context, tenantID, storeID uuid.UUID) (*Inventory, error)

	// FindAllForTenant lists campaigns matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Inventory, error)

	// CountForTenant counts campaigns matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)

	// Save creates or updates a campaign
	Save(ctx context.Context, inv *Inventory) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, inv *Inventory) error

	// Delete deletes a campaign
	Delete(ctx context.Context, id uuid.UUID) error
}

// SectorClaim describes the conditional update used to open a sector.
// The claim only succeeds when the stored row still matches ExpectedStatus,
// has no holder, and the holder does not already hold another open sector
// of the campaign, which makes concurrent opens race-safe.
type SectorClaim struct {
	SectorID       uuid.UUID
	InventoryID    uuid.UUID
	ExpectedStatus SectorStatus
	HolderID       uuid.UUID
	HolderName     string
	OpenedAt       time.Time
}

// SectorRepository provides access to campaign sectors
type SectorRepository interface {
	// FindByID finds a sector by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Sector, error)

	// FindByIDForTenant finds a sector by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Sector, error)

	// FindByNumber finds a sector by campaign and sector number
	FindByNumber(ctx context.Context, tenantID, inventoryID uuid.UUID, number int) (*Sector, error)

	// FindByInventory lists all sectors of a campaign ordered by number
	FindByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]Sector, error)

	// FindOpenByOperator finds sectors currently held by an operator in a campaign
	FindOpenByOperator(ctx context.Context, tenantID, inventoryID, operatorID uuid.UUID) ([]Sector, error)

	// HasPendingBefore reports whether any sector numbered below the given one
	// has not been finalized yet
	HasPendingBefore(ctx context.Context, tenantID, inventoryID uuid.UUID, number int) (bool, error)

	// Claim atomically transitions a sector to IN_PROGRESS for a holder.
	// It returns shared.ErrConcurrencyConflict when the conditional update
	// matches no row, meaning another operator won the race, and
	// ErrOperatorHasOpenSector when the holder already has an open sector
	// in the campaign.
	Claim(ctx context.Context, tenantID uuid.UUID, claim SectorClaim) error

	// Save creates or updates a sector
	Save(ctx context.Context, s *Sector) error

	// SaveWithLock saves with optimistic locking (checks version)
	SaveWithLock(ctx context.Context, s *Sector) error

	// SaveBatch inserts the sectors of a newly created campaign
	SaveBatch(ctx context.Context, sectors []*Sector) error

	// Delete deletes a sector
	Delete(ctx context.Context, id uuid.UUID) error
}

// SectorProductTotal is an aggregated counted quantity for one product
// within one sector. Reconciled is the OR of the underlying entries.
type SectorProductTotal struct {
	SectorID    uuid.UUID
	ProductID   uuid.UUID
	ProductCode string
	Quantity    decimal.Decimal
	Reconciled  bool
	Entries     int64
}

// CountEntryRepository provides access to the append-only count log
type CountEntryRepository interface {
	// FindByID finds a count entry by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*CountEntry, error)

	// FindBySector lists entries of a sector matching the filter
	FindBySector(ctx context.Context, tenantID, sectorID uuid.UUID, filter shared.Filter) ([]CountEntry, error)

	// FindByInventoryPaged streams a page of raw entries for a campaign,
	// ordered by creation so repeated calls walk the full log
	FindByInventoryPaged(ctx context.Context, tenantID, inventoryID uuid.UUID, offset, limit int) ([]CountEntry, error)

	// AggregateByInventory sums counted quantities per (sector, product)
	// in storage, OR-ing the reconciled flags
	AggregateByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]SectorProductTotal, error)

	// AggregateBySector sums counted quantities per product for one sector
	AggregateBySector(ctx context.Context, tenantID, sectorID uuid.UUID) ([]SectorProductTotal, error)

	// Append inserts a new count entry. Entries are never updated or deleted.
	Append(ctx context.Context, entry *CountEntry) error

	// SetReconciled marks all entries of a (sector, product) pair as
	// reconciled and returns how many rows were affected
	SetReconciled(ctx context.Context, tenantID, sectorID, productID uuid.UUID) (int64, error)

	// ExistsForInventory reports whether the campaign has any entries at all
	ExistsForInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) (bool, error)

	// CountBySector counts entries of a sector
	CountBySector(ctx context.Context, tenantID, sectorID uuid.UUID) (int64, error)
}

// ProductBalanceRepository provides access to the expected-quantity snapshot
type ProductBalanceRepository interface {
	// FindByInventory lists all expected balances of a campaign
	FindByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]ProductBalance, error)

	// FindByProduct finds the expected balance of one product in a campaign
	FindByProduct(ctx context.Context, tenantID, inventoryID, productID uuid.UUID) (*ProductBalance, error)

	// SaveBatch inserts the snapshot taken when a campaign is created
	SaveBatch(ctx context.Context, balances []*ProductBalance) error

	// DeleteByInventory removes the snapshot of a campaign
	DeleteByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) error
}

// AuditEntryRepository persists the append-only audit trail
type AuditEntryRepository interface {
	// Append inserts an audit record
	Append(ctx context.Context, entry *AuditEntry) error

	// FindByInventory lists audit records of a campaign, newest first
	FindByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID, filter shared.Filter) ([]AuditEntry, error)

	// CountByInventory counts audit records of a campaign
	CountByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) (int64, error)
}
