package counting

import (
	"time"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CountEntry is one scan/count submission inside a sector. Entries are
// append-only: after creation only the reconciled flag may change.
type CountEntry struct {
	shared.BaseEntity
	TenantID      uuid.UUID
	InventoryID   uuid.UUID
	SectorID      uuid.UUID
	ProductID     uuid.UUID
	ProductCode   string
	Quantity      decimal.Decimal
	LotCode       string
	ExpiresAt     *time.Time
	Reconciled    bool
	CountedByID   uuid.UUID
	CountedByName string
}

// NewCountEntry creates a count entry, validating the inventory's lot and
// expiry tracking policies.
func NewCountEntry(inv *Inventory, sectorID, productID uuid.UUID, productCode string, quantity decimal.Decimal, lotCode string, expiresAt *time.Time, countedBy Actor) (*CountEntry, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity.IsNegative() {
		return nil, ErrNegativeQuantity
	}
	if inv.TrackLots && lotCode == "" {
		return nil, ErrLotCodeRequired
	}
	if inv.TrackExpiry && expiresAt == nil {
		return nil, ErrExpiryRequired
	}

	return &CountEntry{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      inv.TenantID,
		InventoryID:   inv.ID,
		SectorID:      sectorID,
		ProductID:     productID,
		ProductCode:   productCode,
		Quantity:      quantity,
		LotCode:       lotCode,
		ExpiresAt:     expiresAt,
		CountedByID:   countedBy.ID,
		CountedByName: countedBy.Name,
	}, nil
}

// MarkReconciled flags the entry as reviewed by a supervisor
func (e *CountEntry) MarkReconciled() {
	e.Reconciled = true
	e.Touch()
}
