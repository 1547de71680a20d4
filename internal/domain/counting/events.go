package counting

import (
	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeSector    = "Sector"
	AggregateTypeInventory = "Inventory"
)

// Counting event type constants
const (
	EventTypeSectorOpened       = "SectorOpened"
	EventTypeSectorFinalized    = "SectorFinalized"
	EventTypeSectorReopened     = "SectorReopened"
	EventTypeSectorReleased     = "SectorReleased"
	EventTypeCountRecorded      = "CountRecorded"
	EventTypeProductReconciled  = "ProductReconciled"
	EventTypeInventoryFinalized = "InventoryFinalized"
	EventTypeInventoryReopened  = "InventoryReopened"
	EventTypeInventoryClosed    = "InventoryClosed"
)

// SectorEventData carries the fields shared by all sector lifecycle events
type SectorEventData struct {
	shared.BaseDomainEvent
	SectorID     uuid.UUID `json:"sector_id"`
	SectorNumber int       `json:"sector_number"`
	InventoryID  uuid.UUID `json:"inventory_id"`
	ActorID      uuid.UUID `json:"actor_id"`
	ActorName    string    `json:"actor_name"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

func newSectorEventData(eventType string, s *Sector, actor Actor, origin Origin) SectorEventData {
	return SectorEventData{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeSector, s.ID, s.TenantID),
		SectorID:        s.ID,
		SectorNumber:    s.Number,
		InventoryID:     s.InventoryID,
		ActorID:         actor.ID,
		ActorName:       actor.Name,
		IPAddress:       origin.IPAddress,
		UserAgent:       origin.UserAgent,
	}
}

// SectorOpenedEvent is raised when an operator claims a sector for counting
type SectorOpenedEvent struct {
	SectorEventData
}

// NewSectorOpenedEvent creates a new SectorOpenedEvent
func NewSectorOpenedEvent(s *Sector, actor Actor, origin Origin) *SectorOpenedEvent {
	return &SectorOpenedEvent{SectorEventData: newSectorEventData(EventTypeSectorOpened, s, actor, origin)}
}

// EventType returns the event type name
func (e *SectorOpenedEvent) EventType() string {
	return EventTypeSectorOpened
}

// SectorFinalizedEvent is raised when a sector is closed to further counting
type SectorFinalizedEvent struct {
	SectorEventData
}

// NewSectorFinalizedEvent creates a new SectorFinalizedEvent
func NewSectorFinalizedEvent(s *Sector, actor Actor, origin Origin) *SectorFinalizedEvent {
	return &SectorFinalizedEvent{SectorEventData: newSectorEventData(EventTypeSectorFinalized, s, actor, origin)}
}

// EventType returns the event type name
func (e *SectorFinalizedEvent) EventType() string {
	return EventTypeSectorFinalized
}

// SectorReopenedEvent is raised when a finalized sector is reopened
type SectorReopenedEvent struct {
	SectorEventData
}

// NewSectorReopenedEvent creates a new SectorReopenedEvent
func NewSectorReopenedEvent(s *Sector, actor Actor, origin Origin) *SectorReopenedEvent {
	return &SectorReopenedEvent{SectorEventData: newSectorEventData(EventTypeSectorReopened, s, actor, origin)}
}

// EventType returns the event type name
func (e *SectorReopenedEvent) EventType() string {
	return EventTypeSectorReopened
}

// SectorReleasedEvent is raised when a holder returns a sector without finalizing
type SectorReleasedEvent struct {
	SectorEventData
}

// NewSectorReleasedEvent creates a new SectorReleasedEvent
func NewSectorReleasedEvent(s *Sector, actor Actor, origin Origin) *SectorReleasedEvent {
	return &SectorReleasedEvent{SectorEventData: newSectorEventData(EventTypeSectorReleased, s, actor, origin)}
}

// EventType returns the event type name
func (e *SectorReleasedEvent) EventType() string {
	return EventTypeSectorReleased
}

// CountRecordedEvent is raised when a count entry is appended to a sector
type CountRecordedEvent struct {
	SectorEventData
	EntryID   uuid.UUID       `json:"entry_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	LotCode   string          `json:"lot_code,omitempty"`
}

// NewCountRecordedEvent creates a new CountRecordedEvent
func NewCountRecordedEvent(s *Sector, entry *CountEntry, actor Actor, origin Origin) *CountRecordedEvent {
	return &CountRecordedEvent{
		SectorEventData: newSectorEventData(EventTypeCountRecorded, s, actor, origin),
		EntryID:     entry.ID,
		ProductID:   entry.ProductID,
		Quantity:    entry.Quantity,
		LotCode:     entry.LotCode,
	}
}

// EventType returns the event type name
func (e *CountRecordedEvent) EventType() string {
	return EventTypeCountRecorded
}

// ProductReconciledEvent is raised when a supervisor accepts a divergence for
// a (product, sector) pair
type ProductReconciledEvent struct {
	SectorEventData
	ProductID       uuid.UUID `json:"product_id"`
	EntriesAffected int64     `json:"entries_affected"`
}

// NewProductReconciledEvent creates a new ProductReconciledEvent
func NewProductReconciledEvent(s *Sector, productID uuid.UUID, entriesAffected int64, actor Actor, origin Origin) *ProductReconciledEvent {
	return &ProductReconciledEvent{
		SectorEventData:     newSectorEventData(EventTypeProductReconciled, s, actor, origin),
		ProductID:       productID,
		EntriesAffected: entriesAffected,
	}
}

// EventType returns the event type name
func (e *ProductReconciledEvent) EventType() string {
	return EventTypeProductReconciled
}

// InventoryEventData carries the fields shared by all inventory lifecycle events
type InventoryEventData struct {
	shared.BaseDomainEvent
	InventoryID uuid.UUID `json:"inventory_id"`
	StoreID     uuid.UUID `json:"store_id"`
	StoreName   string    `json:"store_name"`
	ActorID     uuid.UUID `json:"actor_id"`
	ActorName   string    `json:"actor_name"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

func newInventoryEventData(eventType string, inv *Inventory, actor Actor, origin Origin) InventoryEventData {
	return InventoryEventData{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeInventory, inv.ID, inv.TenantID),
		InventoryID:     inv.ID,
		StoreID:         inv.StoreID,
		StoreName:       inv.StoreName,
		ActorID:         actor.ID,
		ActorName:       actor.Name,
		IPAddress:       origin.IPAddress,
		UserAgent:       origin.UserAgent,
	}
}

// InventoryFinalizedEvent is raised when a counting campaign is finalized
type InventoryFinalizedEvent struct {
	InventoryEventData
	Forced        bool   `json:"forced"`
	Justification string `json:"justification,omitempty"`
}

// NewInventoryFinalizedEvent creates a new InventoryFinalizedEvent
func NewInventoryFinalizedEvent(inv *Inventory, actor Actor, origin Origin, forced bool, justification string) *InventoryFinalizedEvent {
	return &InventoryFinalizedEvent{
		InventoryEventData: newInventoryEventData(EventTypeInventoryFinalized, inv, actor, origin),
		Forced:         forced,
		Justification:  justification,
	}
}

// EventType returns the event type name
func (e *InventoryFinalizedEvent) EventType() string {
	return EventTypeInventoryFinalized
}

// InventoryReopenedEvent is raised when a finalized campaign is reactivated
type InventoryReopenedEvent struct {
	InventoryEventData
}

// NewInventoryReopenedEvent creates a new InventoryReopenedEvent
func NewInventoryReopenedEvent(inv *Inventory, actor Actor, origin Origin) *InventoryReopenedEvent {
	return &InventoryReopenedEvent{InventoryEventData: newInventoryEventData(EventTypeInventoryReopened, inv, actor, origin)}
}

// EventType returns the event type name
func (e *InventoryReopenedEvent) EventType() string {
	return EventTypeInventoryReopened
}

// InventoryClosedEvent is raised on administrative hard-close
type InventoryClosedEvent struct {
	InventoryEventData
	Forced        bool     `json:"forced"`
	Justification string   `json:"justification,omitempty"`
	Overrides     []string `json:"overrides,omitempty"`
}

// NewInventoryClosedEvent creates a new InventoryClosedEvent
func NewInventoryClosedEvent(inv *Inventory, actor Actor, origin Origin, forced bool, justification string, overrides []string) *InventoryClosedEvent {
	return &InventoryClosedEvent{
		InventoryEventData: newInventoryEventData(EventTypeInventoryClosed, inv, actor, origin),
		Forced:         forced,
		Justification:  justification,
		Overrides:      overrides,
	}
}

// EventType returns the event type name
func (e *InventoryClosedEvent) EventType() string {
	return EventTypeInventoryClosed
}
