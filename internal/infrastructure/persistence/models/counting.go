package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tally/backend/internal/domain/counting"
)

// InventoryModel is the persistence model for the Inventory aggregate root.
// One partial unique index (enforced in migrations) guarantees at most one
// active campaign per store.
type InventoryModel struct {
	TenantAggregateModel
	StoreID             uuid.UUID  `gorm:"type:uuid;not null;index:idx_counting_inventory_store"`
	StoreName           string     `gorm:"type:varchar(200);not null"`
	StartsAt            time.Time  `gorm:"not null"`
	ScheduledEndAt      *time.Time `gorm:""`
	MinCountsPerProduct int        `gorm:"not null;default:0"`
	TrackLots           bool       `gorm:"not null;default:false"`
	TrackExpiry         bool       `gorm:"not null;default:false"`
	SequentialSectors   bool       `gorm:"not null;default:false"`
	Active              bool       `gorm:"not null;default:true;index"`
	FinalizedAt         *time.Time `gorm:""`
	ClosedAt            *time.Time `gorm:""`
	CreatedByID         uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedByName       string     `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (InventoryModel) TableName() string {
	return "counting_inventories"
}

// ToDomain converts the persistence model to a domain Inventory entity.
func (m *InventoryModel) ToDomain() *counting.Inventory {
	inv := &counting.Inventory{
		StoreID:             m.StoreID,
		StoreName:           m.StoreName,
		StartsAt:            m.StartsAt,
		ScheduledEndAt:      m.ScheduledEndAt,
		MinCountsPerProduct: m.MinCountsPerProduct,
		TrackLots:           m.TrackLots,
		TrackExpiry:         m.TrackExpiry,
		SequentialSectors:   m.SequentialSectors,
		Active:              m.Active,
		FinalizedAt:         m.FinalizedAt,
		ClosedAt:            m.ClosedAt,
		CreatedByID:         m.CreatedByID,
		CreatedByName:       m.CreatedByName,
	}
	m.fillTenantAggregate(&inv.TenantAggregateRoot)
	return inv
}

// FromDomain populates the persistence model from a domain Inventory entity.
func (m *InventoryModel) FromDomain(inv *counting.Inventory) {
	m.setTenantAggregate(inv.TenantAggregateRoot)
	m.StoreID = inv.StoreID
	m.StoreName = inv.StoreName
	m.StartsAt = inv.StartsAt
	m.ScheduledEndAt = inv.ScheduledEndAt
	m.MinCountsPerProduct = inv.MinCountsPerProduct
	m.TrackLots = inv.TrackLots
	m.TrackExpiry = inv.TrackExpiry
	m.SequentialSectors = inv.SequentialSectors
	m.Active = inv.Active
	m.FinalizedAt = inv.FinalizedAt
	m.ClosedAt = inv.ClosedAt
	m.CreatedByID = inv.CreatedByID
	m.CreatedByName = inv.CreatedByName
}

// InventoryModelFromDomain creates a new persistence model from a domain Inventory entity.
func InventoryModelFromDomain(inv *counting.Inventory) *InventoryModel {
	m := &InventoryModel{}
	m.FromDomain(inv)
	return m
}

// SectorModel is the persistence model for the Sector aggregate root.
// The claim conditional update targets this table: a sector is only taken
// when its stored status still matches and no holder is set.
type SectorModel struct {
	TenantAggregateModel
	InventoryID uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_counting_sector_number,priority:1"`
	Number      int                   `gorm:"not null;uniqueIndex:idx_counting_sector_number,priority:2"`
	RangeStart  int64                 `gorm:"not null;default:0"`
	RangeEnd    int64                 `gorm:"not null;default:0"`
	Label       string                `gorm:"type:varchar(100)"`
	Status      counting.SectorStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	HolderID    *uuid.UUID            `gorm:"type:uuid;index"`
	HolderName  string                `gorm:"type:varchar(100)"`
	OpenedAt    *time.Time            `gorm:""`
	FinalizedAt *time.Time            `gorm:""`
}

// TableName returns the table name for GORM
func (SectorModel) TableName() string {
	return "counting_sectors"
}

// ToDomain converts the persistence model to a domain Sector entity.
func (m *SectorModel) ToDomain() *counting.Sector {
	s := &counting.Sector{
		InventoryID: m.InventoryID,
		Number:      m.Number,
		RangeStart:  m.RangeStart,
		RangeEnd:    m.RangeEnd,
		Label:       m.Label,
		Status:      m.Status,
		HolderID:    m.HolderID,
		HolderName:  m.HolderName,
		OpenedAt:    m.OpenedAt,
		FinalizedAt: m.FinalizedAt,
	}
	m.fillTenantAggregate(&s.TenantAggregateRoot)
	return s
}

// FromDomain populates the persistence model from a domain Sector entity.
func (m *SectorModel) FromDomain(s *counting.Sector) {
	m.setTenantAggregate(s.TenantAggregateRoot)
	m.InventoryID = s.InventoryID
	m.Number = s.Number
	m.RangeStart = s.RangeStart
	m.RangeEnd = s.RangeEnd
	m.Label = s.Label
	m.Status = s.Status
	m.HolderID = s.HolderID
	m.HolderName = s.HolderName
	m.OpenedAt = s.OpenedAt
	m.FinalizedAt = s.FinalizedAt
}

// SectorModelFromDomain creates a new persistence model from a domain Sector entity.
func SectorModelFromDomain(s *counting.Sector) *SectorModel {
	m := &SectorModel{}
	m.FromDomain(s)
	return m
}

// CountEntryModel is the persistence model for the append-only count log.
type CountEntryModel struct {
	BaseModel
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_counting_entry_inventory,priority:1"`
	InventoryID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_counting_entry_inventory,priority:2"`
	SectorID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_counting_entry_sector"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_counting_entry_product"`
	ProductCode   string          `gorm:"type:varchar(50);not null"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LotCode       string          `gorm:"type:varchar(50)"`
	ExpiresAt     *time.Time      `gorm:"type:date"`
	Reconciled    bool            `gorm:"not null;default:false"`
	CountedByID   uuid.UUID       `gorm:"type:uuid;not null"`
	CountedByName string          `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (CountEntryModel) TableName() string {
	return "counting_count_entries"
}

// ToDomain converts the persistence model to a domain CountEntry entity.
func (m *CountEntryModel) ToDomain() *counting.CountEntry {
	return &counting.CountEntry{
		BaseEntity:    m.BaseModel.ToDomain(),
		TenantID:      m.TenantID,
		InventoryID:   m.InventoryID,
		SectorID:      m.SectorID,
		ProductID:     m.ProductID,
		ProductCode:   m.ProductCode,
		Quantity:      m.Quantity,
		LotCode:       m.LotCode,
		ExpiresAt:     m.ExpiresAt,
		Reconciled:    m.Reconciled,
		CountedByID:   m.CountedByID,
		CountedByName: m.CountedByName,
	}
}

// FromDomain populates the persistence model from a domain CountEntry entity.
func (m *CountEntryModel) FromDomain(e *counting.CountEntry) {
	m.setEntity(e.BaseEntity)
	m.TenantID = e.TenantID
	m.InventoryID = e.InventoryID
	m.SectorID = e.SectorID
	m.ProductID = e.ProductID
	m.ProductCode = e.ProductCode
	m.Quantity = e.Quantity
	m.LotCode = e.LotCode
	m.ExpiresAt = e.ExpiresAt
	m.Reconciled = e.Reconciled
	m.CountedByID = e.CountedByID
	m.CountedByName = e.CountedByName
}

// CountEntryModelFromDomain creates a new persistence model from a domain CountEntry entity.
func CountEntryModelFromDomain(e *counting.CountEntry) *CountEntryModel {
	m := &CountEntryModel{}
	m.FromDomain(e)
	return m
}

// ProductBalanceModel is the persistence model for the expected-quantity snapshot.
type ProductBalanceModel struct {
	BaseModel
	TenantID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_counting_balance_product,priority:1"`
	InventoryID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_counting_balance_product,priority:2"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_counting_balance_product,priority:3"`
	ProductCode      string          `gorm:"type:varchar(50);not null"`
	ProductName      string          `gorm:"type:varchar(200);not null"`
	Unit             string          `gorm:"type:varchar(20)"`
	ExpectedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductBalanceModel) TableName() string {
	return "counting_product_balances"
}

// ToDomain converts the persistence model to a domain ProductBalance entity.
func (m *ProductBalanceModel) ToDomain() *counting.ProductBalance {
	return &counting.ProductBalance{
		BaseEntity:       m.BaseModel.ToDomain(),
		TenantID:         m.TenantID,
		InventoryID:      m.InventoryID,
		ProductID:        m.ProductID,
		ProductCode:      m.ProductCode,
		ProductName:      m.ProductName,
		Unit:             m.Unit,
		ExpectedQuantity: m.ExpectedQuantity,
	}
}

// FromDomain populates the persistence model from a domain ProductBalance entity.
func (m *ProductBalanceModel) FromDomain(b *counting.ProductBalance) {
	m.setEntity(b.BaseEntity)
	m.TenantID = b.TenantID
	m.InventoryID = b.InventoryID
	m.ProductID = b.ProductID
	m.ProductCode = b.ProductCode
	m.ProductName = b.ProductName
	m.Unit = b.Unit
	m.ExpectedQuantity = b.ExpectedQuantity
}

// ProductBalanceModelFromDomain creates a new persistence model from a domain ProductBalance entity.
func ProductBalanceModelFromDomain(b *counting.ProductBalance) *ProductBalanceModel {
	m := &ProductBalanceModel{}
	m.FromDomain(b)
	return m
}

// AuditEntryModel is the persistence model for the append-only audit trail.
// Metadata is stored as raw JSON so heterogeneous action payloads share one
// column.
type AuditEntryModel struct {
	BaseModel
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index:idx_counting_audit_inventory,priority:1"`
	Action        string    `gorm:"type:varchar(40);not null;index"`
	AggregateType string    `gorm:"type:varchar(20);not null"`
	AggregateID   uuid.UUID `gorm:"type:uuid;not null;index"`
	InventoryID   uuid.UUID `gorm:"type:uuid;not null;index:idx_counting_audit_inventory,priority:2"`
	ActorID       uuid.UUID `gorm:"type:uuid;not null"`
	ActorName     string    `gorm:"type:varchar(100);not null"`
	IPAddress     string    `gorm:"type:varchar(45)"`
	UserAgent     string    `gorm:"type:varchar(255)"`
	OccurredAt    time.Time `gorm:"not null;index"`
	Metadata      []byte    `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string {
	return "counting_audit_entries"
}

// ToDomain converts the persistence model to a domain AuditEntry entity.
func (m *AuditEntryModel) ToDomain() *counting.AuditEntry {
	entry := &counting.AuditEntry{
		BaseEntity:    m.BaseModel.ToDomain(),
		TenantID:      m.TenantID,
		Action:        m.Action,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		InventoryID:   m.InventoryID,
		ActorID:       m.ActorID,
		ActorName:     m.ActorName,
		IPAddress:     m.IPAddress,
		UserAgent:     m.UserAgent,
		OccurredAt:    m.OccurredAt,
	}
	if len(m.Metadata) > 0 {
		var metadata map[string]any
		if err := json.Unmarshal(m.Metadata, &metadata); err == nil {
			entry.Metadata = metadata
		}
	}
	return entry
}

// FromDomain populates the persistence model from a domain AuditEntry entity.
func (m *AuditEntryModel) FromDomain(e *counting.AuditEntry) {
	m.setEntity(e.BaseEntity)
	m.TenantID = e.TenantID
	m.Action = e.Action
	m.AggregateType = e.AggregateType
	m.AggregateID = e.AggregateID
	m.InventoryID = e.InventoryID
	m.ActorID = e.ActorID
	m.ActorName = e.ActorName
	m.IPAddress = e.IPAddress
	m.UserAgent = e.UserAgent
	m.OccurredAt = e.OccurredAt
	if e.Metadata != nil {
		if raw, err := json.Marshal(e.Metadata); err == nil {
			m.Metadata = raw
		}
	}
}

// AuditEntryModelFromDomain creates a new persistence model from a domain AuditEntry entity.
func AuditEntryModelFromDomain(e *counting.AuditEntry) *AuditEntryModel {
	m := &AuditEntryModel{}
	m.FromDomain(e)
	return m
}
