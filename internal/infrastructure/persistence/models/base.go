package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tally/backend/internal/domain/shared"
)

// BaseModel carries the identity and timestamp columns shared by every
// counting table.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain maps the identity columns onto a domain BaseEntity.
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (m *BaseModel) setEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel adds the optimistic locking version column.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

func (m *AggregateModel) setAggregate(a shared.BaseAggregateRoot) {
	m.setEntity(a.BaseEntity)
	m.Version = a.Version
}

// TenantAggregateModel adds the tenant column for tenant-scoped aggregates.
type TenantAggregateModel struct {
	AggregateModel
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
}

func (m *TenantAggregateModel) setTenantAggregate(t shared.TenantAggregateRoot) {
	m.setAggregate(t.BaseAggregateRoot)
	m.TenantID = t.TenantID
}

// fillTenantAggregate writes the persisted columns back into a domain
// aggregate during hydration.
func (m *TenantAggregateModel) fillTenantAggregate(t *shared.TenantAggregateRoot) {
	t.BaseAggregateRoot.BaseEntity = m.ToDomain()
	t.BaseAggregateRoot.Version = m.Version
	t.TenantID = m.TenantID
}
