// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSectorMetricsProvider implements SectorMetricsProvider using GORM.
// It queries the counting_sectors table directly for aggregated state counts.
type GormSectorMetricsProvider struct {
	db *gorm.DB
}

// NewGormSectorMetricsProvider creates a new GormSectorMetricsProvider.
func NewGormSectorMetricsProvider(db *gorm.DB) *GormSectorMetricsProvider {
	return &GormSectorMetricsProvider{db: db}
}

// GetOpenSectorCount returns the number of IN_PROGRESS sectors for a tenant.
func (p *GormSectorMetricsProvider) GetOpenSectorCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("counting_sectors").
		Where("tenant_id = ? AND status = ?", tenantID, "IN_PROGRESS").
		Count(&count).Error

	return count, err
}

// GetPendingSectorCount returns the number of PENDING sectors in active
// inventories for a tenant. Sectors of finalized or closed inventories are
// excluded so the gauge reflects remaining work only.
func (p *GormSectorMetricsProvider) GetPendingSectorCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("counting_sectors").
		Joins("JOIN counting_inventories ON counting_inventories.id = counting_sectors.inventory_id").
		Where("counting_sectors.tenant_id = ? AND counting_sectors.status = ?", tenantID, "PENDING").
		Where("counting_inventories.active = ?", true).
		Count(&count).Error

	return count, err
}

// GormTenantProvider implements TenantProvider using GORM.
// Active tenants are derived from inventories that are still open, so gauges
// are only collected where counting activity can happen.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider.
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns tenant IDs with at least one active inventory.
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("counting_inventories").
		Distinct("tenant_id").
		Where("active = ?", true).
		Find(&ids).Error

	return ids, err
}
