package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditEntryRepository implements counting.AuditEntryRepository using GORM
type GormAuditEntryRepository struct {
	db *gorm.DB
}

// NewGormAuditEntryRepository creates a new GormAuditEntryRepository
func NewGormAuditEntryRepository(db *gorm.DB) *GormAuditEntryRepository {
	return &GormAuditEntryRepository{db: db}
}

// Append inserts an audit record
func (r *GormAuditEntryRepository) Append(ctx context.Context, entry *counting.AuditEntry) error {
	model := models.AuditEntryModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByInventory lists audit records of a campaign, newest first
func (r *GormAuditEntryRepository) FindByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID, filter shared.Filter) ([]counting.AuditEntry, error) {
	var entryModels []models.AuditEntryModel
	query := r.db.WithContext(ctx).Model(&models.AuditEntryModel{}).
		Where("tenant_id = ? AND inventory_id = ?", tenantID, inventoryID)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, AuditEntrySortFields, "occurred_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", orderBy, orderDir))

	if err := query.Find(&entryModels).Error; err != nil {
		return nil, err
	}
	entries := make([]counting.AuditEntry, len(entryModels))
	for i, model := range entryModels {
		entries[i] = *model.ToDomain()
	}
	return entries, nil
}

// CountByInventory counts audit records of a campaign
func (r *GormAuditEntryRepository) CountByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AuditEntryModel{}).
		Where("tenant_id = ? AND inventory_id = ?", tenantID, inventoryID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormAuditEntryRepository implements counting.AuditEntryRepository
var _ counting.AuditEntryRepository = (*GormAuditEntryRepository)(nil)
