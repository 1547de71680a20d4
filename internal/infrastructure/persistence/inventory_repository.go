package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInventoryRepository implements counting.InventoryRepository using GORM
type GormInventoryRepository struct {
	db *gorm.DB
}

// NewGormInventoryRepository creates a new GormInventoryRepository
func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// FindByID finds a campaign by its ID
func (r *GormInventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.Inventory, error) {
	var model models.InventoryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a campaign by ID within a tenant
func (r *GormInventoryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*counting.Inventory, error) {
	var model models.InventoryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByStore finds the active campaign for a store, if any
func (r *GormInventoryRepository) FindActiveByStore(ctx context.Context, tenantID, storeID uuid.UUID) (*counting.Inventory, error) {
	var model models.InventoryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND store_id = ? AND active = ?", tenantID, storeID, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists campaigns matching the filter
func (r *GormInventoryRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]counting.Inventory, error) {
	var invModels []models.InventoryModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.InventoryModel{}).
			Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Find(&invModels).Error; err != nil {
		return nil, err
	}
	invs := make([]counting.Inventory, len(invModels))
	for i, model := range invModels {
		invs[i] = *model.ToDomain()
	}
	return invs, nil
}

// CountForTenant counts campaigns matching the filter
func (r *GormInventoryRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.InventoryModel{}).
		Where("tenant_id = ?", tenantID)

	if filter.Search != "" {
		searchPattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(store_name) LIKE ? OR LOWER(created_by_name) LIKE ?",
			searchPattern, searchPattern)
	}

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a campaign
func (r *GormInventoryRepository) Save(ctx context.Context, inv *counting.Inventory) error {
	model := models.InventoryModelFromDomain(inv)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormInventoryRepository) SaveWithLock(ctx context.Context, inv *counting.Inventory) error {
	model := models.InventoryModelFromDomain(inv)
	result := r.db.WithContext(ctx).
		Model(&models.InventoryModel{}).
		Where("id = ? AND version = ?", inv.ID, inv.Version-1).
		Updates(map[string]interface{}{
			"active":       model.Active,
			"finalized_at": model.FinalizedAt,
			"closed_at":    model.ClosedAt,
			"version":      model.Version,
			"updated_at":   model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Delete deletes a campaign
func (r *GormInventoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.InventoryModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// applyFilter applies common filter options to a query
func (r *GormInventoryRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(store_name) LIKE ? OR LOWER(created_by_name) LIKE ?",
			searchPattern, searchPattern)
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, InventorySortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", orderBy, orderDir))

	return query
}

// Ensure GormInventoryRepository implements counting.InventoryRepository
var _ counting.InventoryRepository = (*GormInventoryRepository)(nil)
