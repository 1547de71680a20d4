package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCountEntryRepository implements counting.CountEntryRepository using GORM.
// Entries are append-only: the repository exposes no generic update or delete,
// only the targeted reconciled-flag update.
type GormCountEntryRepository struct {
	db *gorm.DB
}

// NewGormCountEntryRepository creates a new GormCountEntryRepository
func NewGormCountEntryRepository(db *gorm.DB) *GormCountEntryRepository {
	return &GormCountEntryRepository{db: db}
}

// FindByID finds a count entry by its ID
func (r *GormCountEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.CountEntry, error) {
	var model models.CountEntryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySector lists entries of a sector matching the filter
func (r *GormCountEntryRepository) FindBySector(ctx context.Context, tenantID, sectorID uuid.UUID, filter shared.Filter) ([]counting.CountEntry, error) {
	var entryModels []models.CountEntryModel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.CountEntryModel{}).
			Where("tenant_id = ? AND sector_id = ?", tenantID, sectorID),
		filter,
	)

	if err := query.Find(&entryModels).Error; err != nil {
		return nil, err
	}
	entries := make([]counting.CountEntry, len(entryModels))
	for i, model := range entryModels {
		entries[i] = *model.ToDomain()
	}
	return entries, nil
}

// FindByInventoryPaged streams a page of raw entries for a campaign.
// Ordering by creation time then ID keeps pages stable while new entries
// are appended behind the walker.
func (r *GormCountEntryRepository) FindByInventoryPaged(ctx context.Context, tenantID, inventoryID uuid.UUID, offset, limit int) ([]counting.CountEntry, error) {
	var entryModels []models.CountEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND inventory_id = ?", tenantID, inventoryID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&entryModels).Error; err != nil {
		return nil, err
	}
	entries := make([]counting.CountEntry, len(entryModels))
	for i, model := range entryModels {
		entries[i] = *model.ToDomain()
	}
	return entries, nil
}

// sectorProductTotalRow scans one row of the aggregation queries
type sectorProductTotalRow struct {
	SectorID    uuid.UUID
	ProductID   uuid.UUID
	ProductCode string
	Quantity    string
	Reconciled  bool
	Entries     int64
}

const aggregateColumns = "sector_id, product_id, product_code, " +
	"SUM(quantity)::text AS quantity, BOOL_OR(reconciled) AS reconciled, COUNT(*) AS entries"

// AggregateByInventory sums counted quantities per (sector, product) in
// storage. SUM runs on the numeric column so decimal precision is exact,
// and BOOL_OR realizes the reconciled-if-any-entry-reconciled rule.
func (r *GormCountEntryRepository) AggregateByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]counting.SectorProductTotal, error) {
	var rows []sectorProductTotalRow
	if err := r.db.WithContext(ctx).
		Model(&models.CountEntryModel{}).
		Select(aggregateColumns).
		Where("tenant_id = ? AND inventory_id = ?", tenantID, inventoryID).
		Group("sector_id, product_id, product_code").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return totalsFromRows(rows)
}

// AggregateBySector sums counted quantities per product for one sector
func (r *GormCountEntryRepository) AggregateBySector(ctx context.Context, tenantID, sectorID uuid.UUID) ([]counting.SectorProductTotal, error) {
	var rows []sectorProductTotalRow
	if err := r.db.WithContext(ctx).
		Model(&models.CountEntryModel{}).
		Select(aggregateColumns).
		Where("tenant_id = ? AND sector_id = ?", tenantID, sectorID).
		Group("sector_id, product_id, product_code").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return totalsFromRows(rows)
}

func totalsFromRows(rows []sectorProductTotalRow) ([]counting.SectorProductTotal, error) {
	totals := make([]counting.SectorProductTotal, len(rows))
	for i, row := range rows {
		quantity, err := decimal.NewFromString(row.Quantity)
		if err != nil {
			return nil, fmt.Errorf("parse aggregated quantity for product %s: %w", row.ProductID, err)
		}
		totals[i] = counting.SectorProductTotal{
			SectorID:    row.SectorID,
			ProductID:   row.ProductID,
			ProductCode: row.ProductCode,
			Quantity:    quantity,
			Reconciled:  row.Reconciled,
			Entries:     row.Entries,
		}
	}
	return totals, nil
}

// Append inserts a new count entry. Entries are never updated or deleted.
func (r *GormCountEntryRepository) Append(ctx context.Context, entry *counting.CountEntry) error {
	model := models.CountEntryModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// SetReconciled marks all entries of a (sector, product) pair as reconciled
// and returns how many rows were affected
func (r *GormCountEntryRepository) SetReconciled(ctx context.Context, tenantID, sectorID, productID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CountEntryModel{}).
		Where("tenant_id = ? AND sector_id = ? AND product_id = ? AND reconciled = ?",
			tenantID, sectorID, productID, false).
		Update("reconciled", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExistsForInventory reports whether the campaign has any entries at all
func (r *GormCountEntryRepository) ExistsForInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CountEntryModel{}).
		Where("tenant_id = ? AND inventory_id = ?", tenantID, inventoryID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountBySector counts entries of a sector
func (r *GormCountEntryRepository) CountBySector(ctx context.Context, tenantID, sectorID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CountEntryModel{}).
		Where("tenant_id = ? AND sector_id = ?", tenantID, sectorID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies common filter options to a query
func (r *GormCountEntryRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(product_code) LIKE ? OR LOWER(lot_code) LIKE ?",
			searchPattern, searchPattern)
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, CountEntrySortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(fmt.Sprintf("%s %s", orderBy, orderDir))

	return query
}

// Ensure GormCountEntryRepository implements counting.CountEntryRepository
var _ counting.CountEntryRepository = (*GormCountEntryRepository)(nil)
