package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSectorRepository implements counting.SectorRepository using GORM.
// The exclusive-open guarantee lives in Claim: a single conditional UPDATE
// decides who takes the sector, so no in-process coordination is needed and
// the guarantee survives multiple server instances.
type GormSectorRepository struct {
	db *gorm.DB
}

// NewGormSectorRepository creates a new GormSectorRepository
func NewGormSectorRepository(db *gorm.DB) *GormSectorRepository {
	return &GormSectorRepository{db: db}
}

// FindByID finds a sector by its ID
func (r *GormSectorRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.Sector, error) {
	var model models.SectorModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a sector by ID within a tenant
func (r *GormSectorRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*counting.Sector, error) {
	var model models.SectorModel
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

// FindByNumber finds a sector by campaign and sector number
func (r *GormSectorRepository) FindByNumber(ctx context.Context, tenantID, inventoryID uuid.UUID, number int) (*counting.Sector, error) {
	var model models.SectorModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND inventory_id = ? AND number = ?", tenantID, inventoryID, number).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInventory lists all sectors of a campaign ordered by number
func (r *GormSectorRepository) FindByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]counting.Sector, error) {
	var sectorModels []models.SectorModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND inventory_id = ?", tenantID, inventoryID).
		Order("number ASC").
		Find(&sectorModels).Error; err != nil {
		return nil, err
	}
	sectors := make([]counting.Sector, len(sectorModels))
	for i, model := range sectorModels {
		sectors[i] = *model.ToDomain()
	}
	return sectors, nil
}

// FindOpenByOperator finds sectors currently held by an operator in a campaign
func (r *GormSectorRepository) FindOpenByOperator(ctx context.Context, tenantID, inventoryID, operatorID uuid.UUID) ([]counting.Sector, error) {
	var sectorModels []models.SectorModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND inventory_id = ? AND status = ? AND holder_id = ?",
			tenantID, inventoryID, counting.SectorStatusInProgress, operatorID).
		Order("number ASC").
		Find(&sectorModels).Error; err != nil {
		return nil, err
	}
	sectors := make([]counting.Sector, len(sectorModels))
	for i, model := range sectorModels {
		sectors[i] = *model.ToDomain()
	}
	return sectors, nil
}

// HasPendingBefore reports whether any sector numbered below the given one
// has not been finalized yet
func (r *GormSectorRepository) HasPendingBefore(ctx context.Context, tenantID, inventoryID uuid.UUID, number int) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.SectorModel{}).
		Where("tenant_id = ? AND inventory_id = ? AND number < ? AND status <> ?",
			tenantID, inventoryID, number, counting.SectorStatusFinalized).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Claim atomically transitions a sector to IN_PROGRESS for a holder.
// The WHERE clause re-checks status, absence of a holder and that the
// claimant holds no other open sector of the campaign, so among any
// number of concurrent claimants exactly one sees RowsAffected == 1.
// The partial unique index idx_counting_sector_single_holder backs the
// NOT EXISTS guard when claims for two different sectors interleave.
func (r *GormSectorRepository) Claim(ctx context.Context, tenantID uuid.UUID, claim counting.SectorClaim) error {
	result := r.db.WithContext(ctx).
		Model(&models.SectorModel{}).
		Where("tenant_id = ? AND id = ? AND status = ? AND holder_id IS NULL AND NOT EXISTS (SELECT 1 FROM counting_sectors held WHERE held.tenant_id = ? AND held.inventory_id = ? AND held.holder_id = ? AND held.status = ?)",
			tenantID, claim.SectorID, claim.ExpectedStatus,
			tenantID, claim.InventoryID, claim.HolderID, counting.SectorStatusInProgress).
		Updates(map[string]interface{}{
			"status":      counting.SectorStatusInProgress,
			"holder_id":   claim.HolderID,
			"holder_name": claim.HolderName,
			"opened_at":   claim.OpenedAt,
			"updated_at":  claim.OpenedAt,
			"version":     gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return counting.ErrOperatorHasOpenSector
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Save creates or updates a sector
func (r *GormSectorRepository) Save(ctx context.Context, s *counting.Sector) error {
	model := models.SectorModelFromDomain(s)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking (checks version). A save that
// would give the holder a second open sector in the campaign trips the
// single-holder index and is reported as ErrOperatorHasOpenSector.
func (r *GormSectorRepository) SaveWithLock(ctx context.Context, s *counting.Sector) error {
	model := models.SectorModelFromDomain(s)
	result := r.db.WithContext(ctx).
		Model(&models.SectorModel{}).
		Where("id = ? AND version = ?", s.ID, s.Version-1).
		Updates(map[string]interface{}{
			"status":       model.Status,
			"holder_id":    model.HolderID,
			"holder_name":  model.HolderName,
			"opened_at":    model.OpenedAt,
			"finalized_at": model.FinalizedAt,
			"version":      model.Version,
			"updated_at":   model.UpdatedAt,
		})

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return counting.ErrOperatorHasOpenSector
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// SaveBatch inserts the sectors of a newly created campaign
func (r *GormSectorRepository) SaveBatch(ctx context.Context, sectors []*counting.Sector) error {
	if len(sectors) == 0 {
		return nil
	}
	sectorModels := make([]models.SectorModel, len(sectors))
	for i, s := range sectors {
		sectorModels[i] = *models.SectorModelFromDomain(s)
	}
	return r.db.WithContext(ctx).CreateInBatches(sectorModels, 100).Error
}

// Delete deletes a sector
func (r *GormSectorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.SectorModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormSectorRepository implements counting.SectorRepository
var _ counting.SectorRepository = (*GormSectorRepository)(nil)
