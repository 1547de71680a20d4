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

// GormProductBalanceRepository implements counting.ProductBalanceRepository using GORM
type GormProductBalanceRepository struct {
	db *gorm.DB
}

// NewGormProductBalanceRepository creates a new GormProductBalanceRepository
func NewGormProductBalanceRepository(db *gorm.DB) *GormProductBalanceRepository {
	return &GormProductBalanceRepository{db: db}
}

// FindByInventory lists all expected balances of a campaign
func (r *GormProductBalanceRepository) FindByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]counting.ProductBalance, error) {
	var balanceModels []models.ProductBalanceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND inventory_id = ?", tenantID, inventoryID).
		Order("product_code ASC").
		Find(&balanceModels).Error; err != nil {
		return nil, err
	}
	balances := make([]counting.ProductBalance, len(balanceModels))
	for i, model := range balanceModels {
		balances[i] = *model.ToDomain()
	}
	return balances, nil
}

// FindByProduct finds the expected balance of one product in a campaign
func (r *GormProductBalanceRepository) FindByProduct(ctx context.Context, tenantID, inventoryID, productID uuid.UUID) (*counting.ProductBalance, error) {
	var model models.ProductBalanceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND inventory_id = ? AND product_id = ?", tenantID, inventoryID, productID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SaveBatch inserts the snapshot taken when a campaign is created
func (r *GormProductBalanceRepository) SaveBatch(ctx context.Context, balances []*counting.ProductBalance) error {
	if len(balances) == 0 {
		return nil
	}
	balanceModels := make([]models.ProductBalanceModel, len(balances))
	for i, b := range balances {
		balanceModels[i] = *models.ProductBalanceModelFromDomain(b)
	}
	return r.db.WithContext(ctx).CreateInBatches(balanceModels, 200).Error
}

// DeleteByInventory removes the snapshot of a campaign
func (r *GormProductBalanceRepository) DeleteByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND inventory_id = ?", tenantID, inventoryID).
		Delete(&models.ProductBalanceModel{}).Error
}

// Ensure GormProductBalanceRepository implements counting.ProductBalanceRepository
var _ counting.ProductBalanceRepository = (*GormProductBalanceRepository)(nil)
