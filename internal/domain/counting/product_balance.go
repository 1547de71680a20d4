package counting

import (
	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductBalance is the expected on-hand quantity for a product within an
// inventory, loaded before counting begins. Read-only while counting runs.
type ProductBalance struct {
	shared.BaseEntity
	TenantID         uuid.UUID
	InventoryID      uuid.UUID
	ProductID        uuid.UUID
	ProductCode      string
	ProductName      string
	Unit             string
	ExpectedQuantity decimal.Decimal
}

// NewProductBalance creates an expected balance row for a product
func NewProductBalance(tenantID, inventoryID, productID uuid.UUID, productCode, productName, unit string, expected decimal.Decimal) (*ProductBalance, error) {
	if inventoryID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVENTORY", "Inventory ID cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if expected.IsNegative() {
		return nil, shared.NewDomainError("INVALID_BALANCE", "Expected quantity cannot be negative")
	}

	return &ProductBalance{
		BaseEntity:       shared.NewBaseEntity(),
		TenantID:         tenantID,
		InventoryID:      inventoryID,
		ProductID:        productID,
		ProductCode:      productCode,
		ProductName:      productName,
		Unit:             unit,
		ExpectedQuantity: expected,
	}, nil
}
