package counting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCountEntry(t *testing.T) {
	counter := testActor()
	sectorID := uuid.New()
	productID := uuid.New()

	t.Run("creates entry with valid inputs", func(t *testing.T) {
		inv := createTestInventory(t)

		entry, err := NewCountEntry(inv, sectorID, productID, "PRD-001", decimal.NewFromInt(12), "", nil, counter)

		require.NoError(t, err)
		assert.Equal(t, inv.TenantID, entry.TenantID)
		assert.Equal(t, inv.ID, entry.InventoryID)
		assert.Equal(t, sectorID, entry.SectorID)
		assert.Equal(t, productID, entry.ProductID)
		assert.True(t, entry.Quantity.Equal(decimal.NewFromInt(12)))
		assert.False(t, entry.Reconciled)
		assert.Equal(t, counter.ID, entry.CountedByID)
	})

	t.Run("accepts fractional quantities", func(t *testing.T) {
		inv := createTestInventory(t)

		entry, err := NewCountEntry(inv, sectorID, productID, "PRD-001", decimal.RequireFromString("2.375"), "", nil, counter)

		require.NoError(t, err)
		assert.Equal(t, "2.375", entry.Quantity.String())
	})

	t.Run("accepts zero quantity", func(t *testing.T) {
		inv := createTestInventory(t)

		entry, err := NewCountEntry(inv, sectorID, productID, "PRD-001", decimal.Zero, "", nil, counter)

		require.NoError(t, err)
		assert.True(t, entry.Quantity.IsZero())
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		inv := createTestInventory(t)

		_, err := NewCountEntry(inv, sectorID, productID, "PRD-001", decimal.NewFromInt(-1), "", nil, counter)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNegativeQuantity)
	})

	t.Run("rejects empty product", func(t *testing.T) {
		inv := createTestInventory(t)

		_, err := NewCountEntry(inv, sectorID, uuid.Nil, "", decimal.NewFromInt(1), "", nil, counter)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "Product ID cannot be empty")
	})

	t.Run("requires lot code when inventory tracks lots", func(t *testing.T) {
		inv := createTestInventory(t)
		inv.TrackLots = true

		_, err := NewCountEntry(inv, sectorID, productID, "PRD-001", decimal.NewFromInt(1), "", nil, counter)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrLotCodeRequired)

		entry, err := NewCountEntry(inv, sectorID, productID, "PRD-001", decimal.NewFromInt(1), "L-2026-09", nil, counter)
		require.NoError(t, err)
		assert.Equal(t, "L-2026-09", entry.LotCode)
	})

	t.Run("requires expiry when inventory tracks expiry", func(t *testing.T) {
		inv := createTestInventory(t)
		inv.TrackExpiry = true

		_, err := NewCountEntry(inv, sectorID, productID, "PRD-001", decimal.NewFromInt(1), "", nil, counter)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExpiryRequired)

		expiry := time.Now().AddDate(0, 6, 0)
		entry, err := NewCountEntry(inv, sectorID, productID, "PRD-001", decimal.NewFromInt(1), "", &expiry, counter)
		require.NoError(t, err)
		require.NotNil(t, entry.ExpiresAt)
	})
}

func TestCountEntry_MarkReconciled(t *testing.T) {
	inv := createTestInventory(t)
	entry, err := NewCountEntry(inv, uuid.New(), uuid.New(), "PRD-001", decimal.NewFromInt(5), "", nil, testActor())
	require.NoError(t, err)

	entry.MarkReconciled()

	assert.True(t, entry.Reconciled)
}
