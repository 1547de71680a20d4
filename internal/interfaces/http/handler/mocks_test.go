package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/tally/backend/internal/interfaces/http/dto"
	"github.com/tally/backend/internal/interfaces/http/middleware"
)

var (
	testTenantID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testUserID   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

// newAuthedContext builds a gin test context carrying the identity the JWT
// middleware would have extracted.
func newAuthedContext(t *testing.T, method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "scanner/2.1")
	c.Request = req

	c.Set(middleware.JWTTenantIDKey, testTenantID.String())
	c.Set(middleware.JWTUserIDKey, testUserID.String())
	c.Set(middleware.JWTDisplayNameKey, "Maria Silva")

	return c, w
}

// decodeResponse unmarshals the standard response envelope
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func activeInventory() *counting.Inventory {
	inv, _ := counting.NewInventory(
		testTenantID,
		uuid.New(),
		"Store 12 - Centro",
		time.Now().Add(-time.Hour),
		nil,
		counting.InventoryPolicy{},
		counting.Actor{ID: testUserID, Name: "Maria Silva"},
	)
	return inv
}

func pendingSector(inventoryID uuid.UUID, number int) *counting.Sector {
	s, _ := counting.NewSector(testTenantID, inventoryID, number, 0, 1000, "")
	return s
}

func heldSector(inventoryID uuid.UUID, number int, holderID uuid.UUID, holderName string) *counting.Sector {
	s := pendingSector(inventoryID, number)
	now := time.Now()
	s.Status = counting.SectorStatusInProgress
	s.HolderID = &holderID
	s.HolderName = holderName
	s.OpenedAt = &now
	return s
}

// MockInventoryRepository is a mock implementation of InventoryRepository
type MockInventoryRepository struct {
	mock.Mock
}

func (m *MockInventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.Inventory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.Inventory), args.Error(1)
}

func (m *MockInventoryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*counting.Inventory, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.Inventory), args.Error(1)
}

func (m *MockInventoryRepository) FindActiveByStore(ctx context.Context, tenantID, storeID uuid.UUID) (*counting.Inventory, error) {
	args := m.Called(ctx, tenantID, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.Inventory), args.Error(1)
}

func (m *MockInventoryRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]counting.Inventory, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]counting.Inventory), args.Error(1)
}

func (m *MockInventoryRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockInventoryRepository) Save(ctx context.Context, inv *counting.Inventory) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInventoryRepository) SaveWithLock(ctx context.Context, inv *counting.Inventory) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInventoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockSectorRepository is a mock implementation of SectorRepository
type MockSectorRepository struct {
	mock.Mock
}

func (m *MockSectorRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.Sector, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.Sector), args.Error(1)
}

func (m *MockSectorRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*counting.Sector, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.Sector), args.Error(1)
}

func (m *MockSectorRepository) FindByNumber(ctx context.Context, tenantID, inventoryID uuid.UUID, number int) (*counting.Sector, error) {
	args := m.Called(ctx, tenantID, inventoryID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.Sector), args.Error(1)
}

func (m *MockSectorRepository) FindByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]counting.Sector, error) {
	args := m.Called(ctx, tenantID, inventoryID)
	return args.Get(0).([]counting.Sector), args.Error(1)
}

func (m *MockSectorRepository) FindOpenByOperator(ctx context.Context, tenantID, inventoryID, operatorID uuid.UUID) ([]counting.Sector, error) {
	args := m.Called(ctx, tenantID, inventoryID, operatorID)
	return args.Get(0).([]counting.Sector), args.Error(1)
}

func (m *MockSectorRepository) HasPendingBefore(ctx context.Context, tenantID, inventoryID uuid.UUID, number int) (bool, error) {
	args := m.Called(ctx, tenantID, inventoryID, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockSectorRepository) Claim(ctx context.Context, tenantID uuid.UUID, claim counting.SectorClaim) error {
	args := m.Called(ctx, tenantID, claim)
	return args.Error(0)
}

func (m *MockSectorRepository) Save(ctx context.Context, s *counting.Sector) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSectorRepository) SaveWithLock(ctx context.Context, s *counting.Sector) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSectorRepository) SaveBatch(ctx context.Context, sectors []*counting.Sector) error {
	args := m.Called(ctx, sectors)
	return args.Error(0)
}

func (m *MockSectorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockCountEntryRepository is a mock implementation of CountEntryRepository
type MockCountEntryRepository struct {
	mock.Mock
}

func (m *MockCountEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*counting.CountEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.CountEntry), args.Error(1)
}

func (m *MockCountEntryRepository) FindBySector(ctx context.Context, tenantID, sectorID uuid.UUID, filter shared.Filter) ([]counting.CountEntry, error) {
	args := m.Called(ctx, tenantID, sectorID, filter)
	return args.Get(0).([]counting.CountEntry), args.Error(1)
}

func (m *MockCountEntryRepository) FindByInventoryPaged(ctx context.Context, tenantID, inventoryID uuid.UUID, offset, limit int) ([]counting.CountEntry, error) {
	args := m.Called(ctx, tenantID, inventoryID, offset, limit)
	return args.Get(0).([]counting.CountEntry), args.Error(1)
}

func (m *MockCountEntryRepository) AggregateByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]counting.SectorProductTotal, error) {
	args := m.Called(ctx, tenantID, inventoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]counting.SectorProductTotal), args.Error(1)
}

func (m *MockCountEntryRepository) AggregateBySector(ctx context.Context, tenantID, sectorID uuid.UUID) ([]counting.SectorProductTotal, error) {
	args := m.Called(ctx, tenantID, sectorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]counting.SectorProductTotal), args.Error(1)
}

func (m *MockCountEntryRepository) Append(ctx context.Context, entry *counting.CountEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockCountEntryRepository) SetReconciled(ctx context.Context, tenantID, sectorID, productID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, sectorID, productID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCountEntryRepository) ExistsForInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, inventoryID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCountEntryRepository) CountBySector(ctx context.Context, tenantID, sectorID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, sectorID)
	return args.Get(0).(int64), args.Error(1)
}

// MockProductBalanceRepository is a mock implementation of ProductBalanceRepository
type MockProductBalanceRepository struct {
	mock.Mock
}

func (m *MockProductBalanceRepository) FindByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) ([]counting.ProductBalance, error) {
	args := m.Called(ctx, tenantID, inventoryID)
	return args.Get(0).([]counting.ProductBalance), args.Error(1)
}

func (m *MockProductBalanceRepository) FindByProduct(ctx context.Context, tenantID, inventoryID, productID uuid.UUID) (*counting.ProductBalance, error) {
	args := m.Called(ctx, tenantID, inventoryID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counting.ProductBalance), args.Error(1)
}

func (m *MockProductBalanceRepository) SaveBatch(ctx context.Context, balances []*counting.ProductBalance) error {
	args := m.Called(ctx, balances)
	return args.Error(0)
}

func (m *MockProductBalanceRepository) DeleteByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) error {
	args := m.Called(ctx, tenantID, inventoryID)
	return args.Error(0)
}

// MockAuditEntryRepository is a mock implementation of AuditEntryRepository
type MockAuditEntryRepository struct {
	mock.Mock
}

func (m *MockAuditEntryRepository) Append(ctx context.Context, entry *counting.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditEntryRepository) FindByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID, filter shared.Filter) ([]counting.AuditEntry, error) {
	args := m.Called(ctx, tenantID, inventoryID, filter)
	return args.Get(0).([]counting.AuditEntry), args.Error(1)
}

func (m *MockAuditEntryRepository) CountByInventory(ctx context.Context, tenantID, inventoryID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, inventoryID)
	return args.Get(0).(int64), args.Error(1)
}

// grantAll allows every capability check
type grantAll struct{}

func (grantAll) HasCapability(context.Context, uuid.UUID, uuid.UUID, string) (bool, error) {
	return true, nil
}
