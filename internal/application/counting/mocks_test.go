package counting

import (
	"context"
	"sync"
	"time"

	"github.com/tally/backend/internal/domain/counting"
	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func testOperator() counting.Actor {
	return counting.Actor{ID: uuid.New(), Name: "Maria Silva"}
}

func testRequestOrigin() counting.Origin {
	return counting.Origin{IPAddress: "10.0.0.5", UserAgent: "scanner/2.1"}
}

func testTime() time.Time {
	return time.Now()
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

// stubCapabilities grants a fixed capability set
type stubCapabilities struct {
	granted map[string]bool
}

func allowAll() *stubCapabilities {
	return &stubCapabilities{}
}

func allowOnly(capabilities ...string) *stubCapabilities {
	granted := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		granted[c] = true
	}
	return &stubCapabilities{granted: granted}
}

func (s *stubCapabilities) HasCapability(_ context.Context, _, _ uuid.UUID, capability string) (bool, error) {
	if s.granted == nil {
		return true, nil
	}
	return s.granted[capability], nil
}

// captureBus records published events for assertions
type captureBus struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (b *captureBus) Publish(_ context.Context, events ...shared.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func (b *captureBus) Subscribe(shared.EventHandler, ...string) {}
func (b *captureBus) Unsubscribe(shared.EventHandler)         {}
func (b *captureBus) Start(context.Context) error             { return nil }
func (b *captureBus) Stop(context.Context) error              { return nil }

func (b *captureBus) published() []shared.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]shared.DomainEvent(nil), b.events...)
}

// stubIdempotencyStore remembers keys in memory
type stubIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newStubIdempotencyStore() *stubIdempotencyStore {
	return &stubIdempotencyStore{seen: make(map[string]bool)}
}

func (s *stubIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *stubIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[key], nil
}

func (s *stubIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
	return nil
}

func (s *stubIdempotencyStore) Close() error { return nil }
