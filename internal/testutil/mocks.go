package testutil

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/dsamarin/gatepay/internal/domain/errors"
	"github.com/dsamarin/gatepay/internal/domain/order"
	"github.com/dsamarin/gatepay/internal/domain/transaction"
	"github.com/dsamarin/gatepay/internal/infrastructure/redis"
	"github.com/google/uuid"
)

// --- Transaction Store Mock ---

// MockTransactionStore is a mock implementation of transaction.Store.
type MockTransactionStore struct {
	mu           sync.Mutex
	nextID       int64
	transactions map[int64]*transaction.Transaction

	CreateFunc            func(ctx context.Context, t *transaction.Transaction) error
	GetByIDFunc           func(ctx context.Context, id int64) (*transaction.Transaction, error)
	FindRecentByIDFunc    func(ctx context.Context, id int64, window time.Duration) (*transaction.Transaction, error)
	FindRecentByEmailFunc func(ctx context.Context, email string, window time.Duration) (*transaction.Transaction, error)
	UpdateStatusFromFunc  func(ctx context.Context, id int64, from, to transaction.Status) (bool, error)
}

func NewMockTransactionStore() *MockTransactionStore {
	return &MockTransactionStore{
		nextID:       1,
		transactions: make(map[int64]*transaction.Transaction),
	}
}

// AddTransaction pre-populates the mock with a transaction.
func (m *MockTransactionStore) AddTransaction(t *transaction.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		t.ID = m.nextID
	}
	if t.ID >= m.nextID {
		m.nextID = t.ID + 1
	}
	m.transactions[t.ID] = t
}

// Get returns the stored transaction without going through the interface.
func (m *MockTransactionStore) Get(id int64) *transaction.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transactions[id]
}

func (m *MockTransactionStore) Create(ctx context.Context, t *transaction.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.nextID
	m.nextID++
	m.transactions[t.ID] = t
	return nil
}

func (m *MockTransactionStore) GetByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	return t, nil
}

func (m *MockTransactionStore) FindRecentByID(ctx context.Context, id int64, window time.Duration) (*transaction.Transaction, error) {
	if m.FindRecentByIDFunc != nil {
		return m.FindRecentByIDFunc(ctx, id, window)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok || time.Since(t.CreatedAt) > window {
		return nil, nil
	}
	return t, nil
}

func (m *MockTransactionStore) FindRecentByEmail(ctx context.Context, email string, window time.Duration) (*transaction.Transaction, error) {
	if m.FindRecentByEmailFunc != nil {
		return m.FindRecentByEmailFunc(ctx, email, window)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *transaction.Transaction
	for _, t := range m.transactions {
		if t.Email != email || time.Since(t.CreatedAt) > window {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	return latest, nil
}

func (m *MockTransactionStore) UpdateStatusFrom(ctx context.Context, id int64, from, to transaction.Status) (bool, error) {
	if m.UpdateStatusFromFunc != nil {
		return m.UpdateStatusFromFunc(ctx, id, from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	return true, nil
}

// --- Order Gateway Mock ---

// MockOrderGateway is a mock implementation of order.Gateway.
type MockOrderGateway struct {
	mu         sync.Mutex
	orders     map[int64]*order.Order
	paidStatus map[int64]string

	GetByIDFunc   func(ctx context.Context, id int64) (*order.Order, error)
	FindOwnedFunc func(ctx context.Context, id, userID int64, email string) (*order.Order, error)
	MarkPaidFunc  func(ctx context.Context, id int64, statusName string) error
}

func NewMockOrderGateway() *MockOrderGateway {
	return &MockOrderGateway{
		orders:     make(map[int64]*order.Order),
		paidStatus: make(map[int64]string),
	}
}

// AddOrder pre-populates the mock with an order.
func (m *MockOrderGateway) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

// PaidStatus reports the status name MarkPaid recorded for an order.
func (m *MockOrderGateway) PaidStatus(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paidStatus[id]
}

func (m *MockOrderGateway) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return o, nil
}

func (m *MockOrderGateway) FindOwned(ctx context.Context, id, userID int64, email string) (*order.Order, error) {
	if m.FindOwnedFunc != nil {
		return m.FindOwnedFunc(ctx, id, userID, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	if userID != 0 && o.UserID == userID {
		return o, nil
	}
	if email != "" && o.Email == email {
		return o, nil
	}
	return nil, domainErrors.ErrForbidden
}

func (m *MockOrderGateway) MarkPaid(ctx context.Context, id int64, statusName string) error {
	if m.MarkPaidFunc != nil {
		return m.MarkPaidFunc(ctx, id, statusName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domainErrors.ErrOrderNotFound
	}
	o.IsPaid = true
	m.paidStatus[id] = statusName
	return nil
}

// --- Transaction Manager Mock ---

// MockTransactionManager runs the function directly without a database.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Session Store Mock ---

// MockSessionStore is an in-memory payment session store.
type MockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]redis.Session

	SaveFunc   func(ctx context.Context, sess redis.Session) (string, error)
	GetFunc    func(ctx context.Context, token string) (*redis.Session, error)
	DeleteFunc func(ctx context.Context, token string) error
}

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]redis.Session)}
}

// AddSession pre-populates the mock under a fixed token.
func (m *MockSessionStore) AddSession(token string, sess redis.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = sess
}

func (m *MockSessionStore) Save(ctx context.Context, sess redis.Session) (string, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, sess)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	token := uuid.New().String()
	m.sessions[token] = sess
	return token, nil
}

func (m *MockSessionStore) Get(ctx context.Context, token string) (*redis.Session, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[token]
	if !ok {
		return nil, domainErrors.ErrSessionNotFound
	}
	return &sess, nil
}

func (m *MockSessionStore) Delete(ctx context.Context, token string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// --- Payment Lock Mock ---

// MockLock is an always-succeeding advisory lock unless overridden.
type MockLock struct {
	AcquireFunc func(ctx context.Context) (bool, error)
	ReleaseFunc func(ctx context.Context) error
}

func (m *MockLock) Acquire(ctx context.Context) (bool, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx)
	}
	return true, nil
}

func (m *MockLock) Release(ctx context.Context) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx)
	}
	return nil
}
