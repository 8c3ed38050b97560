package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
	"github.com/dawilly/clickpesa/internal/domain/transaction"
	"github.com/dawilly/clickpesa/internal/domain/webhook"
)

// --- Transaction Repository Mock ---

// MockTransactionRepository is an in-memory transaction.Repository.
// Behavior can be overridden per test via the XxxFunc fields.
type MockTransactionRepository struct {
	mu    sync.Mutex
	byRef map[string]*transaction.Transaction

	CreateFunc              func(ctx context.Context, t *transaction.Transaction) error
	GetByOrderReferenceFunc func(ctx context.Context, orderReference string) (*transaction.Transaction, error)
	UpdateFunc              func(ctx context.Context, t *transaction.Transaction) error
	ListFunc                func(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{byRef: make(map[string]*transaction.Transaction)}
}

func (m *MockTransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byRef[t.OrderReference]; ok {
		return domainErrors.ErrDuplicateOrderReference
	}
	cp := *t
	m.byRef[t.OrderReference] = &cp
	return nil
}

func (m *MockTransactionRepository) GetByOrderReference(ctx context.Context, orderReference string) (*transaction.Transaction, error) {
	if m.GetByOrderReferenceFunc != nil {
		return m.GetByOrderReferenceFunc(ctx, orderReference)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byRef[orderReference]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byRef[t.OrderReference]; !ok {
		return domainErrors.ErrTransactionNotFound
	}
	cp := *t
	m.byRef[t.OrderReference] = &cp
	return nil
}

func (m *MockTransactionRepository) List(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, f)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*transaction.Transaction
	for _, t := range m.byRef {
		if f.Type != nil && t.Type != *f.Type {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// --- Webhook Repository Mock ---

// MockWebhookRepository is an in-memory webhook.Repository.
type MockWebhookRepository struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*webhook.Delivery

	CreateFunc             func(ctx context.Context, d *webhook.Delivery) error
	UpdateFunc             func(ctx context.Context, d *webhook.Delivery) error
	GetByIDFunc            func(ctx context.Context, id uuid.UUID) (*webhook.Delivery, error)
	FindProcessedSinceFunc func(ctx context.Context, orderReference string, excludeID uuid.UUID, cutoff time.Time) (*webhook.Delivery, error)
}

func NewMockWebhookRepository() *MockWebhookRepository {
	return &MockWebhookRepository{byID: make(map[uuid.UUID]*webhook.Delivery)}
}

func (m *MockWebhookRepository) Create(ctx context.Context, d *webhook.Delivery) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.byID[d.ID] = &cp
	return nil
}

func (m *MockWebhookRepository) Update(ctx context.Context, d *webhook.Delivery) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[d.ID]; !ok {
		return domainErrors.ErrWebhookNotFound
	}
	cp := *d
	m.byID[d.ID] = &cp
	return nil
}

func (m *MockWebhookRepository) GetByID(ctx context.Context, id uuid.UUID) (*webhook.Delivery, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, domainErrors.ErrWebhookNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockWebhookRepository) FindProcessedSince(ctx context.Context, orderReference string, excludeID uuid.UUID, cutoff time.Time) (*webhook.Delivery, error) {
	if m.FindProcessedSinceFunc != nil {
		return m.FindProcessedSinceFunc(ctx, orderReference, excludeID, cutoff)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.byID {
		if d.OrderReference != orderReference || d.ID == excludeID {
			continue
		}
		if d.ProcessedAt == nil || d.CreatedAt.Before(cutoff) {
			continue
		}
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (m *MockWebhookRepository) ListByOrderReference(ctx context.Context, orderReference string) ([]*webhook.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*webhook.Delivery
	for _, d := range m.byID {
		if d.OrderReference == orderReference {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Deliveries returns every stored delivery, useful for asserting counts.
func (m *MockWebhookRepository) Deliveries() []*webhook.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*webhook.Delivery, 0, len(m.byID))
	for _, d := range m.byID {
		cp := *d
		out = append(out, &cp)
	}
	return out
}

// --- Notifier Mock ---

// MockNotifier records payment-received and failure notifications.
type MockNotifier struct {
	mu       sync.Mutex
	Received []*webhook.Delivery
	Failed   []string

	PaymentReceivedFunc func(ctx context.Context, d *webhook.Delivery) error
}

func (m *MockNotifier) PaymentReceived(ctx context.Context, d *webhook.Delivery) error {
	if m.PaymentReceivedFunc != nil {
		return m.PaymentReceivedFunc(ctx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Received = append(m.Received, d)
	return nil
}

func (m *MockNotifier) ProcessingFailed(_ context.Context, _ *webhook.Delivery, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failed = append(m.Failed, reason)
}

// Count returns how many payment-received notifications were recorded.
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Received)
}
