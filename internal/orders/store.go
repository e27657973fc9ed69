package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ai-photo-kiosk/internal/models"
)

// Store is the kiosk's local ledger of completed orders, keyed by order id.
// It only ever sees orders that already reached a terminal settled state;
// pending orders live on the remote side.
type Store interface {
	SaveOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, id string) (models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
}

// Memory is a thread-safe in-memory Store. It is the default ledger: the
// kiosk only needs completed orders to survive within one process lifetime.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]models.Order
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]models.Order)}
}

func (m *Memory) SaveOrder(_ context.Context, order models.Order) error {
	if order.ID == "" {
		return fmt.Errorf("order id is required")
	}

	m.mu.Lock()
	m.orders[order.ID] = order
	m.mu.Unlock()
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[id]
	if !ok {
		return models.Order{}, fmt.Errorf("order %s not found", id)
	}
	return order, nil
}

func (m *Memory) ListOrders(_ context.Context) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.Order, 0, len(m.orders))
	for _, order := range m.orders {
		result = append(result, order)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt > result[j].CreatedAt
	})
	return result, nil
}
