package infrastructure

import (
	"context"
	"sort"
	"sync"

	"storefront/internal/service/order/domain"
)

// MemoryOrderRepository 是进程内的订单仓储，用于本地开发和测试。
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *MemoryOrderRepository) Create(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.OrderID]; ok {
		return domain.ErrOrderExists
	}
	for _, o := range r.orders {
		if o.SessionID == order.SessionID {
			return domain.ErrOrderExists
		}
	}
	r.orders[order.OrderID] = order.Clone()
	return nil
}

func (r *MemoryOrderRepository) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryOrderRepository) FindBySessionID(_ context.Context, sessionID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.orders {
		if o.SessionID == sessionID {
			return o.Clone(), nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *MemoryOrderRepository) List(_ context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID > out[j].OrderID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit := filter.NormalizeLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryOrderRepository) UpdateIfStatus(_ context.Context, order *domain.Order, expected domain.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.OrderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Status != expected {
		return domain.ErrStatusConflict
	}
	r.orders[order.OrderID] = order.Clone()
	return nil
}
