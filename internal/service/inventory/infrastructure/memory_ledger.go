package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/service/inventory/domain"
)

// MemoryLedger 是进程内的账本实现，用于本地开发和测试。
// 所有操作在同一把锁内完成，条件减库存天然原子。
type MemoryLedger struct {
	mu          sync.Mutex
	inventories map[string]*domain.Inventory
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{inventories: make(map[string]*domain.Inventory)}
}

func (l *MemoryLedger) GetVariantStock(_ context.Context, key domain.VariantKey) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, inv, err := l.locate(key)
	if err != nil {
		return 0, err
	}
	return inv.Variants[idx].Stock, nil
}

func (l *MemoryLedger) AdjustStock(_ context.Context, key domain.VariantKey, delta int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, inv, err := l.locate(key)
	if err != nil {
		return 0, err
	}
	v := &inv.Variants[idx]
	if delta < 0 && v.Stock < -delta {
		return v.Stock, domain.ErrInsufficientStock
	}
	v.Stock += delta
	inv.UpdatedAt = time.Now()
	return v.Stock, nil
}

func (l *MemoryLedger) InitializeVariants(_ context.Context, productID, productName string, variants []domain.Variant) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	inv, ok := l.inventories[productID]
	if !ok {
		inv = &domain.Inventory{ProductID: productID, CreatedAt: now}
		l.inventories[productID] = inv
	}
	inv.ProductName = productName
	inv.Variants = append([]domain.Variant(nil), variants...)
	inv.UpdatedAt = now
	return nil
}

func (l *MemoryLedger) FindInventory(_ context.Context, productID string) (*domain.Inventory, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	inv, ok := l.inventories[productID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return cloneInventory(inv), nil
}

func (l *MemoryLedger) ListInventories(_ context.Context) ([]*domain.Inventory, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.Inventory, 0, len(l.inventories))
	for _, inv := range l.inventories {
		out = append(out, cloneInventory(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (l *MemoryLedger) locate(key domain.VariantKey) (int, *domain.Inventory, error) {
	inv, ok := l.inventories[key.ProductID]
	if !ok {
		return 0, nil, domain.ErrProductNotFound
	}
	for i, v := range inv.Variants {
		if v.Size == key.Size && v.Color == key.Color {
			return i, inv, nil
		}
	}
	return 0, nil, domain.ErrVariantNotFound
}

func cloneInventory(inv *domain.Inventory) *domain.Inventory {
	c := *inv
	c.Variants = append([]domain.Variant(nil), inv.Variants...)
	return &c
}
