// internal/service/order/domain/repository.go
package domain

import "context"

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ListFilter 是后台订单列表的查询条件，结果按创建时间倒序。
type ListFilter struct {
	Status State
	Limit  int
}

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Create 保存一个新订单；ID 已存在时返回 ErrOrderExists。
	Create(ctx context.Context, order *Order) error

	FindByID(ctx context.Context, id string) (*Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]*Order, error)

	// UpdateIfStatus 仅当存储中的状态仍为 expected 时写入 order 的全部可变字段，
	// 否则返回 ErrStatusConflict。这是所有状态流转的比较并交换原语。
	UpdateIfStatus(ctx context.Context, order *Order, expected State) error
}

// NormalizeLimit 把列表条数限制在 [1, MaxListLimit]。
func (f ListFilter) NormalizeLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	}
	return f.Limit
}
