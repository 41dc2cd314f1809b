package port

import "context"

// Availability 是库存检查的结果，不预占库存。
type Availability struct {
	Available bool
	Stock     int
	Message   string
}

// InventoryService 是库存账本的出站端口，在进程内实现，不经过网络。
type InventoryService interface {
	// CheckAvailability 商品或规格不存在时返回 Available=false 而不是错误；
	// 返回的 error 只代表检查本身失败。
	CheckAvailability(ctx context.Context, productID, size, color string, quantity int) (*Availability, error)

	// AdjustStock 原子调整库存，delta 为负时要求库存充足。
	AdjustStock(ctx context.Context, productID, size, color string, delta int) (int, error)
}
