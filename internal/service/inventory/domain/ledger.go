package domain

import "context"

// Ledger 是库存账本的持久化端口，由基础设施层实现。
type Ledger interface {
	// GetVariantStock 只读查询；商品或规格不存在时返回 ErrNotFound 族错误。
	GetVariantStock(ctx context.Context, key VariantKey) (int, error)

	// AdjustStock 是唯一的库存变更入口，必须实现为单次原子的条件更新。
	// delta < 0 时只有当前库存 >= |delta| 才会成功，否则返回 ErrInsufficientStock 且库存不变；
	// delta > 0 时只要求规格存在。返回调整后的库存。
	AdjustStock(ctx context.Context, key VariantKey, delta int) (int, error)

	// InitializeVariants 以全量替换的方式写入一个商品的规格集合。
	InitializeVariants(ctx context.Context, productID, productName string, variants []Variant) error

	FindInventory(ctx context.Context, productID string) (*Inventory, error)
	ListInventories(ctx context.Context) ([]*Inventory, error)
}
