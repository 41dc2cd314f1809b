package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// InventoryModel 对应 inventories 表，一个商品一行。
type InventoryModel struct {
	ID          uint   `gorm:"primaryKey"`
	ProductID   string `gorm:"type:varchar(191);uniqueIndex;not null"`
	ProductName string `gorm:"type:varchar(255);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (InventoryModel) TableName() string {
	return "inventories"
}

// VariantStockModel 对应 variant_stocks 表，(product_id, size, color) 唯一。
// Position 记录规格在商品中的顺序。
type VariantStockModel struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID string `gorm:"type:varchar(191);not null;uniqueIndex:idx_variant_key,priority:1"`
	Size      string `gorm:"type:varchar(64);not null;uniqueIndex:idx_variant_key,priority:2"`
	Color     string `gorm:"type:varchar(64);not null;uniqueIndex:idx_variant_key,priority:3"`
	Stock     int    `gorm:"not null;default:0;check:chk_variant_stock_non_negative,stock >= 0"`
	SKU       string `gorm:"column:sku;type:varchar(128)"`
	Position  int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (VariantStockModel) TableName() string {
	return "variant_stocks"
}

// AutoMigrate 创建或更新库存相关的表结构。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&InventoryModel{}, &VariantStockModel{})
}
