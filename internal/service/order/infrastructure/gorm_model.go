package infrastructure

import (
	"time"

	"gorm.io/gorm"
)

// OrderModel 对应 orders 表。行项目、收货地址和错误列表以 JSON 文本保存。
type OrderModel struct {
	ID                   uint      `gorm:"primaryKey"`
	OrderID              string    `gorm:"type:varchar(191);uniqueIndex;not null"`
	SessionID            string    `gorm:"type:varchar(191);uniqueIndex;not null"`
	Items                string    `gorm:"type:text;not null"`
	Total                int64     `gorm:"not null"`
	Status               string    `gorm:"type:varchar(32);index;not null"`
	CustomerEmail        string    `gorm:"type:varchar(255)"`
	ShippingAddress      string    `gorm:"type:text"`
	StockPending         bool      `gorm:"not null;default:false"`
	StockReductionErrors string    `gorm:"type:text"`
	StockRollbackErrors  string    `gorm:"type:text"`
	EmailError           string    `gorm:"type:text"`
	CreatedAt            time.Time `gorm:"index"`
	UpdatedAt            time.Time
}

func (OrderModel) TableName() string {
	return "orders"
}

// AutoMigrate 创建或更新订单表结构。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&OrderModel{})
}
