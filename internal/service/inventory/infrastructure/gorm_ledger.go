package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/pkg/database"
	"storefront/internal/service/inventory/domain"
)

// GormLedger 是 domain.Ledger 的关系型数据库实现。
type GormLedger struct {
	conn database.Conn
}

func NewGormLedger(conn database.Conn) *GormLedger {
	return &GormLedger{conn: conn}
}

func (l *GormLedger) GetVariantStock(ctx context.Context, key domain.VariantKey) (int, error) {
	db, err := l.conn.DB(ctx)
	if err != nil {
		return 0, err
	}
	row, err := findVariant(db, key)
	if err != nil {
		return 0, err
	}
	return row.Stock, nil
}

// AdjustStock 用一条带条件的 UPDATE 完成比较和写入，读回在同一事务内进行。
func (l *GormLedger) AdjustStock(ctx context.Context, key domain.VariantKey, delta int) (int, error) {
	db, err := l.conn.DB(ctx)
	if err != nil {
		return 0, err
	}

	var newStock int
	err = db.Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&VariantStockModel{}).
			Where("product_id = ? AND size = ? AND color = ?", key.ProductID, key.Size, key.Color)
		if delta < 0 {
			q = q.Where("stock >= ?", -delta)
		}
		res := q.UpdateColumn("stock", gorm.Expr("stock + ?", delta))
		if res.Error != nil {
			return errors.Wrap(res.Error, "update variant stock")
		}

		row, err := findVariant(tx, key)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			// 规格存在但条件不满足，说明库存不足
			newStock = row.Stock
			return domain.ErrInsufficientStock
		}
		newStock = row.Stock
		return nil
	})
	return newStock, err
}

func (l *GormLedger) InitializeVariants(ctx context.Context, productID, productName string, variants []domain.Variant) error {
	db, err := l.conn.DB(ctx)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		inv := InventoryModel{ProductID: productID, ProductName: productName}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"product_name", "updated_at"}),
		}).Create(&inv).Error
		if err != nil {
			return errors.Wrap(err, "upsert inventory")
		}

		if err := tx.Where("product_id = ?", productID).Delete(&VariantStockModel{}).Error; err != nil {
			return errors.Wrap(err, "delete variants")
		}
		if len(variants) == 0 {
			return nil
		}
		rows := FromDomainVariants(productID, variants)
		if err := tx.Create(&rows).Error; err != nil {
			return errors.Wrap(err, "insert variants")
		}
		return nil
	})
}

func (l *GormLedger) FindInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	db, err := l.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	var inv InventoryModel
	if err := db.Where("product_id = ?", productID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, errors.Wrap(err, "find inventory")
	}

	var variants []VariantStockModel
	if err := db.Where("product_id = ?", productID).Order("position ASC").Find(&variants).Error; err != nil {
		return nil, errors.Wrap(err, "find variants")
	}
	return ToDomainInventory(&inv, variants), nil
}

func (l *GormLedger) ListInventories(ctx context.Context) ([]*domain.Inventory, error) {
	db, err := l.conn.DB(ctx)
	if err != nil {
		return nil, err
	}

	var invs []InventoryModel
	if err := db.Order("product_id ASC").Find(&invs).Error; err != nil {
		return nil, errors.Wrap(err, "list inventories")
	}
	var variants []VariantStockModel
	if err := db.Order("product_id ASC, position ASC").Find(&variants).Error; err != nil {
		return nil, errors.Wrap(err, "list variants")
	}

	byProduct := make(map[string][]VariantStockModel, len(invs))
	for _, v := range variants {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v)
	}
	out := make([]*domain.Inventory, 0, len(invs))
	for i := range invs {
		out = append(out, ToDomainInventory(&invs[i], byProduct[invs[i].ProductID]))
	}
	return out, nil
}

// findVariant 区分商品不存在和规格不存在。
func findVariant(db *gorm.DB, key domain.VariantKey) (*VariantStockModel, error) {
	var row VariantStockModel
	err := db.Where("product_id = ? AND size = ? AND color = ?", key.ProductID, key.Size, key.Color).First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "find variant")
	}

	var count int64
	if err := db.Model(&InventoryModel{}).Where("product_id = ?", key.ProductID).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "find inventory")
	}
	if count == 0 {
		return nil, domain.ErrProductNotFound
	}
	return nil, domain.ErrVariantNotFound
}
