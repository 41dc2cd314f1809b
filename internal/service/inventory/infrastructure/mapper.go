package infrastructure

import "storefront/internal/service/inventory/domain"

// ToDomainInventory 将数据库模型组装为领域聚合，variants 需已按 position 排序。
func ToDomainInventory(m *InventoryModel, variants []VariantStockModel) *domain.Inventory {
	inv := &domain.Inventory{
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Variants:    make([]domain.Variant, 0, len(variants)),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for _, v := range variants {
		inv.Variants = append(inv.Variants, domain.Variant{
			Size:  v.Size,
			Color: v.Color,
			Stock: v.Stock,
			SKU:   v.SKU,
		})
	}
	return inv
}

// FromDomainVariants 生成待插入的规格行。
func FromDomainVariants(productID string, variants []domain.Variant) []VariantStockModel {
	rows := make([]VariantStockModel, 0, len(variants))
	for i, v := range variants {
		rows = append(rows, VariantStockModel{
			ProductID: productID,
			Size:      v.Size,
			Color:     v.Color,
			Stock:     v.Stock,
			SKU:       v.SKU,
			Position:  i,
		})
	}
	return rows
}
