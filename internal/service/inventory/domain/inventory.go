// internal/service/inventory/domain/inventory.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"storefront/internal/pkg/apperr"
)

// VariantKey 唯一标识一个可计库存的规格（商品 × 尺码 × 颜色）。
type VariantKey struct {
	ProductID string
	Size      string
	Color     string
}

func (k VariantKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ProductID, k.Size, k.Color)
}

// Validate 要求三个字段都非空。
func (k VariantKey) Validate() error {
	if strings.TrimSpace(k.ProductID) == "" {
		return apperr.Invalid("productId", "must be a non-empty string")
	}
	if strings.TrimSpace(k.Size) == "" {
		return apperr.Invalid("size", "must be a non-empty string")
	}
	if strings.TrimSpace(k.Color) == "" {
		return apperr.Invalid("color", "must be a non-empty string")
	}
	return nil
}

// Variant 是某个规格的库存记录，Stock 永远不为负。
type Variant struct {
	Size  string `json:"size"`
	Color string `json:"color"`
	Stock int    `json:"stock"`
	SKU   string `json:"sku,omitempty"`
}

// Inventory 是一个商品的库存聚合，Variants 保持写入时的顺序。
type Inventory struct {
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName"`
	Variants    []Variant `json:"variants"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FindVariant 按尺码和颜色查找规格。
func (i *Inventory) FindVariant(size, color string) (Variant, bool) {
	for _, v := range i.Variants {
		if v.Size == size && v.Color == color {
			return v, true
		}
	}
	return Variant{}, false
}

// ValidateVariants 检查一次全量替换的规格集合。
func ValidateVariants(productID, productName string, variants []Variant) error {
	if strings.TrimSpace(productID) == "" {
		return apperr.Invalid("productId", "must be a non-empty string")
	}
	if strings.TrimSpace(productName) == "" {
		return apperr.Invalid("productName", "must be a non-empty string")
	}

	seen := make(map[[2]string]struct{}, len(variants))
	for i, v := range variants {
		field := fmt.Sprintf("variants[%d]", i)
		if strings.TrimSpace(v.Size) == "" || strings.TrimSpace(v.Color) == "" {
			return apperr.Invalid(field, "size and color are required")
		}
		if v.Stock < 0 {
			return apperr.Invalid(field, "stock must be >= 0")
		}
		k := [2]string{v.Size, v.Color}
		if _, dup := seen[k]; dup {
			return apperr.Invalid(field, fmt.Sprintf("duplicate variant %s/%s", v.Size, v.Color))
		}
		seen[k] = struct{}{}
	}
	return nil
}
