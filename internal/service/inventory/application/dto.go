package application

import "storefront/internal/service/inventory/domain"

// Availability 是一次非约束性的库存检查结果，不预占库存。
type Availability struct {
	Available bool   `json:"available"`
	Stock     int    `json:"stock"`
	Message   string `json:"message"`
}

type CheckAvailabilityRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

type AdjustStockRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Delta     int    `json:"delta"`
}

type AdjustStockResponse struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Stock     int    `json:"stock"`
}

type InitializeInventoryRequest struct {
	ProductID   string           `json:"productId"`
	ProductName string           `json:"productName"`
	Variants    []domain.Variant `json:"variants"`
}

func (r *CheckAvailabilityRequest) Key() domain.VariantKey {
	return domain.VariantKey{ProductID: r.ProductID, Size: r.Size, Color: r.Color}
}

func (r *AdjustStockRequest) Key() domain.VariantKey {
	return domain.VariantKey{ProductID: r.ProductID, Size: r.Size, Color: r.Color}
}
