package adapter

import (
	"context"

	inventoryapp "storefront/internal/service/inventory/application"
	"storefront/internal/service/order/domain/port"
)

// InventoryAdapter 实现了 port.InventoryService 接口，在进程内调用库存应用服务。
type InventoryAdapter struct {
	svc *inventoryapp.InventoryService
}

func NewInventoryAdapter(svc *inventoryapp.InventoryService) *InventoryAdapter {
	return &InventoryAdapter{svc: svc}
}

func (a *InventoryAdapter) CheckAvailability(ctx context.Context, productID, size, color string, quantity int) (*port.Availability, error) {
	res, err := a.svc.CheckAvailability(ctx, &inventoryapp.CheckAvailabilityRequest{
		ProductID: productID,
		Size:      size,
		Color:     color,
		Quantity:  quantity,
	})
	if err != nil {
		return nil, err
	}
	return &port.Availability{Available: res.Available, Stock: res.Stock, Message: res.Message}, nil
}

func (a *InventoryAdapter) AdjustStock(ctx context.Context, productID, size, color string, delta int) (int, error) {
	res, err := a.svc.AdjustStock(ctx, &inventoryapp.AdjustStockRequest{
		ProductID: productID,
		Size:      size,
		Color:     color,
		Delta:     delta,
	})
	if err != nil {
		return 0, err
	}
	return res.Stock, nil
}
