package application

import (
	"context"
	"fmt"

	"storefront/internal/pkg/apperr"
	"storefront/internal/service/order/domain"
)

func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()
	return s.orderRepo.FindByID(ctx, orderID)
}

// ListOrders 按创建时间倒序返回订单，status 为空时不过滤。
func (s *OrderApplicationService) ListOrders(ctx context.Context, status string, limit int) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListOrders")
	defer span.End()

	filter := domain.ListFilter{Limit: limit}
	if status != "" {
		st := domain.State(status)
		if !st.Valid() {
			return nil, apperr.Invalid("status", fmt.Sprintf("unknown status %q", status))
		}
		filter.Status = st
	}
	filter.Limit = filter.NormalizeLimit()
	return s.orderRepo.List(ctx, filter)
}
