package application

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"storefront/internal/pkg/apperr"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain"
)

// TransitionOrderStatus 是后台修改订单状态的入口，取消走 CancelOrder。
func (s *OrderApplicationService) TransitionOrderStatus(ctx context.Context, orderID string, req *TransitionRequest) (*TransitionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.TransitionOrderStatus")
	defer span.End()

	if req == nil || !req.Status.Valid() {
		status := ""
		if req != nil {
			status = string(req.Status)
		}
		return nil, apperr.Invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.target_status", string(req.Status)))

	if req.Status == domain.StateCancelled {
		return s.CancelOrder(ctx, orderID)
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == req.Status {
		return &TransitionResponse{Order: order}, nil
	}
	// pending -> paid 只能由支付回调完成
	if order.Status == domain.StatePending && req.Status == domain.StatePaid {
		return nil, errors.Wrap(domain.ErrInvalidTransition, "pending orders are marked paid by the payment provider only")
	}

	expected := order.Status
	if err := order.TransitionTo(req.Status); err != nil {
		return nil, err
	}
	if err := s.orderRepo.UpdateIfStatus(ctx, order, expected); err != nil {
		return nil, err
	}

	transitionsTotal.WithLabelValues(string(req.Status)).Inc()
	logger.Ctx(ctx).Info().Str("order", orderID).
		Str("from", string(expected)).Str("to", string(req.Status)).
		Msg("order status changed")
	s.events.PublishOrderChanged(ctx, order)

	return &TransitionResponse{Order: order}, nil
}

// CancelOrder 取消订单并回补已扣减的库存。
// 先以比较并交换抢占取消，再回补库存，保证并发取消只回补一次。
// 回补失败不阻止取消，失败信息记录在订单上。
func (s *OrderApplicationService) CancelOrder(ctx context.Context, orderID string) (*TransitionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))
	log := logger.Ctx(ctx).With().Str("order", orderID).Logger()

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.StateCancelled {
		log.Info().Msg("order already cancelled")
		return &TransitionResponse{Order: order}, nil
	}

	// 1. 抢占取消
	expected := order.Status
	if err := order.Cancel(nil); err != nil {
		return nil, err
	}
	if err := s.orderRepo.UpdateIfStatus(ctx, order, expected); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			latest, ferr := s.orderRepo.FindByID(ctx, orderID)
			if ferr == nil && latest.Status == domain.StateCancelled {
				return &TransitionResponse{Order: latest}, nil
			}
		}
		return nil, err
	}
	transitionsTotal.WithLabelValues(string(domain.StateCancelled)).Inc()

	// 2. 回补已扣减的库存
	committed := order.CommittedItems()
	if len(committed) == 0 {
		log.Info().Str("from", string(expected)).Msg("order cancelled, no stock to restore")
		s.events.PublishOrderChanged(ctx, order)
		return &TransitionResponse{Order: order}, nil
	}

	var failures []string
	for _, idx := range committed {
		item := &order.Items[idx]
		if _, err := s.inventory.AdjustStock(ctx, item.ProductID, item.Size, item.Color, item.Quantity); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", item.Label(), err))
			log.Error().Err(err).Str("item", item.Label()).Msg("stock rollback failed")
			continue
		}
		item.StockCommitted = false
	}
	if len(failures) > 0 {
		order.StockRollbackErrors = failures
	}

	// 3. 记录回补结果
	if err := s.orderRepo.UpdateIfStatus(ctx, order, domain.StateCancelled); err != nil {
		log.Error().Err(err).Msg("could not record stock rollback result")
	}

	log.Info().Str("from", string(expected)).Int("restored", len(committed)-len(failures)).Msg("order cancelled")
	s.events.PublishOrderChanged(ctx, order)

	return &TransitionResponse{Order: order, RollbackErrors: failures}, nil
}
