package application

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/apperr"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain"
)

// Checkout 校验库存、创建支付会话并保存待支付订单。
// 任何一行不可售都会终止整个结账；此处不发送任何通知。
func (s *OrderApplicationService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.Checkout")
	defer span.End()

	items, err := s.validateCheckout(req)
	if err != nil {
		checkoutTotal.WithLabelValues("invalid").Inc()
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("order.items", len(items)))

	// 1. 按规格汇总数量后检查库存（仅提示性，不预占）
	for _, item := range variantDemand(items) {
		avail, err := s.inventory.CheckAvailability(ctx, item.ProductID, item.Size, item.Color, item.Quantity)
		if errors.Is(err, apperr.ErrValidation) {
			checkoutTotal.WithLabelValues("invalid").Inc()
			return nil, err
		}
		if err != nil {
			checkoutTotal.WithLabelValues("check_failed").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "availability check failed")
			logger.Ctx(ctx).Error().Err(err).Str("item", item.Label()).Msg("availability check failed, aborting checkout")
			return nil, apperr.Upstream(err, fmt.Sprintf("could not verify stock for %s", item.Label()))
		}
		if !avail.Available {
			checkoutTotal.WithLabelValues("unavailable").Inc()
			span.AddEvent("item unavailable", traceItem(item))
			return nil, errors.Wrapf(domain.ErrItemUnavailable, "insufficient stock for %s: %s", item.Label(), avail.Message)
		}
	}

	// 2. 计算总价
	total := domain.CalculateTotal(items)
	span.SetAttributes(attribute.Int64("order.total", total))

	// 3. 创建支付会话
	session, err := s.payments.CreateCheckoutSession(ctx, items)
	if err != nil {
		checkoutTotal.WithLabelValues("payment_failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "create payment session failed")
		logger.Ctx(ctx).Error().Err(err).Msg("failed to create payment session")
		return nil, apperr.Upstream(err, "could not create payment session")
	}

	// 4. 以会话 ID 作为订单 ID 保存待支付订单
	order, err := domain.NewPendingOrder(session.ID, items)
	if err != nil {
		checkoutTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		return nil, err
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		// 会话本身在支付完成前没有副作用，这里不撤销会话，只记录并终止。
		checkoutTotal.WithLabelValues("persist_failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist pending order failed")
		logger.Ctx(ctx).Error().Err(err).Str("session", session.ID).Msg("payment session created but order could not be saved")
		return nil, apperr.Upstream(err, "could not save order")
	}

	checkoutTotal.WithLabelValues("created").Inc()
	s.events.PublishOrderChanged(ctx, order)
	logger.Ctx(ctx).Info().Str("order", order.OrderID).Int64("total", order.Total).Msg("pending order created")

	return &CheckoutResponse{SessionID: session.ID, URL: session.URL}, nil
}

func (s *OrderApplicationService) validateCheckout(req *CheckoutRequest) ([]domain.LineItem, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, apperr.Invalid("items", "cart is empty")
	}
	if len(req.Items) > s.opts.MaxItems {
		return nil, apperr.Invalid("items", fmt.Sprintf("at most %d items per checkout", s.opts.MaxItems))
	}

	items := make([]domain.LineItem, 0, len(req.Items))
	for i, raw := range req.Items {
		item := raw.toDomain()
		if err := item.Validate(i); err != nil {
			return nil, err
		}
		if s.policy != nil {
			if err := s.policy.Evaluate(i, item); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// variantDemand 把同一规格的多行合并为一行，数量相加，保持首次出现的顺序。不含未跟踪的行。
func variantDemand(items []domain.LineItem) []domain.LineItem {
	type key struct{ productID, size, color string }
	index := make(map[key]int)
	var demand []domain.LineItem
	for _, item := range items {
		if !item.Tracked() {
			continue
		}
		k := key{item.ProductID, item.Size, item.Color}
		if i, ok := index[k]; ok {
			demand[i].Quantity += item.Quantity
			continue
		}
		index[k] = len(demand)
		demand = append(demand, item)
	}
	return demand
}

func traceItem(item domain.LineItem) trace.EventOption {
	return trace.WithAttributes(
		attribute.String("item.product_id", item.ProductID),
		attribute.String("item.size", item.Size),
		attribute.String("item.color", item.Color),
		attribute.Int("item.quantity", item.Quantity),
	)
}
