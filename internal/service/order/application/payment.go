package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/apperr"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// HandlePaymentEvent 处理支付方的回调。签名无效返回 apperr.ErrAuthentication；
// 返回其它 error 时支付方会重试，因此只有值得重试的故障才返回 error。
func (s *OrderApplicationService) HandlePaymentEvent(ctx context.Context, payload []byte, signature string) (*PaymentEventResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.HandlePaymentEvent", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	event, err := s.payments.ParseEvent(payload, signature)
	if errors.Is(err, apperr.ErrValidation) {
		paymentEventsTotal.WithLabelValues(OutcomeMalformed).Inc()
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Msg("payment event could not be decoded, acknowledging without effect")
		return &PaymentEventResult{Received: true, Outcome: OutcomeMalformed}, nil
	}
	if err != nil {
		paymentEventsTotal.WithLabelValues("rejected").Inc()
		span.RecordError(err)
		logger.Ctx(ctx).Warn().Err(err).Msg("rejected payment event")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("payment.event_id", event.ID),
		attribute.String("payment.event_type", event.Type),
	)

	if event.Type != port.EventCheckoutSessionCompleted {
		paymentEventsTotal.WithLabelValues(OutcomeIgnored).Inc()
		logger.Ctx(ctx).Debug().Str("type", event.Type).Msg("ignoring payment event")
		return &PaymentEventResult{Received: true, Outcome: OutcomeIgnored}, nil
	}

	if event.SessionID == "" {
		paymentEventsTotal.WithLabelValues(OutcomeMalformed).Inc()
		logger.Ctx(ctx).Error().Str("event", event.ID).Msg("completed payment event carries no session id")
		return &PaymentEventResult{Received: true, Outcome: OutcomeMalformed}, nil
	}

	result, err := s.CompletePayment(ctx, event.SessionID)
	if err != nil {
		paymentEventsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment fulfilment failed")
		return nil, err
	}
	paymentEventsTotal.WithLabelValues(result.Outcome).Inc()
	return result, nil
}

// CompletePayment 把会话对应的订单推进为已支付并扣减库存。
// 对同一会话重复调用是幂等的：只有赢得 pending -> paid 比较并交换的那一次会扣库存。
func (s *OrderApplicationService) CompletePayment(ctx context.Context, sessionID string) (*PaymentEventResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.CompletePayment")
	defer span.End()
	span.SetAttributes(attribute.String("order.session_id", sessionID))
	log := logger.Ctx(ctx).With().Str("session", sessionID).Logger()

	order, err := s.orderRepo.FindBySessionID(ctx, sessionID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		log.Warn().Msg("payment completed for unknown session")
		return &PaymentEventResult{Received: true, Outcome: OutcomeUnknownSession}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load order for payment")
	}
	if order.Status != domain.StatePending {
		switch {
		case order.Status == domain.StateCancelled:
			log.Warn().Msg("payment completed for a cancelled order, manual refund required")
		case order.StockPending:
			log.Warn().Str("status", string(order.Status)).Msg("duplicate payment event for an order whose stock reduction is unconfirmed")
		default:
			log.Info().Str("status", string(order.Status)).Msg("duplicate payment event")
		}
		return &PaymentEventResult{Received: true, Outcome: OutcomeDuplicate}, nil
	}

	details, err := s.payments.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Upstream(err, "retrieve payment session")
	}

	// 1. pending -> paid，赢得比较并交换的请求才继续
	if err := order.MarkPaid(details.CustomerEmail, details.ShippingAddress); err != nil {
		return nil, err
	}
	if err := s.orderRepo.UpdateIfStatus(ctx, order, domain.StatePending); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			log.Info().Msg("order left pending concurrently, treating event as duplicate")
			return &PaymentEventResult{Received: true, Outcome: OutcomeDuplicate}, nil
		}
		return nil, errors.Wrap(err, "mark order paid")
	}
	transitionsTotal.WithLabelValues(string(domain.StatePaid)).Inc()
	log.Info().Str("order", order.OrderID).Msg("order paid")

	// 2. 逐行扣库存，失败不中断其它行
	failures := s.commitStock(ctx, order)
	if len(failures) > 0 {
		// 已成功扣减的行保持原样，交由人工处理
		if err := order.MarkStockError(failures); err != nil {
			return nil, err
		}
	} else {
		order.ConfirmStock()
	}

	// 3. 写回扣减结果，瞬时故障有限次重试
	if err := s.saveWithRetry(ctx, order, domain.StatePaid); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return s.supersede(ctx, order)
		}
		if !s.resultStored(ctx, order) {
			// 已保存的订单没有扣减标记，撤销本次扣减使库存与之一致；stockPending 标记留给人工核对
			log.Error().Err(err).Strs("failures", failures).Str("order", order.OrderID).
				Msg("could not persist stock reduction result, reversing reductions")
			s.reverseReductions(ctx, order)
			return &PaymentEventResult{Received: true, Outcome: OutcomeUnrecorded, StockErrors: failures}, nil
		}
		log.Warn().Err(err).Str("order", order.OrderID).Msg("order save reported an error but the result is stored")
	}
	s.events.PublishOrderChanged(ctx, order)

	if len(failures) > 0 {
		transitionsTotal.WithLabelValues(string(domain.StateStockError)).Inc()
		log.Error().Strs("failures", failures).Msg("stock reduction failed after payment, order needs manual reconciliation")
		return &PaymentEventResult{Received: true, Outcome: OutcomeStockError, StockErrors: failures}, nil
	}

	// 4. 通知
	s.notifyPaid(ctx, order)

	return &PaymentEventResult{Received: true, Outcome: OutcomePaid}, nil
}

// saveWithRetry 以比较并交换写回订单。状态冲突不重试。
func (s *OrderApplicationService) saveWithRetry(ctx context.Context, order *domain.Order, expected domain.State) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.SaveRetryInterval
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.orderRepo.UpdateIfStatus(ctx, order, expected)
		if errors.Is(err, domain.ErrStatusConflict) || errors.Is(err, domain.ErrOrderNotFound) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(s.opts.SaveAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Ctx(ctx).Warn().Err(err).Str("order", order.OrderID).Dur("retry_in", next).Msg("order save failed, retrying")
		}),
	)
	return err
}

// resultStored 在写回报错后重新读取订单，判断写入是否其实已经生效。
func (s *OrderApplicationService) resultStored(ctx context.Context, order *domain.Order) bool {
	latest, err := s.orderRepo.FindByID(ctx, order.OrderID)
	if err != nil {
		return false
	}
	return latest.Status == order.Status && !latest.StockPending
}

// commitStock 扣减所有受跟踪行的库存，成功的行打上 StockCommitted 标记。
func (s *OrderApplicationService) commitStock(ctx context.Context, order *domain.Order) []string {
	var failures []string
	for i := range order.Items {
		item := &order.Items[i]
		if !item.Tracked() || item.StockCommitted {
			continue
		}
		remaining, err := s.inventory.AdjustStock(ctx, item.ProductID, item.Size, item.Color, -item.Quantity)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", item.Label(), err))
			logger.Ctx(ctx).Error().Err(err).Str("order", order.OrderID).Str("item", item.Label()).Msg("stock reduction failed")
			continue
		}
		item.StockCommitted = true
		logger.Ctx(ctx).Debug().Str("item", item.Label()).Int("remaining", remaining).Msg("stock reduced")
	}
	return failures
}

// supersede 在扣库存期间订单被并发取消时回补本次扣减的库存。
// 取消方看到的是未打标记的行，不会重复回补。
func (s *OrderApplicationService) supersede(ctx context.Context, order *domain.Order) (*PaymentEventResult, error) {
	logger.Ctx(ctx).Warn().Str("order", order.OrderID).Msg("order changed during stock reduction, reversing reductions")
	s.reverseReductions(ctx, order)
	return &PaymentEventResult{Received: true, Outcome: OutcomeSuperseded}, nil
}

// reverseReductions 回补本次已扣减的行并清除其标记。
func (s *OrderApplicationService) reverseReductions(ctx context.Context, order *domain.Order) {
	for _, idx := range order.CommittedItems() {
		item := &order.Items[idx]
		if _, err := s.inventory.AdjustStock(ctx, item.ProductID, item.Size, item.Color, item.Quantity); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order", order.OrderID).Str("item", item.Label()).Msg("could not reverse stock reduction")
			continue
		}
		item.StockCommitted = false
	}
}

func (s *OrderApplicationService) notifyPaid(ctx context.Context, order *domain.Order) {
	if s.notifier == nil {
		return
	}
	if order.CustomerEmail == "" {
		logger.Ctx(ctx).Warn().Str("order", order.OrderID).Msg("paid order has no customer email, skipping notification")
		return
	}
	nctx, cancel := context.WithTimeout(ctx, s.opts.NotificationTimeout)
	defer cancel()

	err := s.notifier.NotifyOrderPaid(nctx, port.NewOrderNotification(order))
	if err == nil {
		return
	}

	notificationFailures.Inc()
	logger.Ctx(ctx).Error().Err(err).Str("order", order.OrderID).Msg("order notification failed")
	order.RecordEmailError(err.Error())
	if err := s.orderRepo.UpdateIfStatus(ctx, order, order.Status); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order", order.OrderID).Msg("could not record notification failure")
	}
}
