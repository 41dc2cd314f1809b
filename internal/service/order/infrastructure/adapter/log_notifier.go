package adapter

import (
	"context"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain/port"
)

// LogNotifier 只把通知写入日志，用于本地开发。
type LogNotifier struct{}

func (LogNotifier) NotifyOrderPaid(ctx context.Context, n *port.OrderNotification) error {
	logger.Ctx(ctx).Info().
		Str("order", n.OrderID).
		Str("subject", OrderSubject(n)).
		Int64("total", n.Total).
		Msg("order notification")
	return nil
}
