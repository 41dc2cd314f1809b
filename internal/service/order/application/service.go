// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// Options 是订单服务的可调参数。
type Options struct {
	// MaxItems 限制一次结账的行数。
	MaxItems int
	// NotificationTimeout 约束一次通知调用的总时长。
	NotificationTimeout time.Duration
	// SaveAttempts 和 SaveRetryInterval 约束扣库存之后写回订单的重试。
	SaveAttempts      uint
	SaveRetryInterval time.Duration
}

// OrderApplicationService 只关注订单的业务流程编排：结账、支付回调、取消和后台流转。
type OrderApplicationService struct {
	orderRepo domain.OrderRepository
	tracer    trace.Tracer
	opts      Options

	inventory port.InventoryService
	payments  port.PaymentGateway
	notifier  port.Notifier
	events    port.OrderEventPublisher
	policy    port.CheckoutPolicy
}

func NewOrderApplicationService(orderRepo domain.OrderRepository, tracer trace.Tracer, opts Options, inventory port.InventoryService, payments port.PaymentGateway, notifier port.Notifier, events port.OrderEventPublisher, policy port.CheckoutPolicy) *OrderApplicationService {
	if opts.MaxItems <= 0 {
		opts.MaxItems = 50
	}
	if opts.NotificationTimeout <= 0 {
		opts.NotificationTimeout = 5 * time.Second
	}
	if opts.SaveAttempts == 0 {
		opts.SaveAttempts = 3
	}
	if opts.SaveRetryInterval <= 0 {
		opts.SaveRetryInterval = 50 * time.Millisecond
	}
	if events == nil {
		events = noopPublisher{}
	}
	return &OrderApplicationService{
		orderRepo: orderRepo, tracer: tracer, opts: opts,
		inventory: inventory, payments: payments,
		notifier: notifier, events: events, policy: policy,
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderChanged(context.Context, *domain.Order) {}
