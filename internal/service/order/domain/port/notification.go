package port

import (
	"context"

	"storefront/internal/service/order/domain"
)

// OrderNotification 是支付成功后发给通知服务的内容。
type OrderNotification struct {
	OrderID         string                  `json:"orderId"`
	Items           []domain.LineItem       `json:"items"`
	Total           int64                   `json:"total"`
	ShippingAddress *domain.ShippingAddress `json:"shippingAddress,omitempty"`
	CustomerEmail   string                  `json:"customerEmail"`
}

func NewOrderNotification(o *domain.Order) *OrderNotification {
	return &OrderNotification{
		OrderID:         o.OrderID,
		Items:           o.Items,
		Total:           o.Total,
		ShippingAddress: o.ShippingAddress,
		CustomerEmail:   o.CustomerEmail,
	}
}

// Notifier 是通知服务的出站端口，失败不影响订单的支付状态。
type Notifier interface {
	NotifyOrderPaid(ctx context.Context, n *OrderNotification) error
}

// OrderEventPublisher 向后台实时推送订单变化，尽力而为。
type OrderEventPublisher interface {
	PublishOrderChanged(ctx context.Context, order *domain.Order)
}
