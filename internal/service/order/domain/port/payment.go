package port

import (
	"context"

	"storefront/internal/service/order/domain"
)

const EventCheckoutSessionCompleted = "checkout.session.completed"

// CheckoutSession 是支付方返回的会话，URL 用于把顾客重定向到支付页。
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// PaymentEvent 是验签通过后的支付回调事件。
type PaymentEvent struct {
	ID        string
	Type      string
	SessionID string
}

// SessionDetails 是从支付方取回的顾客信息。
type SessionDetails struct {
	CustomerEmail   string
	ShippingAddress *domain.ShippingAddress
}

// PaymentGateway 是支付服务的出站端口。币种、收货国家白名单和跳转地址由实现方在服务端决定。
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, items []domain.LineItem) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*SessionDetails, error)

	// ParseEvent 校验签名并解析事件；签名缺失或无效时返回 apperr.ErrAuthentication。
	ParseEvent(payload []byte, signature string) (*PaymentEvent, error)
}
