package application

import (
	"strings"

	"storefront/internal/service/order/domain"
)

// CheckoutRequest 是顾客提交的购物车。
type CheckoutRequest struct {
	Items []CheckoutItem `json:"items"`
}

type CheckoutItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

func (i CheckoutItem) toDomain() domain.LineItem {
	return domain.LineItem{
		ProductID: strings.TrimSpace(i.ProductID),
		Name:      i.Name,
		Price:     i.Price,
		Quantity:  i.Quantity,
		Size:      strings.TrimSpace(i.Size),
		Color:     strings.TrimSpace(i.Color),
	}
}

type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// TransitionRequest 是后台修改订单状态的请求。
type TransitionRequest struct {
	Status domain.State `json:"status"`
}

type TransitionResponse struct {
	Order          *domain.Order `json:"order"`
	RollbackErrors []string      `json:"rollbackErrors,omitempty"`
}

// PaymentEventResult 描述一次回调的处理结果，回给支付方作为确认。
type PaymentEventResult struct {
	Received    bool     `json:"received"`
	Outcome     string   `json:"outcome"`
	StockErrors []string `json:"stockErrors,omitempty"`
}

const (
	OutcomeIgnored        = "ignored"
	OutcomeUnknownSession = "unknown_session"
	OutcomeDuplicate      = "duplicate"
	OutcomePaid           = "paid"
	OutcomeStockError     = "stock_error"
	// OutcomeSuperseded 表示扣库存期间订单被后台取消，已扣的库存随即回补。
	OutcomeSuperseded = "superseded"
	// OutcomeUnrecorded 表示扣减结果无法写回订单，本次扣减已撤销，订单保留 stockPending 标记。
	OutcomeUnrecorded = "stock_unrecorded"
	// OutcomeMalformed 表示签名有效但内容无法处理，确认收到以免支付方反复重发。
	OutcomeMalformed = "malformed"
)
