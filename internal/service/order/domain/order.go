// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"storefront/internal/pkg/apperr"
)

// LineItem 是订单中的一行，价格为最小货币单位。
type LineItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	// StockCommitted 表示该行的库存已在支付后扣减成功，取消时据此回补。
	StockCommitted bool `json:"stockCommitted,omitempty"`
}

// Tracked 只有同时带尺码和颜色的行才参与库存扣减。
func (li LineItem) Tracked() bool {
	return strings.TrimSpace(li.Size) != "" && strings.TrimSpace(li.Color) != ""
}

func (li LineItem) Subtotal() int64 {
	return li.Price * int64(li.Quantity)
}

func (li LineItem) Label() string {
	if li.Tracked() {
		return fmt.Sprintf("%s (%s, %s)", li.Name, li.Size, li.Color)
	}
	return li.Name
}

// Validate 校验结账时提交的一行。
func (li LineItem) Validate(index int) error {
	field := fmt.Sprintf("items[%d]", index)
	switch {
	case strings.TrimSpace(li.ProductID) == "":
		return apperr.Invalid(field+".productId", "must be a non-empty string")
	case strings.TrimSpace(li.Name) == "":
		return apperr.Invalid(field+".name", "must be a non-empty string")
	case li.Price <= 0:
		return apperr.Invalid(field+".price", "must be a positive integer in minor units")
	case li.Quantity <= 0:
		return apperr.Invalid(field+".quantity", "must be a positive integer")
	case (strings.TrimSpace(li.Size) == "") != (strings.TrimSpace(li.Color) == ""):
		return apperr.Invalid(field, "size and color must be provided together")
	}
	return nil
}

type ShippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order 是订单聚合的根实体
type Order struct {
	OrderID         string           `json:"orderId"`
	SessionID       string           `json:"sessionId"`
	Items           []LineItem       `json:"items"`
	Total           int64            `json:"total"`
	Status          State            `json:"status"`
	CustomerEmail   string           `json:"customerEmail,omitempty"`
	ShippingAddress *ShippingAddress `json:"shippingAddress,omitempty"`

	// StockPending 随 pending -> paid 一起写入，扣减结果落库后清除。
	// 仍为 true 的已支付订单说明扣减结果没能保存，需要人工核对库存。
	StockPending bool `json:"stockPending,omitempty"`

	StockReductionErrors []string `json:"stockReductionErrors,omitempty"`
	StockRollbackErrors  []string `json:"stockRollbackErrors,omitempty"`
	EmailError           string   `json:"emailError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CalculateTotal 计算 Σ price × quantity。
func CalculateTotal(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

// NewPendingOrder 以支付会话 ID 作为订单 ID 创建待支付订单。
func NewPendingOrder(sessionID string, items []LineItem) (*Order, error) {
	if sessionID == "" {
		return nil, errors.New("cannot create order without a payment session id")
	}
	if len(items) == 0 {
		return nil, errors.New("cannot create order without items")
	}

	now := time.Now().UTC()
	copied := make([]LineItem, len(items))
	for i, item := range items {
		item.StockCommitted = false
		copied[i] = item
	}
	return &Order{
		OrderID:   sessionID,
		SessionID: sessionID,
		Items:     copied,
		Total:     CalculateTotal(copied),
		Status:    StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkPaid 只允许从 pending 进入 paid，并附上支付方返回的客户信息。
func (o *Order) MarkPaid(email string, address *ShippingAddress) error {
	if o.Status != StatePending {
		return errors.Wrapf(ErrInvalidTransition, "order %s is %s, only pending orders can be paid", o.OrderID, o.Status)
	}
	o.Status = StatePaid
	o.StockPending = o.hasTrackedItems()
	if email != "" {
		o.CustomerEmail = email
	}
	if address != nil {
		o.ShippingAddress = address
	}
	o.touch()
	return nil
}

// MarkStockError 记录扣库存失败的原因，订单进入待人工处理状态。
func (o *Order) MarkStockError(failures []string) error {
	if o.Status != StatePaid {
		return errors.Wrapf(ErrInvalidTransition, "order %s is %s, stock errors are only recorded on paid orders", o.OrderID, o.Status)
	}
	o.Status = StateStockError
	o.StockPending = false
	o.StockReductionErrors = append([]string(nil), failures...)
	o.touch()
	return nil
}

// Cancel 把订单置为 cancelled，并记录回补库存时的失败信息。回补失败不阻止取消。
func (o *Order) Cancel(rollbackFailures []string) error {
	if o.Status.Terminal() {
		return errors.Wrapf(ErrInvalidTransition, "order %s is already %s", o.OrderID, o.Status)
	}
	o.Status = StateCancelled
	o.StockPending = false
	if len(rollbackFailures) > 0 {
		o.StockRollbackErrors = append([]string(nil), rollbackFailures...)
	}
	o.touch()
	return nil
}

// TransitionTo 执行后台发起的普通状态流转（不含取消和支付）。
func (o *Order) TransitionTo(next State) error {
	if !next.Valid() {
		return apperr.Invalid("status", fmt.Sprintf("unknown status %q", next))
	}
	if !o.Status.CanTransitionTo(next) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", o.Status, next)
	}
	o.Status = next
	o.touch()
	return nil
}

// ConfirmStock 标记所有受跟踪行的扣减已完成。
func (o *Order) ConfirmStock() {
	o.StockPending = false
	o.touch()
}

// RecordEmailError 记录通知失败，不影响订单状态。
func (o *Order) RecordEmailError(msg string) {
	o.EmailError = msg
	o.touch()
}

// CommittedItems 返回已扣减库存、取消时需要回补的行的下标。
func (o *Order) CommittedItems() []int {
	var idx []int
	for i, item := range o.Items {
		if item.Tracked() && item.StockCommitted {
			idx = append(idx, i)
		}
	}
	return idx
}

func (o *Order) hasTrackedItems() bool {
	for _, item := range o.Items {
		if item.Tracked() {
			return true
		}
	}
	return false
}

// Clone 返回深拷贝，仓储实现用它隔离调用方的修改。
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	if o.ShippingAddress != nil {
		addr := *o.ShippingAddress
		c.ShippingAddress = &addr
	}
	c.StockReductionErrors = append([]string(nil), o.StockReductionErrors...)
	c.StockRollbackErrors = append([]string(nil), o.StockRollbackErrors...)
	return &c
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
