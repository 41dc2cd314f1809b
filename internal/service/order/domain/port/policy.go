package port

import "storefront/internal/service/order/domain"

// CheckoutPolicy 在检查库存之前对每一行执行可配置的业务规则。
// 规则不满足时返回 apperr.ErrValidation 族错误。
type CheckoutPolicy interface {
	Evaluate(index int, item domain.LineItem) error
}
