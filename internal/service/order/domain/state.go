// internal/service/order/domain/state.go
package domain

// State 定义了订单的生命周期状态
type State string

const (
	StatePending    State = "pending"     // 已创建支付会话，等待支付结果
	StatePaid       State = "paid"        // 支付成功且库存已扣减
	StateShipped    State = "shipped"     // 已发货
	StateDelivered  State = "delivered"   // 已送达，终态
	StateCancelled  State = "cancelled"   // 已取消，终态
	StateStockError State = "stock_error" // 支付成功但扣库存失败，需人工处理
)

// transitions 是人工或系统可以触发的状态流转表。
// pending -> paid 只能由支付回调完成，因此单独校验。
var transitions = map[State][]State{
	StatePending:    {StatePaid, StateCancelled},
	StatePaid:       {StateShipped, StateCancelled, StateStockError},
	StateShipped:    {StateDelivered, StateCancelled},
	StateStockError: {StatePaid, StateCancelled},
}

func (s State) Valid() bool {
	switch s {
	case StatePending, StatePaid, StateShipped, StateDelivered, StateCancelled, StateStockError:
		return true
	}
	return false
}

func (s State) Terminal() bool {
	return s == StateDelivered || s == StateCancelled
}

// CanTransitionTo 判断 s -> next 是否合法。
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
