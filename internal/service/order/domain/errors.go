package domain

import "github.com/pkg/errors"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderExists   = errors.New("order already exists")
	// ErrStatusConflict 表示比较并交换时订单状态已被其他请求修改。
	ErrStatusConflict    = errors.New("order status changed concurrently")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrItemUnavailable   = errors.New("item unavailable")
)
