package domain

import "github.com/pkg/errors"

var (
	// ErrNotFound 覆盖商品不存在和规格不存在两种情况。
	ErrNotFound          = errors.New("inventory record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

var (
	ErrProductNotFound = notFound("product not found")
	ErrVariantNotFound = notFound("variant not found")
)

type notFoundError struct{ msg string }

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }
