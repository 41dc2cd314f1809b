// Package apperr 定义跨服务共享的错误分类。
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrUpstream       = errors.New("upstream failure")
	ErrAuthentication = errors.New("authentication failed")
)

// ValidationError 描述一个在边界层被拒绝的输入字段。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid 是构造 ValidationError 的快捷方式。
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Upstream 将外部依赖的失败归类为 ErrUpstream，同时保留原始错误信息。
func Upstream(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &upstreamError{cause: errors.Wrap(err, msg)}
}

type upstreamError struct {
	cause error
}

func (e *upstreamError) Error() string { return e.cause.Error() }
func (e *upstreamError) Unwrap() error { return e.cause }
func (e *upstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// StatusCode 把通用错误类别映射为 HTTP 状态码，未识别的返回 0。
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	}
	return 0
}
