// Package httpx 收拢各服务 HTTP 处理器共用的编解码与鉴权辅助。
package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"storefront/internal/pkg/apperr"
	"storefront/internal/pkg/logger"
)

const maxBodyBytes = 1 << 20

// DecodeJSON 严格解码请求体：未知字段、多余内容、超长请求都会被拒绝。
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return apperr.Invalid("body", "invalid JSON: "+err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Invalid("body", "must contain a single JSON object")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Ctx(context.Background()).Error().Err(err).Msg("failed to encode response")
	}
}

// ErrorBody 是所有错误响应的统一格式。
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteError 用 classify 映射状态码，未识别的错误按 500 处理且不泄露细节。
func WriteError(w http.ResponseWriter, r *http.Request, err error, classify func(error) int) {
	status := 0
	if classify != nil {
		status = classify(err)
	}
	if status == 0 {
		status = apperr.StatusCode(err)
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	WriteJSON(w, status, ErrorBody{Error: msg})
}
