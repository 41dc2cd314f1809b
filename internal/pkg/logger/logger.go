// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const RequestIDHeader = "X-Request-Id"

// Init 配置全局 zerolog，并将其设为 context 中缺省的 logger。
func Init(serviceName, level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}

	zlog.Logger = zerolog.New(out).With().Timestamp().Str("service", serviceName).Logger()
	zerolog.DefaultContextLogger = &zlog.Logger
}

// Ctx 返回 context 中的 logger；没有注入时回落到全局 logger。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &zlog.Logger
	}
	return l
}

// Middleware 为每个请求注入带 trace_id / request_id 的 logger。
// 需要放在 trace 上下文提取之后。
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		lc := Ctx(ctx).With().Str("request_id", requestID).Str("path", r.URL.Path)
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			lc = lc.Str("trace_id", sc.TraceID().String())
		}
		l := lc.Logger()

		next.ServeHTTP(w, r.WithContext(l.WithContext(ctx)))
	})
}
