// internal/pkg/httpclient/client.go

package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// New 返回一个可追踪的 HTTP 客户端，供支付、邮件等外部 SDK 使用。
// timeout 是整个请求（含读取响应体）的上限。
func New(tracer trace.Tracer, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &Transport{
			Tracer: tracer,
			Base: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Transport 为每个出站请求开启 Client Span 并注入追踪头。
type Transport struct {
	Tracer trace.Tracer
	Base   http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	spanName := fmt.Sprintf("call-%s", req.URL.Hostname())
	ctx, span := t.Tracer.Start(req.Context(), spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("http.url", req.URL.Redacted()),
		attribute.String("http.method", req.Method),
	)

	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Status)
	}
	return resp, nil
}
