package interfaces

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"storefront/internal/pkg/apperr"
	"storefront/internal/pkg/httpx"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/application"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/infrastructure/adapter"
)

const (
	signatureHeader     = "Stripe-Signature"
	maxWebhookBodyBytes = 1 << 20
)

// Catalog 提供商品目录的只读视图。
type Catalog interface {
	ListProducts(ctx context.Context) ([]adapter.Product, error)
}

// OrderHandler 封装了结账、支付回调和后台订单管理的 HTTP 处理器
type OrderHandler struct {
	service    *application.OrderApplicationService
	catalog    Catalog
	feed       *Hub
	adminToken string
}

func NewOrderHandler(service *application.OrderApplicationService, catalog Catalog, feed *Hub, adminToken string) *OrderHandler {
	return &OrderHandler{service: service, catalog: catalog, feed: feed, adminToken: adminToken}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/checkout", h.handleCheckout)
	mux.HandleFunc("POST /api/webhook/stripe", h.handleStripeWebhook)
	if h.catalog != nil {
		mux.HandleFunc("GET /api/products", h.handleProducts)
	}

	admin := func(f http.HandlerFunc) http.Handler { return httpx.RequireBearer(h.adminToken, f) }
	mux.Handle("GET /api/orders", admin(h.handleList))
	mux.Handle("GET /api/orders/{id}", admin(h.handleGet))
	mux.Handle("PATCH /api/orders/{id}", admin(h.handleTransition))
	if h.feed != nil {
		mux.Handle("GET /admin/orders/stream", admin(h.feed.ServeWS))
	}
}

// StatusCode 把订单领域错误映射为 HTTP 状态码。
func StatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrItemUnavailable),
		errors.Is(err, domain.ErrStatusConflict),
		errors.Is(err, domain.ErrOrderExists):
		return http.StatusConflict
	}
	return 0
}

func (h *OrderHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req application.CheckoutRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}

	resp, err := h.service.Checkout(r.Context(), &req)
	if err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// handleStripeWebhook 签名无效返回 400，其它失败返回 500 让支付方重发。
func (h *OrderHandler) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{Error: "could not read body"})
		return
	}

	result, err := h.service.HandlePaymentEvent(r.Context(), payload, r.Header.Get(signatureHeader))
	switch {
	case errors.Is(err, apperr.ErrAuthentication):
		logger.Ctx(r.Context()).Warn().Err(err).Msg("webhook signature verification failed")
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{Error: "invalid signature"})
		return
	case err != nil:
		logger.Ctx(r.Context()).Error().Err(err).Msg("webhook processing failed")
		httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorBody{Error: "processing failed"})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		httpx.WriteError(w, r, apperr.Upstream(err, "list products"), StatusCode)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (h *OrderHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, r, apperr.Invalid("limit", "must be a positive integer"), StatusCode)
			return
		}
		limit = n
	}

	orders, err := h.service.ListOrders(r.Context(), q.Get("status"), limit)
	if err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req application.TransitionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}

	resp, err := h.service.TransitionOrderStatus(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
