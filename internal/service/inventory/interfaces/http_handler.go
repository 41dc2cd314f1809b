package interfaces

import (
	"net/http"

	"github.com/pkg/errors"

	"storefront/internal/pkg/httpx"
	"storefront/internal/service/inventory/application"
	"storefront/internal/service/inventory/domain"
)

// InventoryHandler 封装了库存相关的 HTTP 处理器。
type InventoryHandler struct {
	service       *application.InventoryService
	adminToken    string
	internalToken string
}

func NewInventoryHandler(service *application.InventoryService, adminToken, internalToken string) *InventoryHandler {
	return &InventoryHandler{service: service, adminToken: adminToken, internalToken: internalToken}
}

// RegisterRoutes 注册公开、后台和服务间三类路由。
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/inventory/check", h.handleCheck)

	mux.Handle("GET /api/inventory", httpx.RequireBearer(h.adminToken, http.HandlerFunc(h.handleList)))
	mux.Handle("GET /api/inventory/{productId}", httpx.RequireBearer(h.adminToken, http.HandlerFunc(h.handleGet)))
	mux.Handle("POST /api/inventory", httpx.RequireBearer(h.adminToken, http.HandlerFunc(h.handleInitialize)))

	mux.Handle("POST /internal/inventory/adjust", httpx.RequireInternalToken(h.internalToken, http.HandlerFunc(h.handleAdjust)))
}

// StatusCode 把库存领域错误映射为 HTTP 状态码。
func StatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict
	}
	return 0
}

func (h *InventoryHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req application.CheckAvailabilityRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}

	resp, err := h.service.CheckAvailability(r.Context(), &req)
	if err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *InventoryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if productID := r.URL.Query().Get("productId"); productID != "" {
		h.writeInventory(w, r, productID)
		return
	}

	all, err := h.service.ListInventories(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, all)
}

func (h *InventoryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.writeInventory(w, r, r.PathValue("productId"))
}

func (h *InventoryHandler) writeInventory(w http.ResponseWriter, r *http.Request, productID string) {
	inv, err := h.service.GetInventory(r.Context(), productID)
	if err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, inv)
}

func (h *InventoryHandler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req application.InitializeInventoryRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}

	inv, err := h.service.InitializeInventory(r.Context(), &req)
	if err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, inv)
}

func (h *InventoryHandler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req application.AdjustStockRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}

	resp, err := h.service.AdjustStock(r.Context(), &req)
	if err != nil {
		httpx.WriteError(w, r, err, StatusCode)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
