// cmd/storefront/main.go
package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/logger"
	inventoryapp "storefront/internal/service/inventory/application"
	inventoryhttp "storefront/internal/service/inventory/interfaces"
	orderapp "storefront/internal/service/order/application"
	"storefront/internal/service/order/infrastructure/adapter"
	orderhttp "storefront/internal/service/order/interfaces"
)

const serviceName = "storefront"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg := bootstrap.Init()
	ctx := context.Background()
	log := logger.Ctx(ctx)
	tracer := otel.Tracer(serviceName)

	c := &container{cfg: cfg, tracer: tracer}

	// 1. 存储
	ledger, err := c.ledger(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.LedgerDriver).Msg("failed to initialize stock ledger")
	}
	orders, err := c.orderRepository()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.OrderDriver).Msg("failed to initialize order store")
	}

	// 2. 出站适配器
	inventorySvc := inventoryapp.NewInventoryService(ledger, tracer)
	payments := c.paymentGateway()
	notifier, err := c.notifier()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize notifier")
	}
	policy, err := c.checkoutPolicy()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to compile checkout rules")
	}

	// 3. 后台实时推送
	hubCtx, stopHub := context.WithCancel(ctx)
	hub := orderhttp.NewHub()
	go hub.Run(hubCtx)
	c.onShutdown(func(context.Context) error { stopHub(); return nil })

	// 4. 应用服务
	orderSvc := orderapp.NewOrderApplicationService(orders, tracer, orderapp.Options{
		MaxItems:            cfg.Checkout.MaxItems,
		NotificationTimeout: cfg.Notification.Timeout,
	}, adapter.NewInventoryAdapter(inventorySvc), payments, notifier, hub, policy)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("GET /metrics", promhttp.Handler())

			inventoryhttp.NewInventoryHandler(inventorySvc, cfg.Auth.AdminToken, cfg.Auth.InternalToken).RegisterRoutes(appCtx.Mux)
			orderhttp.NewOrderHandler(orderSvc, payments, hub, cfg.Auth.AdminToken).RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: c.shutdown,
	})
}
