// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/nacos"
	"storefront/internal/pkg/netutil"
	"storefront/internal/pkg/tracing"
)

type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client
	Config *Config
}

// AppInfo 包含了启动一个服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx)
	// OnShutdown 在 HTTP 服务关闭后按注册的逆序执行。
	OnShutdown []func(ctx context.Context) error
}

// Init 加载配置并初始化全局 logger，必须在 StartService 之前调用。
func Init() *Config {
	cfg, err := Load(getEnv("CONFIG_FILE", defaultConfigFile))
	if err != nil {
		logger.Init("bootstrap", "info", false)
		logger.Ctx(context.Background()).Fatal().Err(err).Msg("failed to load configuration")
	}
	SetCurrentConfig(cfg)
	logger.Init(cfg.App.Name, cfg.App.LogLevel, cfg.App.LogPretty)
	return cfg
}

// StartService 封装了服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	ctx := context.Background()
	cfg := GetCurrentConfig()
	log := logger.Ctx(ctx)

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	var (
		namingClient *nacos.Client
		ip           string
	)
	if cfg.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		if ip, err = netutil.GetOutboundIP(); err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient, Config: cfg})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           tracing.Middleware(info.ServiceName, logger.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msgf("Shutting down service %s...", info.ServiceName)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// 先从注册中心摘除，再停止接收流量
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			log.Error().Err(err).Msg("Error deregistering from Nacos")
		}
		namingClient.Close()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down http server")
	}

	for i := len(info.OnShutdown) - 1; i >= 0; i-- {
		if err := info.OnShutdown[i](shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error running shutdown hook")
		}
	}

	// 最后关闭 Tracer Provider，确保缓冲的 trace 都被发送出去
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down tracer provider")
	}

	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}
