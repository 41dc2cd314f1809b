// cmd/notification-worker/main.go
package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
	"storefront/internal/service/order/domain/port"
	"storefront/internal/service/order/infrastructure/adapter"
	"storefront/internal/service/order/interfaces"
)

const serviceName = "notification-worker"

// 从通知主题消费已支付订单并发送邮件，处理失败的消息转入死信主题。
func main() {
	cfg := bootstrap.Init()
	ctx := context.Background()
	kc := cfg.Infra.Kafka
	if len(kc.Brokers) == 0 || kc.NotificationTopic == "" {
		logger.Ctx(ctx).Fatal().Msg("infra.kafka.brokers and notificationTopic are required")
	}

	var notifier port.Notifier = adapter.LogNotifier{}
	if cfg.Notification.SendGridAPIKey != "" {
		nc := cfg.Notification
		notifier = adapter.NewSendGridNotifier(adapter.SendGridConfig{
			APIKey:         nc.SendGridAPIKey,
			FromEmail:      nc.FromEmail,
			FromName:       nc.FromName,
			AdminEmail:     nc.AdminEmail,
			NotifyCustomer: nc.NotifyCustomer,
			Currency:       cfg.Payment.Currency,
		})
	}

	dltWriter := mq.NewKafkaWriter(kc.Brokers, kc.DeadLetterTopic)
	failureHandler := mq.NewFailureHandler(dltWriter, kc.DeadLetterTopic)

	notificationConsumer := interfaces.NewNotificationConsumer(
		mq.NewKafkaReader(kc.Brokers, kc.NotificationTopic, kc.ConsumerGroup),
		notifier, failureHandler, cfg.Notification.Timeout,
	)
	dltConsumer := interfaces.NewDltConsumer(
		mq.NewKafkaReader(kc.Brokers, kc.DeadLetterTopic, kc.ConsumerGroup+"-dlt"),
	)

	notificationConsumer.Start(ctx)
	dltConsumer.Start(ctx)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		// 与 storefront 共用配置文件时错开端口
		Port:        cfg.App.Port + 1,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("GET /metrics", promhttp.Handler())
		},
		// 逆序执行：先停消费者，最后关闭死信 writer
		OnShutdown: []func(ctx context.Context) error{
			func(context.Context) error { return dltWriter.Close() },
			dltConsumer.Stop,
			notificationConsumer.Stop,
		},
	})
}
