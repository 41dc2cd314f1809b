package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/database"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
	"storefront/internal/pkg/redis"
	inventorydomain "storefront/internal/service/inventory/domain"
	inventoryinfra "storefront/internal/service/inventory/infrastructure"
	orderdomain "storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
	orderinfra "storefront/internal/service/order/infrastructure"
	"storefront/internal/service/order/infrastructure/adapter"
	"storefront/internal/service/order/infrastructure/rule"
)

// container 按配置选择各端口的实现，并收集需要在关停时释放的资源。
type container struct {
	cfg    *bootstrap.Config
	tracer trace.Tracer

	db       *database.Provider
	shutdown []func(ctx context.Context) error
}

func (c *container) onShutdown(fn func(ctx context.Context) error) {
	c.shutdown = append(c.shutdown, fn)
}

// database 在首次需要时创建共享的 MySQL 连接提供者，连接本身仍是延迟建立的。
func (c *container) database() (*database.Provider, error) {
	if c.db != nil {
		return c.db, nil
	}
	mysqlCfg := c.cfg.Infra.MySQL
	opts := database.Options{
		MaxOpenConns:    mysqlCfg.MaxOpenConns,
		MaxIdleConns:    mysqlCfg.MaxIdleConns,
		ConnMaxLifetime: mysqlCfg.ConnMaxLifetime,
	}
	if mysqlCfg.AutoMigrate {
		opts.Migrate = c.migrate
	}
	p, err := database.NewMySQLProvider(mysqlCfg.DSN, opts)
	if err != nil {
		return nil, err
	}
	c.db = p
	c.onShutdown(func(context.Context) error { return p.Close() })
	return p, nil
}

func (c *container) migrate(db *gorm.DB) error {
	if c.cfg.Storage.LedgerDriver == "mysql" {
		if err := inventoryinfra.AutoMigrate(db); err != nil {
			return err
		}
	}
	if c.cfg.Storage.OrderDriver == "mysql" {
		return orderinfra.AutoMigrate(db)
	}
	return nil
}

func (c *container) ledger(ctx context.Context) (inventorydomain.Ledger, error) {
	switch c.cfg.Storage.LedgerDriver {
	case "mysql":
		p, err := c.database()
		if err != nil {
			return nil, err
		}
		return inventoryinfra.NewGormLedger(p), nil
	case "redis":
		rc := c.cfg.Infra.Redis
		client := redis.NewClient(redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		c.onShutdown(func(context.Context) error { return client.Close() })
		if err := client.Ping(ctx); err != nil {
			return nil, errors.Wrap(err, "ping redis")
		}
		return inventoryinfra.NewRedisLedger(ctx, client)
	default:
		logger.Ctx(ctx).Warn().Msg("using in-memory stock ledger, stock is lost on restart")
		return inventoryinfra.NewMemoryLedger(), nil
	}
}

func (c *container) orderRepository() (orderdomain.OrderRepository, error) {
	if c.cfg.Storage.OrderDriver == "mysql" {
		p, err := c.database()
		if err != nil {
			return nil, err
		}
		return orderinfra.NewGormOrderRepository(p), nil
	}
	return orderinfra.NewMemoryOrderRepository(), nil
}

func (c *container) paymentGateway() *adapter.StripeGateway {
	pc := c.cfg.Payment
	if pc.StripeSecretKey == "" || pc.WebhookSecret == "" {
		logger.Ctx(context.Background()).Warn().Msg("stripe keys are not configured, checkout and webhooks will fail")
	}
	baseURL := strings.TrimSuffix(c.cfg.App.BaseURL, "/")
	return adapter.NewStripeGateway(adapter.StripeConfig{
		SecretKey:        pc.StripeSecretKey,
		WebhookSecret:    pc.WebhookSecret,
		Currency:         pc.Currency,
		AllowedCountries: pc.AllowedCountries,
		SuccessURL:       baseURL + pc.SuccessPath,
		CancelURL:        baseURL + pc.CancelPath,
		Timeout:          pc.Timeout,
	}, httpclient.New(c.tracer, pc.Timeout))
}

func (c *container) notifier() (port.Notifier, error) {
	nc := c.cfg.Notification
	switch nc.Driver {
	case "sendgrid":
		return adapter.NewSendGridNotifier(adapter.SendGridConfig{
			APIKey:         nc.SendGridAPIKey,
			FromEmail:      nc.FromEmail,
			FromName:       nc.FromName,
			AdminEmail:     nc.AdminEmail,
			NotifyCustomer: nc.NotifyCustomer,
			Currency:       c.cfg.Payment.Currency,
		}), nil
	case "kafka":
		kc := c.cfg.Infra.Kafka
		writer := mq.NewKafkaWriter(kc.Brokers, kc.NotificationTopic)
		c.onShutdown(func(context.Context) error { return writer.Close() })
		return adapter.NewNotificationKafkaAdapter(writer, kc.NotificationTopic), nil
	case "log":
		return adapter.LogNotifier{}, nil
	}
	return nil, errors.Errorf("unknown notification driver %q", nc.Driver)
}

func (c *container) checkoutPolicy() (port.CheckoutPolicy, error) {
	if len(c.cfg.Checkout.Rules) == 0 {
		return nil, nil
	}
	return rule.NewCELPolicy(c.cfg.Checkout.Rules)
}
