// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "configs/storefront.yaml"

// Config 是整个进程的配置树。先读取 YAML，再用环境变量覆盖。
type Config struct {
	App          AppConfig          `yaml:"app"`
	Infra        InfraConfig        `yaml:"infra"`
	Storage      StorageConfig      `yaml:"storage"`
	Payment      PaymentConfig      `yaml:"payment"`
	Notification NotificationConfig `yaml:"notification"`
	Auth         AuthConfig         `yaml:"auth"`
	Checkout     CheckoutConfig     `yaml:"checkout"`
}

type AppConfig struct {
	Name      string `yaml:"name"`
	Port      int    `yaml:"port"`
	BaseURL   string `yaml:"baseURL"`
	LogLevel  string `yaml:"logLevel"`
	LogPretty bool   `yaml:"logPretty"`
}

type InfraConfig struct {
	Jaeger JaegerConfig `yaml:"jaeger"`
	MySQL  MySQLConfig  `yaml:"mysql"`
	Redis  RedisConfig  `yaml:"redis"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Nacos  NacosConfig  `yaml:"nacos"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	AutoMigrate     bool          `yaml:"autoMigrate"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	NotificationTopic string   `yaml:"notificationTopic"`
	DeadLetterTopic   string   `yaml:"deadLetterTopic"`
	ConsumerGroup     string   `yaml:"consumerGroup"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

// StorageConfig 选择订单仓储和库存账本的后端: memory | mysql | redis(仅账本)。
type StorageConfig struct {
	OrderDriver  string `yaml:"orderDriver"`
	LedgerDriver string `yaml:"ledgerDriver"`
}

type PaymentConfig struct {
	StripeSecretKey  string        `yaml:"stripeSecretKey"`
	WebhookSecret    string        `yaml:"webhookSecret"`
	Currency         string        `yaml:"currency"`
	AllowedCountries []string      `yaml:"allowedCountries"`
	SuccessPath      string        `yaml:"successPath"`
	CancelPath       string        `yaml:"cancelPath"`
	Timeout          time.Duration `yaml:"timeout"`
}

// NotificationConfig 的 Driver 取值: log | sendgrid | kafka。
type NotificationConfig struct {
	Driver         string        `yaml:"driver"`
	SendGridAPIKey string        `yaml:"sendgridAPIKey"`
	FromEmail      string        `yaml:"fromEmail"`
	FromName       string        `yaml:"fromName"`
	AdminEmail     string        `yaml:"adminEmail"`
	NotifyCustomer bool          `yaml:"notifyCustomer"`
	Timeout        time.Duration `yaml:"timeout"`
}

// AuthConfig 中的两个令牌分属不同的信任边界，不能相同。
type AuthConfig struct {
	AdminToken    string `yaml:"adminToken"`
	InternalToken string `yaml:"internalToken"`
}

type CheckoutConfig struct {
	MaxItems int      `yaml:"maxItems"`
	Rules    []string `yaml:"rules"`
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回当前生效的配置。Init 之前调用会得到默认配置。
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	return Default()
}

// SetCurrentConfig 替换当前配置，主要供测试使用。
func SetCurrentConfig(cfg *Config) {
	currentConfig.Store(cfg)
}

// Default 返回开发环境可直接运行的缺省配置。
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "storefront",
			Port:     8080,
			BaseURL:  "http://localhost:3000",
			LogLevel: "info",
		},
		Infra: InfraConfig{
			MySQL: MySQLConfig{
				MaxOpenConns:    20,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
			},
			Redis: RedisConfig{Addr: "localhost:6379"},
			Kafka: KafkaConfig{
				Brokers:           []string{"localhost:9092"},
				NotificationTopic: "order-notifications",
				DeadLetterTopic:   "order-notifications-dlt",
				ConsumerGroup:     "notification-worker",
			},
			Nacos: NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
		Storage: StorageConfig{OrderDriver: "memory", LedgerDriver: "memory"},
		Payment: PaymentConfig{
			Currency:         "cad",
			AllowedCountries: []string{"US", "CA", "ES", "MX"},
			SuccessPath:      "/success",
			CancelPath:       "/checkout",
			Timeout:          10 * time.Second,
		},
		Notification: NotificationConfig{
			Driver:   "log",
			FromName: "Storefront",
			Timeout:  5 * time.Second,
		},
		Checkout: CheckoutConfig{MaxItems: 50},
	}
}

// Load 读取配置文件（不存在时使用默认值）并应用环境变量覆盖。
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查所选驱动必需的配置项。
func (c *Config) Validate() error {
	switch c.Storage.OrderDriver {
	case "memory":
	case "mysql":
		if c.Infra.MySQL.DSN == "" {
			return errors.New("infra.mysql.dsn is required for the mysql order driver")
		}
	default:
		return errors.Errorf("unknown storage.orderDriver %q", c.Storage.OrderDriver)
	}

	switch c.Storage.LedgerDriver {
	case "memory":
	case "mysql":
		if c.Infra.MySQL.DSN == "" {
			return errors.New("infra.mysql.dsn is required for the mysql ledger driver")
		}
	case "redis":
		if c.Infra.Redis.Addr == "" {
			return errors.New("infra.redis.addr is required for the redis ledger driver")
		}
	default:
		return errors.Errorf("unknown storage.ledgerDriver %q", c.Storage.LedgerDriver)
	}

	switch c.Notification.Driver {
	case "log":
	case "sendgrid":
		if c.Notification.SendGridAPIKey == "" || c.Notification.FromEmail == "" {
			return errors.New("notification.sendgridAPIKey and notification.fromEmail are required for the sendgrid driver")
		}
	case "kafka":
		if len(c.Infra.Kafka.Brokers) == 0 || c.Infra.Kafka.NotificationTopic == "" {
			return errors.New("infra.kafka.brokers and notificationTopic are required for the kafka notification driver")
		}
	default:
		return errors.Errorf("unknown notification.driver %q", c.Notification.Driver)
	}

	if c.Auth.AdminToken != "" && c.Auth.AdminToken == c.Auth.InternalToken {
		return errors.New("auth.adminToken and auth.internalToken must differ")
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.App.BaseURL, "STOREFRONT_BASE_URL")
	setString(&cfg.App.LogLevel, "STOREFRONT_LOG_LEVEL")
	setInt(&cfg.App.Port, "STOREFRONT_PORT")

	setString(&cfg.Infra.Jaeger.Endpoint, "JAEGER_ENDPOINT")
	setString(&cfg.Infra.MySQL.DSN, "STOREFRONT_MYSQL_DSN")
	setString(&cfg.Infra.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Infra.Redis.Password, "REDIS_PASSWORD")
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok && v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	setBool(&cfg.Infra.Nacos.Enabled, "NACOS_ENABLED")
	setString(&cfg.Infra.Nacos.ServerAddrs, "NACOS_SERVER_ADDRS")
	setString(&cfg.Infra.Nacos.Namespace, "NACOS_NAMESPACE")
	setString(&cfg.Infra.Nacos.Group, "NACOS_GROUP")

	setString(&cfg.Storage.OrderDriver, "STOREFRONT_ORDER_DRIVER")
	setString(&cfg.Storage.LedgerDriver, "STOREFRONT_LEDGER_DRIVER")

	setString(&cfg.Payment.StripeSecretKey, "STRIPE_SECRET_KEY")
	setString(&cfg.Payment.WebhookSecret, "STRIPE_WEBHOOK_SECRET")

	setString(&cfg.Notification.Driver, "STOREFRONT_NOTIFICATION_DRIVER")
	setString(&cfg.Notification.SendGridAPIKey, "SENDGRID_API_KEY")
	setString(&cfg.Notification.FromEmail, "SENDGRID_FROM")
	setString(&cfg.Notification.AdminEmail, "ADMIN_EMAIL")

	setString(&cfg.Auth.AdminToken, "STOREFRONT_ADMIN_TOKEN")
	setString(&cfg.Auth.InternalToken, "STOREFRONT_INTERNAL_TOKEN")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// getEnv 从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
