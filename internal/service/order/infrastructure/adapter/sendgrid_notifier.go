package adapter

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/order/domain/port"
)

const defaultSendGridHost = "https://api.sendgrid.com"

type SendGridConfig struct {
	APIKey         string
	FromEmail      string
	FromName       string
	AdminEmail     string
	NotifyCustomer bool
	Currency       string
	// Host 为空时使用 SendGrid 官方地址。
	Host string
}

// SendGridNotifier 实现了 port.Notifier 接口，同步发送订单邮件。
type SendGridNotifier struct {
	cfg SendGridConfig
}

func NewSendGridNotifier(cfg SendGridConfig) *SendGridNotifier {
	if cfg.Host == "" {
		cfg.Host = defaultSendGridHost
	}
	return &SendGridNotifier{cfg: cfg}
}

func (n *SendGridNotifier) NotifyOrderPaid(ctx context.Context, msg *port.OrderNotification) error {
	m := n.buildMail(msg)

	req := sendgrid.GetRequest(n.cfg.APIKey, "/v3/mail/send", n.cfg.Host)
	req.Method = "POST"
	req.Body = mail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "sendgrid: send order mail")
	}
	if resp.StatusCode >= 400 {
		return errors.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	logger.Ctx(ctx).Info().Str("order", msg.OrderID).Int("status", resp.StatusCode).Msg("order mail sent")
	return nil
}

func (n *SendGridNotifier) buildMail(msg *port.OrderNotification) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(n.cfg.FromName, n.cfg.FromEmail))
	m.Subject = OrderSubject(msg)

	admin := mail.NewPersonalization()
	admin.AddTos(mail.NewEmail("", n.cfg.AdminEmail))
	m.AddPersonalizations(admin)

	// 顾客单独一份，不暴露管理员地址
	if n.cfg.NotifyCustomer && msg.CustomerEmail != "" {
		customer := mail.NewPersonalization()
		customer.AddTos(mail.NewEmail("", msg.CustomerEmail))
		m.AddPersonalizations(customer)
	}

	m.AddContent(mail.NewContent("text/plain", OrderText(msg, n.cfg.Currency)))
	return m
}
