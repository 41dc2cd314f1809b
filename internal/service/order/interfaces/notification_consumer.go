package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"storefront/internal/pkg/mq"
	"storefront/internal/service/order/domain/port"
	"storefront/internal/service/order/infrastructure/adapter"
)

// NotificationConsumer 消费通知主题并投递邮件，投递失败的消息进入死信主题。
type NotificationConsumer struct {
	loop     consumerLoop
	notifier port.Notifier
	timeout  time.Duration
}

func NewNotificationConsumer(reader MessageReader, notifier port.Notifier, failureHandler *mq.FailureHandler, timeout time.Duration) *NotificationConsumer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &NotificationConsumer{notifier: notifier, timeout: timeout}
	c.loop = consumerLoop{name: "notification", reader: reader, failureHandler: failureHandler, process: c.processMessage}
	return c
}

func (c *NotificationConsumer) Start(ctx context.Context) {
	c.loop.start(ctx)
}

func (c *NotificationConsumer) Stop(ctx context.Context) error {
	return c.loop.stop(ctx)
}

func (c *NotificationConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event adapter.NotificationEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "decode notification event")
	}
	if event.Notification == nil {
		return errors.Errorf("notification event %s has no payload", event.EventID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.notifier.NotifyOrderPaid(ctx, event.Notification)
}
