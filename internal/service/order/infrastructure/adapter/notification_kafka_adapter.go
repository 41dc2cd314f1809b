package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"storefront/internal/pkg/mq"
	"storefront/internal/service/order/domain/port"
)

const HeaderEventType = "x-event-type"

const EventOrderPaid = "order.paid"

// NotificationEvent 是写入通知主题的消息体，由 notification-worker 消费后投递邮件。
type NotificationEvent struct {
	EventID      string                  `json:"eventId"`
	OccurredAt   time.Time               `json:"occurredAt"`
	Notification *port.OrderNotification `json:"notification"`
}

// NotificationKafkaAdapter 实现了 port.Notifier 接口，只负责把通知写入 Kafka。
type NotificationKafkaAdapter struct {
	writer mq.MessageWriter
	topic  string
}

func NewNotificationKafkaAdapter(writer mq.MessageWriter, topic string) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer, topic: topic}
}

// NotifyOrderPaid 以订单 ID 作为消息 key，同一订单的消息落在同一分区。
func (a *NotificationKafkaAdapter) NotifyOrderPaid(ctx context.Context, n *port.OrderNotification) error {
	event := NotificationEvent{
		EventID:      uuid.NewString(),
		OccurredAt:   time.Now().UTC(),
		Notification: n,
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification event")
	}

	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer, a.topic, []byte(n.OrderID), eventBytes,
		kafka.Header{Key: HeaderEventType, Value: []byte(EventOrderPaid)})
}
