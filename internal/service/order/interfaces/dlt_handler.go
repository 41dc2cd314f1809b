package interfaces

import (
	"context"

	"github.com/segmentio/kafka-go"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
)

// DltConsumer 监听死信主题并记录日志，供人工补发通知。
type DltConsumer struct {
	loop consumerLoop
}

func NewDltConsumer(reader MessageReader) *DltConsumer {
	c := &DltConsumer{}
	c.loop = consumerLoop{name: "dead-letter", reader: reader, process: logDeadLetter}
	return c
}

func (c *DltConsumer) Start(ctx context.Context) {
	c.loop.start(ctx)
}

func (c *DltConsumer) Stop(ctx context.Context) error {
	return c.loop.stop(ctx)
}

func logDeadLetter(ctx context.Context, msg kafka.Message) error {
	headers := make(map[string]string)
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", headers[mq.HeaderOriginalTopic]).
		Str("original_partition", headers[mq.HeaderOriginalPartition]).
		Str("original_offset", headers[mq.HeaderOriginalOffset]).
		Str("exception_fqcn", headers[mq.HeaderExceptionFqcn]).
		Str("exception_message", headers[mq.HeaderExceptionMessage]).
		Str("key", string(msg.Key)).
		Msg("dead letter message received")
	return nil
}
