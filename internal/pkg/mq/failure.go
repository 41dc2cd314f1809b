package mq

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"storefront/internal/pkg/logger"
)

const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionFqcn     = "x-exception-fqcn"
	HeaderExceptionMessage  = "x-exception-message"
)

// FailureHandler 把处理失败的消息转发到死信主题。
type FailureHandler struct {
	dlt      MessageWriter
	dltTopic string
}

func NewFailureHandler(dlt MessageWriter, dltTopic string) *FailureHandler {
	return &FailureHandler{dlt: dlt, dltTopic: dltTopic}
}

// Handle 转发失败消息；转发本身失败时只记录日志，调用方照常提交 offset。
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	headers := append([]kafka.Header(nil), msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderExceptionFqcn, Value: []byte(fmt.Sprintf("%T", cause))},
		kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
	)

	err := h.dlt.WriteMessages(ctx, kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("original_topic", msg.Topic).
			Int64("original_offset", msg.Offset).
			Msg("failed to forward message to dead letter topic")
		return
	}
	logger.Ctx(ctx).Warn().Err(cause).
		Str("dlt_topic", h.dltTopic).
		Str("key", string(msg.Key)).
		Msg("message forwarded to dead letter topic")
}
