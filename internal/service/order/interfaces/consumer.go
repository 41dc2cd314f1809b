package interfaces

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
)

// MessageReader 是 *kafka.Reader 的最小子集。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// consumerLoop 是消费者的通用循环：拉取、处理、失败转交 FailureHandler、提交 offset。
type consumerLoop struct {
	name           string
	reader         MessageReader
	failureHandler *mq.FailureHandler
	process        func(ctx context.Context, msg kafka.Message) error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (l *consumerLoop) start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		logger.Ctx(ctx).Info().Str("consumer", l.name).Msg("kafka consumer started")
		for {
			msg, err := l.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Str("consumer", l.name).Msg("kafka consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Str("consumer", l.name).Msg("could not fetch message, retrying")
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}

			msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
			if err := l.process(msgCtx, msg); err != nil && l.failureHandler != nil {
				l.failureHandler.Handle(msgCtx, msg, err)
			}

			// 无论成功或失败（已移交死信），都提交 offset
			if err := l.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("consumer", l.name).Msg("failed to commit message")
			}
		}
	}()
}

func (l *consumerLoop) stop(ctx context.Context) error {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
	err := l.reader.Close()
	logger.Ctx(ctx).Info().Str("consumer", l.name).Msg("kafka consumer stopped")
	return err
}
