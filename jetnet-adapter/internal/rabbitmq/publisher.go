package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/aviation-connect/adapters/jetnet-adapter/internal/metrics"
	"github.com/aviation-connect/adapters/pkg/model"
)

// channel is the slice of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends operation results to a RabbitMQ queue.
type Publisher struct {
	channel channel
	queue   string
	logger  *zap.Logger
}

// NewPublisher wraps an open channel. queue is the default routing key.
func NewPublisher(ch channel, queue string, logger *zap.Logger) *Publisher {
	return &Publisher{channel: ch, queue: queue, logger: logger}
}

// PublishResult sends res on the default queue, or on replyTo when set.
func (p *Publisher) PublishResult(ctx context.Context, replyTo, correlationID string, res model.OperationResult) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal operation result: %w", err)
	}

	key := p.queue
	if replyTo != "" {
		key = replyTo
	}

	start := time.Now()
	err = p.channel.PublishWithContext(
		ctx,
		"",    // exchange
		key,   // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			Timestamp:     res.Completed,
			Type:          "jetnet.operation_result.v1",
			Body:          body,
		},
	)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PublishHook(key, status, time.Since(start))

	if err != nil {
		p.logger.Error("Failed to publish operation result",
			zap.String("queue", key),
			zap.Error(err))
		return err
	}
	return nil
}
