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

// CommandDispatcher runs one operation command (see handler.Dispatcher).
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd model.OperationCommand) model.OperationResult
}

// ResultPublisher sends a result back to the caller.
type ResultPublisher interface {
	PublishResult(ctx context.Context, replyTo, correlationID string, res model.OperationResult) error
}

// Consumer reads operation commands from the request queue and answers each
// one on the result queue (or the message's reply-to queue).
type Consumer struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	dispatcher   CommandDispatcher
	publisher    ResultPublisher
	requestQueue string
	resultQueue  string
	timeout      time.Duration
	logger       *zap.Logger
	done         chan struct{}
}

// Dial connects to RabbitMQ and opens a channel.
func Dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return conn, ch, nil
}

// NewConsumer creates a consumer on an open connection.
func NewConsumer(conn *amqp.Connection, ch *amqp.Channel, requestQueue, resultQueue string, timeout time.Duration,
	dispatcher CommandDispatcher, publisher ResultPublisher, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:         conn,
		channel:      ch,
		dispatcher:   dispatcher,
		publisher:    publisher,
		requestQueue: requestQueue,
		resultQueue:  resultQueue,
		timeout:      timeout,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Start declares both queues and begins consuming.
func (c *Consumer) Start(ctx context.Context) error {
	for _, q := range []string{c.requestQueue, c.resultQueue} {
		if _, err := c.channel.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q, err)
		}
	}

	msgs, err := c.channel.Consume(c.requestQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", c.requestQueue, err)
	}

	c.logger.Info("Started consuming from RabbitMQ",
		zap.String("requestQueue", c.requestQueue),
		zap.String("resultQueue", c.resultQueue))

	go c.consume(ctx, msgs)
	return nil
}

func (c *Consumer) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("Request channel closed")
				return
			}
			c.handleDelivery(ctx, msg)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	var cmd model.OperationCommand
	if err := json.Unmarshal(msg.Body, &cmd); err != nil {
		c.logger.Error("Failed to unmarshal OperationCommand", zap.Error(err))
		metrics.IncQueueMessage(c.requestQueue, "invalid")
		_ = msg.Nack(false, false)
		return
	}

	c.logger.Debug("Received operation command",
		zap.String("correlationId", msg.CorrelationId),
		zap.String("resource", cmd.Resource),
		zap.String("operation", cmd.Operation))

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	res := c.dispatcher.Dispatch(cctx, cmd)
	cancel()

	if err := c.publisher.PublishResult(ctx, msg.ReplyTo, msg.CorrelationId, res); err != nil {
		metrics.IncQueueMessage(c.requestQueue, "error")
		if msg.Redelivered {
			// Second failure: dead-letter instead of requeueing forever.
			c.logger.Error("Failed to publish result for redelivered command, dropping",
				zap.String("correlationId", msg.CorrelationId),
				zap.Error(err))
			_ = msg.Nack(false, false)
			return
		}
		c.logger.Warn("Failed to publish result, requeueing command",
			zap.String("correlationId", msg.CorrelationId),
			zap.Error(err))
		_ = msg.Nack(false, true)
		return
	}

	metrics.IncQueueMessage(c.requestQueue, "ok")
	_ = msg.Ack(false)
}

// Close stops consumption and closes the channel and connection.
func (c *Consumer) Close() error {
	close(c.done)

	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
