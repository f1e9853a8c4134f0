package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/aviation-connect/adapters/jetnet-adapter/internal/metrics"
	"github.com/aviation-connect/adapters/pkg/model"
)

const (
	// EventOperationCommand is the envelope event type of inbound commands.
	EventOperationCommand = "cmd.jetnet.operation.v1"
	// EventOperationResult is the envelope event type of published results.
	EventOperationResult = "evt.jetnet.operation_result.v1"
)

// Subscriber is the slice of *nats.Conn the handler subscribes through.
type Subscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// EnvelopePublisher emits result envelopes (see internal/publisher).
type EnvelopePublisher interface {
	PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error
}

// Handler consumes operation commands from NATS and publishes one result
// envelope per command on the outbound subject.
type Handler struct {
	ctx        context.Context
	logger     *zap.Logger
	nc         Subscriber
	dispatcher *Dispatcher
	publisher  EnvelopePublisher
	inbound    string
	outbound   string
	queueGroup string
	timeout    time.Duration
}

// Config names the subjects a Handler works on.
type Config struct {
	InboundSubject  string
	OutboundSubject string
	QueueGroup      string
	CommandTimeout  time.Duration
}

func NewHandler(ctx context.Context, logger *zap.Logger, nc Subscriber, dispatcher *Dispatcher, publisher EnvelopePublisher, cfg Config) *Handler {
	return &Handler{
		ctx:        ctx,
		logger:     logger,
		nc:         nc,
		dispatcher: dispatcher,
		publisher:  publisher,
		inbound:    cfg.InboundSubject,
		outbound:   cfg.OutboundSubject,
		queueGroup: cfg.QueueGroup,
		timeout:    cfg.CommandTimeout,
	}
}

// Start subscribes to the inbound subject.
func (h *Handler) Start() error {
	if _, err := h.nc.QueueSubscribe(h.inbound, h.queueGroup, h.handleMessage); err != nil {
		return fmt.Errorf("subscribe %s: %w", h.inbound, err)
	}
	h.logger.Info("subscribed to NATS subject",
		zap.String("subject", h.inbound),
		zap.String("queue_group", h.queueGroup))
	return nil
}

func (h *Handler) handleMessage(msg *nats.Msg) {
	start := time.Now()

	var env model.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		metrics.IncQueueMessage(msg.Subject, "invalid")
		h.logger.Warn("invalid envelope", zap.Error(err))
		return
	}
	if env.EventType != EventOperationCommand {
		metrics.IncQueueMessage(msg.Subject, "ignored")
		h.logger.Warn("unknown event type", zap.String("event_type", env.EventType))
		return
	}

	var cmd model.OperationCommand
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		metrics.IncQueueMessage(msg.Subject, "invalid")
		h.logger.Warn("invalid operation payload", zap.Error(err))
		h.publish(env, model.OperationResult{Error: "invalid operation payload", Completed: time.Now().UTC()})
		return
	}

	h.logger.Info("processing operation command",
		zap.String("correlation_id", env.CorrelationID.String()),
		zap.String("account", cmd.Account),
		zap.String("resource", cmd.Resource),
		zap.String("operation", cmd.Operation),
		zap.Int("items", len(cmd.Items)))

	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()

	res := h.dispatcher.Dispatch(ctx, cmd)
	h.publish(env, res)

	status := "ok"
	if res.Error != "" {
		status = "error"
	}
	metrics.IncQueueMessage(msg.Subject, status)
	h.logger.Debug("message handled",
		zap.String("event_type", env.EventType),
		zap.Duration("latency", time.Since(start)))
}

func (h *Handler) publish(cmdEnv model.Envelope, res model.OperationResult) {
	out, err := model.NewEnvelope(h.outbound, EventOperationResult, cmdEnv.CorrelationID, cmdEnv.ClientID, res)
	if err != nil {
		h.logger.Error("marshal operation result", zap.Error(err))
		return
	}
	out.TenantID = cmdEnv.TenantID

	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()
	if err := h.publisher.PublishEnvelope(ctx, h.outbound, out); err != nil {
		metrics.IncError("handler", "publish_failed")
	}
}
