package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/aviation-connect/adapters/pkg/model"
)

// jetStream is the slice of nats.JetStreamContext the publisher needs.
type jetStream interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Hook observes publish outcomes (metrics). status is "ok" or "error".
type Hook func(subject, status string, elapsed time.Duration)

// Publisher wraps a NATS JetStream context and publishes canonical envelopes.
type Publisher struct {
	nc      *nats.Conn
	js      jetStream
	logger  *zap.Logger
	subject string
	service string
	hook    Hook
}

// New creates a Publisher backed by JetStream.
func New(nc *nats.Conn, logger *zap.Logger, subject, service string, hook Hook) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		logger:  logger,
		subject: subject,
		service: service,
		hook:    hook,
	}, nil
}

// PublishEnvelope serializes and publishes env. An empty subject falls back to
// the publisher's default subject.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("publisher.marshal_failed",
			zap.String("subject", subject),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		return err
	}

	if subject == "" {
		subject = p.subject
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
			"client_id":      []string{env.ClientID},
		},
	}

	return p.send(ctx, msg, env.EventType)
}

// Publish publishes a raw JSON payload (for non-canonical internal events).
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{"source": []string{p.service}},
	}
	return p.send(ctx, msg, "")
}

func (p *Publisher) send(ctx context.Context, msg *nats.Msg, eventType string) error {
	var opts []nats.PubOpt
	if _, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Context(ctx))
	}

	start := time.Now()
	_, err := p.js.PublishMsg(msg, opts...)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if p.hook != nil {
		p.hook(msg.Subject, status, time.Since(start))
	}

	if err != nil {
		p.logger.Error("publisher.publish_failed",
			zap.String("subject", msg.Subject),
			zap.String("event_type", eventType),
			zap.Error(err))
		return err
	}

	p.logger.Debug("publisher.publish_success",
		zap.String("subject", msg.Subject),
		zap.String("event_type", eventType))
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
