package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical message wrapper exchanged over NATS and RabbitMQ.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	TenantID      string          `json:"tenant_id,omitempty"`
	ClientID      string          `json:"client_id,omitempty"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope for payload, marshalling it to JSON. A zero
// correlationID is replaced by a fresh one.
func NewEnvelope(topic, eventType string, correlationID uuid.UUID, clientID string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if correlationID == uuid.Nil {
		correlationID = uuid.New()
	}
	return &Envelope{
		ID:            uuid.New(),
		CorrelationID: correlationID,
		ClientID:      clientID,
		Topic:         topic,
		EventType:     eventType,
		Version:       "1.0.0",
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	}, nil
}
