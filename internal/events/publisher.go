package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pin-relay/internal/models"
)

const (
	TypeSubmitted = "request.submitted"
	TypeProcessed = "request.processed"
)

// Event describes a request lifecycle transition. It never carries the PIN.
type Event struct {
	Type       string               `json:"type"`
	RequestID  string               `json:"requestId"`
	Status     models.RequestStatus `json:"status"`
	DeviceName string               `json:"deviceName,omitempty"`
	Message    string               `json:"message,omitempty"`
	OccurredAt time.Time            `json:"occurredAt"`
}

// NewEvent builds an event from the current state of req
func NewEvent(eventType string, req *models.PinRequest, at time.Time) Event {
	return Event{
		Type:       eventType,
		RequestID:  req.ID,
		Status:     req.Status,
		DeviceName: req.DeviceName,
		Message:    req.Message,
		OccurredAt: at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Producer is satisfied by client.KafkaProducer
type Producer interface {
	ProduceMessage(ctx context.Context, key, value []byte, headers map[string]string) error
}

type KafkaPublisher struct {
	producer Producer
}

func NewKafkaPublisher(producer Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.producer.ProduceMessage(ctx, []byte(event.RequestID), value, map[string]string{
		"event-type": event.Type,
	})
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
