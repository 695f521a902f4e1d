package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/outbox"
	"github.com/angelmondragon/bookstore-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// EventDescriptor links an event type to its aggregate, destination and payload schema.
// Topic is used by Pub/Sub, RoutingKey by the AMQP exchange.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	RoutingKey     string
	PayloadFactory func() any
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// orderEvents lists every event the order aggregate emits, keyed for both brokers.
var orderEvents = []struct {
	eventType  enums.OutboxEventType
	routingKey string
	newPayload func() any
}{
	{enums.EventOrderCreated, "order.created", func() any { return &payloads.OrderCreatedEvent{} }},
	{enums.EventOrderStatusChanged, "order.status_changed", func() any { return &payloads.OrderStatusChangedEvent{} }},
}

// NewEventRegistry builds the registry for order events published to ordersTopic.
func NewEventRegistry(ordersTopic string) (*EventRegistry, error) {
	topic := strings.TrimSpace(ordersTopic)
	if topic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(orderEvents))}
	for _, ev := range orderEvents {
		reg.entries[ev.eventType] = EventDescriptor{
			EventType:      ev.eventType,
			AggregateType:  enums.AggregateOrder,
			Topic:          topic,
			RoutingKey:     ev.routingKey,
			PayloadFactory: ev.newPayload,
		}
	}
	return reg, nil
}

// Resolve checks the row against its descriptor and decodes the typed payload.
// Every failure is non-retryable: a malformed row never becomes valid.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.describe(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	envelope, err := decodeEnvelope(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func (r *EventRegistry) describe(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return desc, fmt.Errorf("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return desc, fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return desc, fmt.Errorf("missing aggregate_id")
	}
	return desc, nil
}

func decodeEnvelope(event models.OutboxEvent) (outbox.PayloadEnvelope, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return envelope, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.EventType != "" && envelope.EventType != event.EventType {
		return envelope, fmt.Errorf("envelope event type %s does not match row %s", envelope.EventType, event.EventType)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return envelope, fmt.Errorf("payload missing for %s", event.EventType)
	}
	if envelope.EventID == "" {
		envelope.EventID = event.ID.String()
	}
	return envelope, nil
}
