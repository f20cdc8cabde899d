package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mark-4989/restaurant-service-go/internal/order"
)

// Sequencer hands out per-partition sequence numbers.
type Sequencer interface {
	Next(ctx context.Context, partitionKey string) (int64, error)
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	ch                 channel
	seq                Sequencer
	publishEnveloped   bool
	producerIdentifier string
	now                func() time.Time
}

type PublisherOptions struct {
	PublishEnveloped bool
	Producer         string
}

func NewPublisher(conn *amqp.Connection, seq Sequencer, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, seq, opts), nil
}

func newPublisher(ch channel, seq Sequencer, opts PublisherOptions) *Publisher {
	producer := opts.Producer
	if producer == "" {
		producer = serviceName
	}
	return &Publisher{
		ch:                 ch,
		seq:                seq,
		publishEnveloped:   opts.PublishEnveloped,
		producerIdentifier: producer,
		now:                time.Now,
	}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishOrderStatusChanged(ctx context.Context, o order.Order, previous order.Status) error {
	payload := orderStatusPayload(o, previous, p.now().UTC())
	legacy := payload
	legacy.EventType = EventOrderStatusChanged
	return p.publish(ctx, outgoing{
		routingKey:   OrderStatusChangedRoutingKey,
		name:         EventOrderStatusChanged,
		schema:       orderStatusChangedSchema,
		partitionKey: "order-status:" + o.ID,
		occurredAt:   payload.Timestamp,
		payload:      payload,
		legacy:       legacy,
	})
}

func (p *Publisher) PublishDeliveryStatusChanged(ctx context.Context, o order.Order, previous order.DeliveryStatus) error {
	payload := deliveryStatusPayload(o, previous, p.now().UTC())
	legacy := payload
	legacy.EventType = EventDeliveryStatusChanged
	return p.publish(ctx, outgoing{
		routingKey:   DeliveryStatusChangedRoutingKey,
		name:         EventDeliveryStatusChanged,
		schema:       deliveryStatusChangedSchema,
		partitionKey: "delivery:" + o.ID,
		occurredAt:   payload.Timestamp,
		payload:      payload,
		legacy:       legacy,
	})
}

func orderStatusPayload(o order.Order, previous order.Status, at time.Time) OrderStatusChangedPayload {
	return OrderStatusChangedPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		OrderType:      string(o.Type),
		Status:         string(o.Status),
		PreviousStatus: string(previous),
		DeliveryStatus: string(o.DeliveryStatus),
		Total:          o.Total.StringFixed(2),
		Timestamp:      at,
	}
}

func deliveryStatusPayload(o order.Order, previous order.DeliveryStatus, at time.Time) DeliveryStatusChangedPayload {
	return DeliveryStatusChangedPayload{
		OrderID:                o.ID,
		UserID:                 o.UserID,
		DriverID:               o.DriverID,
		DeliveryStatus:         string(o.DeliveryStatus),
		PreviousDeliveryStatus: string(previous),
		OrderStatus:            string(o.Status),
		Timestamp:              at,
	}
}

type outgoing struct {
	routingKey   string
	name         string
	schema       string
	partitionKey string
	occurredAt   time.Time
	payload      any
	// legacy is the bare body sent when enveloping is off.
	legacy any
}

func (p *Publisher) publish(ctx context.Context, m outgoing) error {
	if !p.publishEnveloped {
		body, err := json.Marshal(m.legacy)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", m.name, err)
		}
		return p.publishJSON(ctx, m.routingKey, body)
	}

	seq, err := p.seq.Next(ctx, m.partitionKey)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	raw, err := json.Marshal(m.payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", m.name, err)
	}

	env := EventEnvelope{
		EventName:     m.name,
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: CorrelationID(ctx),
		Producer:      p.producerIdentifier,
		PartitionKey:  m.partitionKey,
		Sequence:      seq,
		OccurredAt:    m.occurredAt,
		Schema:        m.schema,
		Payload:       raw,
	}
	if env.CorrelationID == "" {
		env.CorrelationID = env.EventID
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", m.name, err)
	}
	return p.publishJSON(ctx, m.routingKey, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
