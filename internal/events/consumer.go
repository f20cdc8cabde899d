package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// HandlerFunc processes one message body. Returning an error rejects the
// message, which dead-letters it.
type HandlerFunc func(ctx context.Context, body []byte) error

// Dial connects to RabbitMQ, retrying while the broker starts up.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= 10; attempt++ {
		conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
		if err == nil {
			return conn, nil
		}
		lastErr = err
		logger.Warn("rabbitmq not ready", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, fmt.Errorf("connect to RabbitMQ: %w", lastErr)
}

type Consumer struct {
	conn       *amqp.Connection
	queue      string
	routingKey string
	handler    HandlerFunc
	logger     *zap.Logger
}

func NewConsumer(conn *amqp.Connection, routingKey string, handler HandlerFunc, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:       conn,
		queue:      serviceQueue(routingKey),
		routingKey: routingKey,
		handler:    handler,
		logger:     logger.With(zap.String("queue", serviceQueue(routingKey))),
	}
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declareEventsExchange(ch); err != nil {
		return fmt.Errorf("declare events exchange: %w", err)
	}
	if err := declareQueue(ch, c.queue, c.routingKey); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(
		c.queue,
		serviceName, // consumer tag
		false,       // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping consumer")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer %s: delivery channel closed", c.queue)
			}
			if err := c.handler(ctx, msg.Body); err != nil {
				c.logger.Error("handle message", zap.String("message_id", msg.MessageId), zap.Error(err))
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}
