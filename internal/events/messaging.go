package events

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange     = "restaurant.events"
	DeadLetterExchange = "restaurant.events.dlx"

	OrderStatusChangedRoutingKey    = "order.status.changed.v1"
	DeliveryStatusChangedRoutingKey = "delivery.status.changed.v1"

	serviceName = "restaurant-service"
)

func serviceQueue(routingKey string) string {
	return serviceName + "." + routingKey
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

// declareQueue declares a durable queue bound to routingKey whose rejected
// messages are dead-lettered to "<queue>.dlq".
func declareQueue(ch *amqp.Channel, queue, routingKey string) error {
	if err := ch.ExchangeDeclare(DeadLetterExchange, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	dlq := queue + ".dlq"
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(dlq, queue, DeadLetterExchange, false, nil); err != nil {
		return err
	}

	_, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": queue,
	})
	if err != nil {
		return err
	}
	return ch.QueueBind(queue, routingKey, EventsExchange, false, nil)
}
