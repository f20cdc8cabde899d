package events

import (
	"context"
	"time"

	"github.com/mark-4989/restaurant-service-go/internal/order"
)

// InlinePublisher notifies customers in-process. It stands in for the
// broker when no AMQP URL is configured.
type InlinePublisher struct {
	notifier Notifier
	now      func() time.Time
}

func NewInlinePublisher(notifier Notifier) *InlinePublisher {
	return &InlinePublisher{notifier: notifier, now: time.Now}
}

func (p *InlinePublisher) PublishOrderStatusChanged(ctx context.Context, o order.Order, previous order.Status) error {
	return notifyOrderStatus(ctx, p.notifier, orderStatusPayload(o, previous, p.now().UTC()))
}

func (p *InlinePublisher) PublishDeliveryStatusChanged(ctx context.Context, o order.Order, previous order.DeliveryStatus) error {
	return notifyDeliveryStatus(ctx, p.notifier, deliveryStatusPayload(o, previous, p.now().UTC()))
}
