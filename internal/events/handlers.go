package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/mark-4989/restaurant-service-go/internal/dedup"
	"github.com/mark-4989/restaurant-service-go/internal/notification"
)

const (
	OrderStatusNotifierName    = "restaurant-order-status-notifier"
	DeliveryStatusNotifierName = "restaurant-delivery-status-notifier"
)

// Notifier delivers customer notifications. StoreWithTx writes inside the
// checkpoint transaction; Push runs once it has committed.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notification) (notification.Notification, error)
	StoreWithTx(ctx context.Context, tx pgx.Tx, n notification.Notification) (notification.Notification, error)
	Push(n notification.Notification)
}

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// OrderStatusChangedHandler turns order status events into customer
// notifications, skipping replays by sequence.
func OrderStatusChangedHandler(db TxBeginner, dedupRepo *dedup.Repository, notifier Notifier, logger *zap.Logger, consumerName string) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var payload OrderStatusChangedPayload
		env, err := decodeMessage(body, EventOrderStatusChanged, 1, &payload)
		if err != nil {
			return err
		}
		if payload.OrderID == "" {
			return fmt.Errorf("missing orderId")
		}
		n, ok := orderStatusNotification(payload)
		return processOnce(ctx, db, dedupRepo, notifier, logger, consumerName, env, payload.OrderID, n, ok)
	}
}

func DeliveryStatusChangedHandler(db TxBeginner, dedupRepo *dedup.Repository, notifier Notifier, logger *zap.Logger, consumerName string) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var payload DeliveryStatusChangedPayload
		env, err := decodeMessage(body, EventDeliveryStatusChanged, 1, &payload)
		if err != nil {
			return err
		}
		if payload.OrderID == "" {
			return fmt.Errorf("missing orderId")
		}
		n, ok := deliveryStatusNotification(payload)
		return processOnce(ctx, db, dedupRepo, notifier, logger, consumerName, env, payload.OrderID, n, ok)
	}
}

// processOnce stores n unless the envelope sequence was already handled
// for its partition. The notification and the checkpoint commit together;
// the push to the customer follows the commit. send=false still advances
// the checkpoint.
func processOnce(ctx context.Context, db TxBeginner, dedupRepo *dedup.Repository, notifier Notifier, logger *zap.Logger, consumerName string, env *EventEnvelope, orderID string, n notification.Notification, send bool) error {
	if env == nil || env.Sequence == 0 {
		return notify(ctx, notifier, orderID, n, send)
	}

	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	local := dedupRepo.WithExecutor(tx)
	verdict, last, err := local.Check(ctx, consumerName, env.PartitionKey, env.Sequence)
	if err != nil {
		return err
	}
	switch verdict {
	case dedup.Duplicate:
		logger.Info("skip duplicate event",
			zap.String("order_id", orderID),
			zap.String("partition", env.PartitionKey),
			zap.Int64("seq", env.Sequence),
			zap.Int64("last", last),
		)
		return nil
	case dedup.Gap:
		logger.Warn("sequence gap",
			zap.String("partition", env.PartitionKey),
			zap.Int64("seq", env.Sequence),
			zap.Int64("last", last),
		)
	}

	if send {
		if n, err = notifier.StoreWithTx(ctx, tx, n); err != nil {
			return fmt.Errorf("notify order %s: %w", orderID, err)
		}
	}
	if err := local.Advance(ctx, consumerName, env.PartitionKey, env.Sequence); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	if send {
		notifier.Push(n)
	}
	return nil
}

func notify(ctx context.Context, notifier Notifier, orderID string, n notification.Notification, send bool) error {
	if !send {
		return nil
	}
	if _, err := notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("notify order %s: %w", orderID, err)
	}
	return nil
}

func notifyOrderStatus(ctx context.Context, notifier Notifier, p OrderStatusChangedPayload) error {
	n, ok := orderStatusNotification(p)
	return notify(ctx, notifier, p.OrderID, n, ok)
}

func notifyDeliveryStatus(ctx context.Context, notifier Notifier, p DeliveryStatusChangedPayload) error {
	n, ok := deliveryStatusNotification(p)
	return notify(ctx, notifier, p.OrderID, n, ok)
}

func orderStatusNotification(p OrderStatusChangedPayload) (notification.Notification, bool) {
	if p.UserID == "" {
		return notification.Notification{}, false
	}
	// Delivery orders are completed by the courier; the delivery event
	// already tells the customer.
	if p.OrderType == "delivery" && p.Status == "completed" {
		return notification.Notification{}, false
	}
	return notification.ForOrderStatus(p.UserID, p.OrderID, p.Status, p.OrderType)
}

func deliveryStatusNotification(p DeliveryStatusChangedPayload) (notification.Notification, bool) {
	if p.UserID == "" {
		return notification.Notification{}, false
	}
	return notification.ForDeliveryStatus(p.UserID, p.OrderID, p.DeliveryStatus)
}
