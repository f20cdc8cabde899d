package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mark-4989/restaurant-service-go/internal/dedup"
	"github.com/mark-4989/restaurant-service-go/internal/notification"
)

type fakeNotifier struct {
	stored []notification.Notification
	sent   []notification.Notification
	err    error
}

func (f *fakeNotifier) Notify(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if f.err != nil {
		return notification.Notification{}, f.err
	}
	f.stored = append(f.stored, n)
	f.sent = append(f.sent, n)
	return n, nil
}

func (f *fakeNotifier) StoreWithTx(ctx context.Context, tx pgx.Tx, n notification.Notification) (notification.Notification, error) {
	if f.err != nil {
		return notification.Notification{}, f.err
	}
	f.stored = append(f.stored, n)
	return n, nil
}

func (f *fakeNotifier) Push(n notification.Notification) {
	f.sent = append(f.sent, n)
}

func envelopeBody(t *testing.T, name, partition string, seq int64, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(EventEnvelope{
		EventName: name, EventVersion: 1, EventID: "e1", PartitionKey: partition,
		Sequence: seq, OccurredAt: time.Now(), Payload: raw,
	})
	require.NoError(t, err)
	return body
}

func TestDeliveryStatusChangedHandlerNotifiesAndAdvances(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT last_sequence FROM event_dedup_checkpoint`).
		WithArgs(DeliveryStatusNotifierName, "delivery:o1").
		WillReturnRows(mock.NewRows([]string{"last_sequence"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO event_dedup_checkpoint`).
		WithArgs(DeliveryStatusNotifierName, "delivery:o1", int64(2)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	notifier := &fakeNotifier{}
	h := DeliveryStatusChangedHandler(mock, dedup.NewRepository(mock), notifier, zap.NewNop(), DeliveryStatusNotifierName)

	body := envelopeBody(t, EventDeliveryStatusChanged, "delivery:o1", 2, DeliveryStatusChangedPayload{
		OrderID: "o1", UserID: "u1", DeliveryStatus: "on-the-way",
	})
	require.NoError(t, h(context.Background(), body))

	require.Len(t, notifier.sent, 1)
	require.Equal(t, "u1", notifier.sent[0].UserID)
	require.Equal(t, "On the way", notifier.sent[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryStatusChangedHandlerSkipsDuplicates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT last_sequence FROM event_dedup_checkpoint`).
		WithArgs(DeliveryStatusNotifierName, "delivery:o1").
		WillReturnRows(mock.NewRows([]string{"last_sequence"}).AddRow(int64(5)))
	mock.ExpectRollback()

	notifier := &fakeNotifier{}
	h := DeliveryStatusChangedHandler(mock, dedup.NewRepository(mock), notifier, zap.NewNop(), DeliveryStatusNotifierName)

	body := envelopeBody(t, EventDeliveryStatusChanged, "delivery:o1", 3, DeliveryStatusChangedPayload{
		OrderID: "o1", UserID: "u1", DeliveryStatus: "picked-up",
	})
	require.NoError(t, h(context.Background(), body))
	require.Empty(t, notifier.stored)
	require.Empty(t, notifier.sent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStatusChangedHandlerNotifyFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT last_sequence FROM event_dedup_checkpoint`).
		WithArgs(OrderStatusNotifierName, "order-status:o1").
		WillReturnRows(mock.NewRows([]string{"last_sequence"}))
	mock.ExpectRollback()

	notifier := &fakeNotifier{err: errors.New("db down")}
	h := OrderStatusChangedHandler(mock, dedup.NewRepository(mock), notifier, zap.NewNop(), OrderStatusNotifierName)

	body := envelopeBody(t, EventOrderStatusChanged, "order-status:o1", 1, OrderStatusChangedPayload{
		OrderID: "o1", UserID: "u1", OrderType: "pickup", Status: "ready",
	})
	require.ErrorContains(t, h(context.Background(), body), "db down")
	require.Empty(t, notifier.sent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerCheckpointFailureDoesNotPush(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT last_sequence FROM event_dedup_checkpoint`).
		WithArgs(DeliveryStatusNotifierName, "delivery:o1").
		WillReturnRows(mock.NewRows([]string{"last_sequence"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO event_dedup_checkpoint`).
		WithArgs(DeliveryStatusNotifierName, "delivery:o1", int64(2)).
		WillReturnError(errors.New("checkpoint write failed"))
	mock.ExpectRollback()

	notifier := &fakeNotifier{}
	h := DeliveryStatusChangedHandler(mock, dedup.NewRepository(mock), notifier, zap.NewNop(), DeliveryStatusNotifierName)

	body := envelopeBody(t, EventDeliveryStatusChanged, "delivery:o1", 2, DeliveryStatusChangedPayload{
		OrderID: "o1", UserID: "u1", DeliveryStatus: "delivered",
	})
	require.Error(t, h(context.Background(), body))
	require.Len(t, notifier.stored, 1)
	require.Empty(t, notifier.sent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderStatusChangedHandlerLegacyBody(t *testing.T) {
	notifier := &fakeNotifier{}
	h := OrderStatusChangedHandler(nil, nil, notifier, zap.NewNop(), OrderStatusNotifierName)

	body, err := json.Marshal(OrderStatusChangedPayload{
		EventType: EventOrderStatusChanged, OrderID: "o1", UserID: "u1", OrderType: "dine-in", Status: "ready",
	})
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), body))
	require.Len(t, notifier.sent, 1)
	require.Contains(t, notifier.sent[0].Message, "your table")
}

func TestOrderStatusChangedHandlerSkipsDeliveryCompletion(t *testing.T) {
	notifier := &fakeNotifier{}
	h := OrderStatusChangedHandler(nil, nil, notifier, zap.NewNop(), OrderStatusNotifierName)

	body, err := json.Marshal(OrderStatusChangedPayload{OrderID: "o1", UserID: "u1", OrderType: "delivery", Status: "completed"})
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), body))
	require.Empty(t, notifier.sent)
}

func TestHandlerRejectsMissingOrderID(t *testing.T) {
	h := DeliveryStatusChangedHandler(nil, nil, &fakeNotifier{}, zap.NewNop(), DeliveryStatusNotifierName)
	require.ErrorContains(t, h(context.Background(), []byte(`{"deliveryStatus":"assigned"}`)), "missing orderId")
}
