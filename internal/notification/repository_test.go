package notification

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_ListForUserUnread(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`FROM notifications WHERE user_id=\$1 AND \(NOT \$2 OR NOT read\)`).
		WithArgs("u1", true, 50).
		WillReturnRows(mock.NewRows([]string{"id", "user_id", "order_id", "kind", "title", "message", "read", "created_at"}).
			AddRow("n1", "u1", "o1", "delivery-status", "On the way", "Order #o1 is on the way to you.", false, now))

	out, err := NewPostgresRepository(mock).ListForUser(context.Background(), "u1", true, 50)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, KindDeliveryStatus, out[0].Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_MarkReadMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE notifications SET read=true WHERE id=\$1`).
		WithArgs("nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, NewPostgresRepository(mock).MarkRead(context.Background(), "nope"), ErrNotFound)
}

func TestPostgresRepository_MarkAllRead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE notifications SET read=true WHERE user_id=\$1 AND NOT read`).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := NewPostgresRepository(mock).MarkAllRead(context.Background(), "u1")
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestPostgresRepository_MarkReadMalformedID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE notifications SET read=true WHERE id=\$1`).
		WithArgs("n1").
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	require.ErrorIs(t, NewPostgresRepository(mock).MarkRead(context.Background(), "n1"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
