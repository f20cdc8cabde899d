package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mark-4989/restaurant-service-go/internal/geo"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalid           = errors.New("invalid order")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStaleStatus       = errors.New("order status changed concurrently")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
}

// TransactionalRepository exposes row locking for status changes and
// dispatch, which change an order and a driver atomically.
type TransactionalRepository interface {
	Repository
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Order, error)
	// UpdateStatusWithTx moves o from its current status to next, failing
	// with ErrStaleStatus if the stored row no longer allows it.
	UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, o *Order, next Status) error
	SaveDeliveryWithTx(ctx context.Context, tx pgx.Tx, o *Order) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectOrder = `
	SELECT id, user_id, customer_name, customer_phone, order_type, status, delivery_status,
		table_number, scheduled_for, delivery_address, delivery_lat, delivery_lng,
		COALESCE(driver_id::text, ''), subtotal, tax, delivery_fee, total, notes, created_at, updated_at
	FROM orders`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o        Order
		addrLine string
		lat, lng *float64
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CustomerName, &o.CustomerPhone, &o.Type, &o.Status, &o.DeliveryStatus,
		&o.TableNumber, &o.ScheduledFor, &addrLine, &lat, &lng,
		&o.DriverID, &o.Subtotal, &o.Tax, &o.DeliveryFee, &o.Total, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return Order{}, err
	}
	if lat != nil && lng != nil {
		o.DeliveryAddress = &Address{Line: addrLine, Location: geo.Point{Lat: *lat, Lng: *lng}}
	}
	return o, nil
}

// malformedID reports SQLSTATE 22P02, which Postgres raises when an id
// parameter is not a valid UUID. No row can match such an id.
func malformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func (r *PostgresRepository) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		addrLine string
		lat, lng *float64
	)
	if o.DeliveryAddress != nil {
		addrLine = o.DeliveryAddress.Line
		lat, lng = &o.DeliveryAddress.Location.Lat, &o.DeliveryAddress.Location.Lng
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, customer_name, customer_phone, order_type, status, delivery_status,
			table_number, scheduled_for, delivery_address, delivery_lat, delivery_lng,
			subtotal, tax, delivery_fee, total, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`, o.ID, o.UserID, o.CustomerName, o.CustomerPhone, string(o.Type), string(o.Status), string(o.DeliveryStatus),
		o.TableNumber, o.ScheduledFor, addrLine, lat, lng,
		o.Subtotal, o.Tax, o.DeliveryFee, o.Total, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_id, name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.NewString(), o.ID, it.MenuItemID, it.Name, it.Quantity, it.UnitPrice)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || malformedID(err) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("select order: %w", err)
	}
	orders := []Order{o}
	if err := r.loadItems(ctx, r.pool, orders); err != nil {
		return Order{}, err
	}
	return orders[0], nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("order_type=$%d", len(args)))
	}

	q := selectOrder
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if err := r.loadItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadItems fills Items for every order with a single query.
func (r *PostgresRepository) loadItems(ctx context.Context, q querier, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = []Item{}
	}

	rows, err := q.Query(ctx, `
		SELECT order_id, menu_item_id, name, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, name
	`, ids)
	if err != nil {
		return fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      Item
		)
		if err := rows.Scan(&orderID, &it.MenuItemID, &it.Name, &it.Quantity, &it.UnitPrice); err != nil {
			return fmt.Errorf("scan order_item: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return rows.Err()
}

func (r *PostgresRepository) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, txOptions)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx, selectOrder+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || malformedID(err) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

// UpdateStatusWithTx refuses to cancel a delivery that has left the
// restaurant, even if the caller's snapshot is older than the row.
func (r *PostgresRepository) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, o *Order, next Status) error {
	err := tx.QueryRow(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2
			AND ($3 <> 'cancelled' OR order_type <> 'delivery' OR delivery_status IN ('pending', 'assigned'))
		RETURNING updated_at
	`, o.ID, string(o.Status), string(next)).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStaleStatus
		}
		return fmt.Errorf("update order status: %w", err)
	}
	o.Status = next

	orders := []Order{*o}
	if err := r.loadItems(ctx, tx, orders); err != nil {
		return err
	}
	o.Items = orders[0].Items
	return nil
}

// SaveDeliveryWithTx persists the dispatch-owned fields of o.
func (r *PostgresRepository) SaveDeliveryWithTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	var driverID *string
	if o.DriverID != "" {
		driverID = &o.DriverID
	}
	err := tx.QueryRow(ctx, `
		UPDATE orders
		SET driver_id=$2, delivery_status=$3, status=$4, updated_at=now()
		WHERE id=$1
		RETURNING updated_at
	`, o.ID, driverID, string(o.DeliveryStatus), string(o.Status)).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("save delivery: %w", err)
	}
	return nil
}
