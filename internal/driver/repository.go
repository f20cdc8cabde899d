package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mark-4989/restaurant-service-go/internal/geo"
)

var (
	ErrNotFound          = errors.New("driver not found")
	ErrInvalid           = errors.New("invalid driver")
	ErrBusy              = errors.New("driver has an active delivery")
	ErrNoDriverAvailable = errors.New("no driver available")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	Create(ctx context.Context, d *Driver) error
	Get(ctx context.Context, id string) (Driver, error)
	List(ctx context.Context, f Filter) ([]Driver, error)
	Update(ctx context.Context, d *Driver) error
	Deactivate(ctx context.Context, id string) error
	SetAvailability(ctx context.Context, id string, available bool) (Driver, error)
	UpdateLocation(ctx context.Context, id string, p geo.Point) (Driver, error)
	FindNearestAvailable(ctx context.Context, p geo.Point, maxMeters float64) (Nearby, error)
}

// TransactionalRepository is used by dispatch to change drivers and orders
// under the same row locks.
type TransactionalRepository interface {
	Repository
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Driver, error)
	FindNearestAvailableWithTx(ctx context.Context, tx pgx.Tx, p geo.Point, maxMeters float64) (Nearby, error)
	AssignWithTx(ctx context.Context, tx pgx.Tx, driverID, orderID string) error
	// ReleaseWithTx makes the driver available again if it still carries
	// orderID.
	ReleaseWithTx(ctx context.Context, tx pgx.Tx, driverID, orderID string) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const driverColumns = `id, name, phone, vehicle, active, available,
	ST_Y(location::geometry), ST_X(location::geometry), location_updated_at,
	COALESCE(current_order_id::text, ''), created_at, updated_at`

const selectDriver = `SELECT ` + driverColumns + ` FROM drivers`

func scanDriver(row pgx.Row, extra ...any) (Driver, error) {
	var (
		d        Driver
		lat, lng *float64
	)
	dest := []any{
		&d.ID, &d.Name, &d.Phone, &d.Vehicle, &d.Active, &d.Available,
		&lat, &lng, &d.LocationUpdatedAt, &d.CurrentOrderID, &d.CreatedAt, &d.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Driver{}, err
	}
	if lat != nil && lng != nil {
		d.Location = &geo.Point{Lat: *lat, Lng: *lng}
	}
	return d, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) || malformedID(err) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

// malformedID reports SQLSTATE 22P02, which Postgres raises when an id
// parameter is not a valid UUID. No row can match such an id.
func malformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func (r *PostgresRepository) Create(ctx context.Context, d *Driver) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO drivers (id, name, phone, vehicle, active, available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, d.ID, d.Name, d.Phone, d.Vehicle, d.Active, d.Available).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert driver: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Driver, error) {
	d, err := scanDriver(r.pool.QueryRow(ctx, selectDriver+` WHERE id=$1`, id))
	if err != nil {
		return Driver{}, notFound(err, "select driver")
	}
	return d, nil
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Driver, error) {
	var where []string
	if !f.IncludeInactive {
		where = append(where, "active")
	}
	if f.AvailableOnly {
		where = append(where, "available")
	}
	q := selectDriver
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY name, id"

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select drivers: %w", err)
	}
	defer rows.Close()

	drivers := []Driver{}
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return drivers, nil
}

func (r *PostgresRepository) Update(ctx context.Context, d *Driver) error {
	updated, err := scanDriver(r.pool.QueryRow(ctx, `
		UPDATE drivers SET name=$2, phone=$3, vehicle=$4, updated_at=now()
		WHERE id=$1
		RETURNING `+driverColumns, d.ID, d.Name, d.Phone, d.Vehicle))
	if err != nil {
		return notFound(err, "update driver")
	}
	*d = updated
	return nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE drivers SET active=false, available=false, updated_at=now()
		WHERE id=$1 AND current_order_id IS NULL
	`, id)
	if malformedID(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deactivate driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainMiss(ctx, id)
	}
	return nil
}

func (r *PostgresRepository) SetAvailability(ctx context.Context, id string, available bool) (Driver, error) {
	d, err := scanDriver(r.pool.QueryRow(ctx, `
		UPDATE drivers SET available=$2, updated_at=now()
		WHERE id=$1 AND active AND (NOT $2 OR current_order_id IS NULL)
		RETURNING `+driverColumns, id, available))
	if err == nil {
		return d, nil
	}
	if malformedID(err) {
		return Driver{}, ErrNotFound
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Driver{}, fmt.Errorf("set availability: %w", err)
	}
	return Driver{}, r.explainMiss(ctx, id)
}

// explainMiss turns a conditional update that matched no row into the
// reason it did not match.
func (r *PostgresRepository) explainMiss(ctx context.Context, id string) error {
	d, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.Busy() {
		return ErrBusy
	}
	return fmt.Errorf("%w: driver is inactive", ErrInvalid)
}

func (r *PostgresRepository) UpdateLocation(ctx context.Context, id string, p geo.Point) (Driver, error) {
	d, err := scanDriver(r.pool.QueryRow(ctx, `
		UPDATE drivers
		SET location = ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography,
			location_updated_at = now(),
			updated_at = now()
		WHERE id=$1 AND active
		RETURNING `+driverColumns, id, p.Lng, p.Lat))
	if err == nil {
		return d, nil
	}
	if malformedID(err) {
		return Driver{}, ErrNotFound
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Driver{}, fmt.Errorf("update location: %w", err)
	}
	return Driver{}, r.explainMiss(ctx, id)
}

func (r *PostgresRepository) FindNearestAvailable(ctx context.Context, p geo.Point, maxMeters float64) (Nearby, error) {
	return findNearest(ctx, r.pool, p, maxMeters, "")
}

func (r *PostgresRepository) FindNearestAvailableWithTx(ctx context.Context, tx pgx.Tx, p geo.Point, maxMeters float64) (Nearby, error) {
	return findNearest(ctx, tx, p, maxMeters, " FOR UPDATE SKIP LOCKED")
}

// findNearest orders by the KNN distance operator so the GIST index on
// location serves the lookup. maxMeters <= 0 means no radius limit.
func findNearest(ctx context.Context, q rowQuerier, p geo.Point, maxMeters float64, lock string) (Nearby, error) {
	sql := selectDriverWithDistance + `
		WHERE active AND available AND location IS NOT NULL
			AND ($3::float8 <= 0 OR ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3::float8))
		ORDER BY location <-> ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		LIMIT 1` + lock

	var n Nearby
	d, err := scanDriver(q.QueryRow(ctx, sql, p.Lng, p.Lat, maxMeters), &n.DistanceMeters)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Nearby{}, ErrNoDriverAvailable
		}
		return Nearby{}, fmt.Errorf("nearest driver: %w", err)
	}
	n.Driver = d
	return n, nil
}

const selectDriverWithDistance = `SELECT ` + driverColumns + `,
	ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography)
	FROM drivers`

func (r *PostgresRepository) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, txOptions)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Driver, error) {
	d, err := scanDriver(tx.QueryRow(ctx, selectDriver+` WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Driver{}, notFound(err, "lock driver")
	}
	return d, nil
}

func (r *PostgresRepository) AssignWithTx(ctx context.Context, tx pgx.Tx, driverID, orderID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE drivers SET available=false, current_order_id=$2, updated_at=now()
		WHERE id=$1
	`, driverID, orderID)
	if err != nil {
		return fmt.Errorf("assign driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ReleaseWithTx(ctx context.Context, tx pgx.Tx, driverID, orderID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE drivers SET available=active, current_order_id=NULL, updated_at=now()
		WHERE id=$1 AND current_order_id=$2
	`, driverID, orderID)
	if err != nil {
		return fmt.Errorf("release driver: %w", err)
	}
	return nil
}
