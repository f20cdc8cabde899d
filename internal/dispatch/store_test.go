package dispatch

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/mark-4989/restaurant-service-go/internal/driver"
	"github.com/mark-4989/restaurant-service-go/internal/geo"
	"github.com/mark-4989/restaurant-service-go/internal/order"
)

// memStore backs both fake repositories. Writes made through a tx are
// only visible after Commit.
type memStore struct {
	mu      sync.Mutex
	orders  map[string]order.Order
	drivers map[string]driver.Driver
	commits int
}

func newMemStore() *memStore {
	return &memStore{orders: map[string]order.Order{}, drivers: map[string]driver.Driver{}}
}

type memTx struct {
	pgx.Tx
	store   *memStore
	orders  map[string]order.Order
	drivers map[string]driver.Driver
	done    bool
}

func (s *memStore) begin() *memTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{store: s, orders: map[string]order.Order{}, drivers: map[string]driver.Driver{}}
	for k, v := range s.orders {
		tx.orders[k] = v
	}
	for k, v := range s.drivers {
		tx.drivers[k] = v
	}
	return tx
}

func (t *memTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.orders = t.orders
	t.store.drivers = t.drivers
	t.store.commits++
	t.done = true
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

type fakeOrders struct {
	order.Repository
	store *memStore
}

func (f fakeOrders) Get(ctx context.Context, id string) (order.Order, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	o, ok := f.store.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (f fakeOrders) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return f.store.begin(), nil
}

func (f fakeOrders) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (order.Order, error) {
	o, ok := tx.(*memTx).orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (f fakeOrders) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, o *order.Order, next order.Status) error {
	orders := tx.(*memTx).orders
	if orders[o.ID].Status != o.Status {
		return order.ErrStaleStatus
	}
	o.Status = next
	orders[o.ID] = *o
	return nil
}

func (f fakeOrders) SaveDeliveryWithTx(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	tx.(*memTx).orders[o.ID] = *o
	return nil
}

type fakeDrivers struct {
	driver.Repository
	store *memStore
}

func (f fakeDrivers) Get(ctx context.Context, id string) (driver.Driver, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	d, ok := f.store.drivers[id]
	if !ok {
		return driver.Driver{}, driver.ErrNotFound
	}
	return d, nil
}

func (f fakeDrivers) UpdateLocation(ctx context.Context, id string, p geo.Point) (driver.Driver, error) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	d, ok := f.store.drivers[id]
	if !ok || !d.Active {
		return driver.Driver{}, driver.ErrNotFound
	}
	d.Location = &p
	f.store.drivers[id] = d
	return d, nil
}

func (f fakeDrivers) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return f.store.begin(), nil
}

func (f fakeDrivers) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (driver.Driver, error) {
	d, ok := tx.(*memTx).drivers[id]
	if !ok {
		return driver.Driver{}, driver.ErrNotFound
	}
	return d, nil
}

func (f fakeDrivers) FindNearestAvailableWithTx(ctx context.Context, tx pgx.Tx, p geo.Point, maxMeters float64) (driver.Nearby, error) {
	var (
		best  driver.Driver
		bestM = -1.0
	)
	for _, d := range tx.(*memTx).drivers {
		if !d.Active || !d.Available || d.Location == nil {
			continue
		}
		m := geo.DistanceKm(p, *d.Location) * 1000
		if maxMeters > 0 && m > maxMeters {
			continue
		}
		if bestM < 0 || m < bestM {
			best, bestM = d, m
		}
	}
	if bestM < 0 {
		return driver.Nearby{}, driver.ErrNoDriverAvailable
	}
	return driver.Nearby{Driver: best, DistanceMeters: bestM}, nil
}

func (f fakeDrivers) AssignWithTx(ctx context.Context, tx pgx.Tx, driverID, orderID string) error {
	drivers := tx.(*memTx).drivers
	d, ok := drivers[driverID]
	if !ok {
		return driver.ErrNotFound
	}
	d.Available = false
	d.CurrentOrderID = orderID
	drivers[driverID] = d
	return nil
}

func (f fakeDrivers) ReleaseWithTx(ctx context.Context, tx pgx.Tx, driverID, orderID string) error {
	drivers := tx.(*memTx).drivers
	d, ok := drivers[driverID]
	if !ok || d.CurrentOrderID != orderID {
		return nil
	}
	d.Available = d.Active
	d.CurrentOrderID = ""
	drivers[driverID] = d
	return nil
}
