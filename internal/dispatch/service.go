package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/mark-4989/restaurant-service-go/internal/driver"
	"github.com/mark-4989/restaurant-service-go/internal/geo"
	"github.com/mark-4989/restaurant-service-go/internal/order"
	"github.com/mark-4989/restaurant-service-go/internal/realtime"
)

var (
	ErrNotDeliveryOrder  = errors.New("order is not a delivery order")
	ErrDriverUnavailable = errors.New("driver is not available")
)

type Publisher interface {
	PublishDeliveryStatusChanged(ctx context.Context, o order.Order, previous order.DeliveryStatus) error
}

type Broadcaster interface {
	Broadcast(room, event string, data any)
}

type Config struct {
	// Origin is where drivers collect orders; auto-assignment searches
	// around it.
	Origin geo.Point
	// MaxRadiusMeters bounds the search. Zero or less searches everywhere.
	MaxRadiusMeters float64
}

type Service struct {
	orders  order.TransactionalRepository
	drivers driver.TransactionalRepository
	pub     Publisher
	rooms   Broadcaster
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(orders order.TransactionalRepository, drivers driver.TransactionalRepository, pub Publisher, rooms Broadcaster, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	if rooms == nil {
		rooms = nopBroadcaster{}
	}
	return &Service{
		orders:  orders,
		drivers: drivers,
		pub:     pub,
		rooms:   rooms,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// AssignDriver hands orderID to driverID. Reassigning an order that is
// still waiting for pickup frees the previous driver.
func (s *Service) AssignDriver(ctx context.Context, orderID, driverID string) (order.Order, error) {
	return s.assign(ctx, orderID, func(tx pgx.Tx, o order.Order) (driver.Driver, error) {
		d, err := s.drivers.GetForUpdate(ctx, tx, driverID)
		if err != nil {
			return driver.Driver{}, err
		}
		if !d.Assignable(o.ID) {
			return driver.Driver{}, fmt.Errorf("%w: %s", ErrDriverUnavailable, d.ID)
		}
		return d, nil
	})
}

// AutoAssign picks the nearest available driver to the configured origin.
func (s *Service) AutoAssign(ctx context.Context, orderID string) (order.Order, error) {
	return s.assign(ctx, orderID, func(tx pgx.Tx, o order.Order) (driver.Driver, error) {
		n, err := s.drivers.FindNearestAvailableWithTx(ctx, tx, s.cfg.Origin, s.cfg.MaxRadiusMeters)
		if err != nil {
			return driver.Driver{}, err
		}
		s.logger.Debug("nearest driver",
			zap.String("order_id", o.ID),
			zap.String("driver_id", n.ID),
			zap.Float64("distance_m", n.DistanceMeters),
		)
		return n.Driver, nil
	})
}

type pickDriver func(tx pgx.Tx, o order.Order) (driver.Driver, error)

func (s *Service) assign(ctx context.Context, orderID string, pick pickDriver) (order.Order, error) {
	tx, err := s.orders.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return order.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.orders.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if !o.IsDelivery() {
		return order.Order{}, ErrNotDeliveryOrder
	}
	if o.Status.Terminal() || !o.DeliveryStatus.Assignable() {
		return order.Order{}, fmt.Errorf("%w: cannot assign a driver once %s", order.ErrInvalidTransition, o.DeliveryStatus)
	}

	d, err := pick(tx, o)
	if err != nil {
		return order.Order{}, err
	}

	if o.DriverID != "" && o.DriverID != d.ID {
		if err := s.drivers.ReleaseWithTx(ctx, tx, o.DriverID, o.ID); err != nil {
			return order.Order{}, err
		}
	}
	if err := s.drivers.AssignWithTx(ctx, tx, d.ID, o.ID); err != nil {
		return order.Order{}, err
	}

	previous := o.DeliveryStatus
	o.DriverID = d.ID
	o.DeliveryStatus = order.DeliveryAssigned
	if err := s.orders.SaveDeliveryWithTx(ctx, tx, &o); err != nil {
		return order.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("commit assignment: %w", err)
	}

	s.logger.Info("driver assigned",
		zap.String("order_id", o.ID),
		zap.String("driver_id", d.ID),
	)
	s.rooms.Broadcast(realtime.DriverRoom(d.ID), realtime.EventDeliveryAssigned, o)
	s.announce(ctx, o, previous)
	return o, nil
}

// UpdateDeliveryStatus moves a delivery one step forward. Delivering the
// order completes it and frees the driver.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, orderID string, next order.DeliveryStatus) (order.Order, error) {
	if !next.Valid() {
		return order.Order{}, fmt.Errorf("%w: unknown delivery status %q", order.ErrInvalid, next)
	}

	tx, err := s.orders.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return order.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.orders.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if !o.IsDelivery() {
		return order.Order{}, ErrNotDeliveryOrder
	}
	if o.Status == order.StatusCancelled {
		return order.Order{}, fmt.Errorf("%w: order is cancelled", order.ErrInvalidTransition)
	}
	expected, ok := o.DeliveryStatus.Next()
	if !ok || expected != next {
		return order.Order{}, fmt.Errorf("%w: %s -> %s", order.ErrInvalidTransition, o.DeliveryStatus, next)
	}
	if o.DriverID == "" {
		return order.Order{}, fmt.Errorf("%w: no driver assigned", order.ErrInvalidTransition)
	}

	previous := o.DeliveryStatus
	o.DeliveryStatus = next
	if next == order.DeliveryDelivered {
		o.Status = order.StatusCompleted
		if err := s.drivers.ReleaseWithTx(ctx, tx, o.DriverID, o.ID); err != nil {
			return order.Order{}, err
		}
	}
	if err := s.orders.SaveDeliveryWithTx(ctx, tx, &o); err != nil {
		return order.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("commit delivery status: %w", err)
	}

	s.logger.Info("delivery status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
	)
	s.announce(ctx, o, previous)
	return o, nil
}

func (s *Service) announce(ctx context.Context, o order.Order, previous order.DeliveryStatus) {
	s.rooms.Broadcast(realtime.OrderRoom(o.ID), realtime.EventDeliveryStatus, StatusUpdate{
		OrderID:        o.ID,
		Status:         o.Status,
		DeliveryStatus: o.DeliveryStatus,
		Previous:       previous,
		DriverID:       o.DriverID,
	})
	s.rooms.Broadcast(realtime.AdminRoom, realtime.EventOrderUpdated, o)
	if err := s.pub.PublishDeliveryStatusChanged(ctx, o, previous); err != nil {
		s.logger.Warn("publish delivery status changed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// UpdateLocation stores a driver position and fans it out to whoever is
// tracking that driver or its current order.
func (s *Service) UpdateLocation(ctx context.Context, driverID string, p geo.Point) (driver.Driver, error) {
	if err := p.Validate(); err != nil {
		return driver.Driver{}, fmt.Errorf("%w: %v", driver.ErrInvalid, err)
	}
	d, err := s.drivers.UpdateLocation(ctx, driverID, p)
	if err != nil {
		return driver.Driver{}, err
	}

	at := s.now().UTC()
	if d.LocationUpdatedAt != nil {
		at = d.LocationUpdatedAt.UTC()
	}
	update := LocationUpdate{DriverID: d.ID, OrderID: d.CurrentOrderID, Lat: p.Lat, Lng: p.Lng, At: at}

	s.rooms.Broadcast(realtime.DriverRoom(d.ID), realtime.EventDriverLocation, update)
	s.rooms.Broadcast(realtime.AdminRoom, realtime.EventDriverLocation, update)
	if d.CurrentOrderID != "" {
		s.rooms.Broadcast(realtime.OrderRoom(d.CurrentOrderID), realtime.EventDriverLocation, update)
	}
	return d, nil
}

func (s *Service) Tracking(ctx context.Context, orderID string) (Tracking, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Tracking{}, err
	}
	if !o.IsDelivery() {
		return Tracking{}, ErrNotDeliveryOrder
	}

	t := Tracking{
		OrderID:        o.ID,
		Status:         o.Status,
		DeliveryStatus: o.DeliveryStatus,
		Destination:    o.DeliveryAddress,
	}
	if o.DriverID == "" {
		return t, nil
	}

	d, err := s.drivers.Get(ctx, o.DriverID)
	if err != nil {
		return Tracking{}, fmt.Errorf("load driver %s: %w", o.DriverID, err)
	}
	t.Driver = &DriverSummary{
		ID:                d.ID,
		Name:              d.Name,
		Phone:             d.Phone,
		Vehicle:           d.Vehicle,
		Location:          d.Location,
		LocationUpdatedAt: d.LocationUpdatedAt,
	}
	if d.Location != nil && o.DeliveryAddress != nil && o.DeliveryStatus != order.DeliveryDelivered {
		km := geo.DistanceKm(*d.Location, o.DeliveryAddress.Location)
		t.RemainingKm = &km
	}
	return t, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishDeliveryStatusChanged(context.Context, order.Order, order.DeliveryStatus) error {
	return nil
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, string, any) {}
