package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mark-4989/restaurant-service-go/internal/menu"
	"github.com/mark-4989/restaurant-service-go/internal/realtime"
)

var ErrItemUnavailable = errors.New("menu item unavailable")

// MenuCatalog resolves requested lines to current menu prices.
type MenuCatalog interface {
	GetMany(ctx context.Context, ids []string) (map[string]menu.Item, error)
}

type Publisher interface {
	PublishOrderStatusChanged(ctx context.Context, o Order, previous Status) error
}

type Broadcaster interface {
	Broadcast(room, event string, data any)
}

// DriverReleaser frees the driver carrying a cancelled order inside the
// transaction that cancels it.
type DriverReleaser interface {
	ReleaseWithTx(ctx context.Context, tx pgx.Tx, driverID, orderID string) error
}

type Options struct {
	Pricing     Pricing
	Publisher   Publisher
	Broadcaster Broadcaster
	Drivers     DriverReleaser
	Logger      *zap.Logger
	Now         func() time.Time
}

type Service struct {
	repo    TransactionalRepository
	catalog MenuCatalog
	pricing Pricing
	pub     Publisher
	rooms   Broadcaster
	drivers DriverReleaser
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(repo TransactionalRepository, catalog MenuCatalog, opts Options) *Service {
	s := &Service{
		repo:    repo,
		catalog: catalog,
		pricing: opts.Pricing,
		pub:     opts.Publisher,
		rooms:   opts.Broadcaster,
		drivers: opts.Drivers,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if s.pub == nil {
		s.pub = nopPublisher{}
	}
	if s.rooms == nil {
		s.rooms = nopBroadcaster{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Place(ctx context.Context, req PlaceRequest) (Order, error) {
	o, err := s.buildOrder(req)
	if err != nil {
		return Order{}, err
	}

	ids := make([]string, 0, len(req.Items))
	qty := make(map[string]int, len(req.Items))
	for _, ln := range req.Items {
		id := strings.TrimSpace(ln.MenuItemID)
		if id == "" {
			return Order{}, fmt.Errorf("%w: menuItemId is required", ErrInvalid)
		}
		if ln.Quantity < 1 {
			return Order{}, fmt.Errorf("%w: quantity for %s must be at least 1", ErrInvalid, id)
		}
		if _, seen := qty[id]; !seen {
			ids = append(ids, id)
		}
		qty[id] += ln.Quantity
	}

	items, err := s.catalog.GetMany(ctx, ids)
	if err != nil {
		if errors.Is(err, menu.ErrInvalid) {
			return Order{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return Order{}, fmt.Errorf("load menu items: %w", err)
	}

	o.Items = make([]Item, 0, len(ids))
	subtotal := decimal.Zero
	for _, id := range ids {
		mi, ok := items[id]
		if !ok {
			return Order{}, fmt.Errorf("%w: menu item %s does not exist", ErrInvalid, id)
		}
		if !mi.Available {
			return Order{}, fmt.Errorf("%w: %s", ErrItemUnavailable, mi.Name)
		}
		it := Item{MenuItemID: id, Name: mi.Name, Quantity: qty[id], UnitPrice: mi.Price}
		o.Items = append(o.Items, it)
		subtotal = subtotal.Add(it.LineTotal())
	}

	o.Subtotal = subtotal.Round(2)
	o.Tax = subtotal.Mul(s.pricing.TaxRate).Round(2)
	o.DeliveryFee = decimal.Zero
	if o.IsDelivery() {
		o.DeliveryFee = s.pricing.DeliveryFee.Round(2)
	}
	o.Total = o.Subtotal.Add(o.Tax).Add(o.DeliveryFee)

	if err := s.repo.Create(ctx, &o); err != nil {
		return Order{}, err
	}

	s.logger.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("type", string(o.Type)),
		zap.String("total", o.Total.StringFixed(2)),
	)
	s.rooms.Broadcast(realtime.AdminRoom, realtime.EventOrderNew, o)
	s.publish(ctx, o, "")
	return o, nil
}

// buildOrder applies the per-type rules and drops fields that do not
// belong to the chosen type.
func (s *Service) buildOrder(req PlaceRequest) (Order, error) {
	o := Order{
		ID:            uuid.NewString(),
		UserID:        strings.TrimSpace(req.UserID),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Type:          req.Type,
		Status:        StatusPending,
		Notes:         strings.TrimSpace(req.Notes),
	}
	if !o.Type.Valid() {
		return Order{}, fmt.Errorf("%w: unknown order type %q", ErrInvalid, req.Type)
	}
	if len(req.Items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one item is required", ErrInvalid)
	}

	switch o.Type {
	case TypeDineIn:
		o.TableNumber = strings.TrimSpace(req.TableNumber)
		if o.TableNumber == "" {
			return Order{}, fmt.Errorf("%w: dine-in orders need a table number", ErrInvalid)
		}
	case TypeDelivery:
		if req.DeliveryAddress == nil || strings.TrimSpace(req.DeliveryAddress.Line) == "" {
			return Order{}, fmt.Errorf("%w: delivery orders need an address", ErrInvalid)
		}
		if err := req.DeliveryAddress.Location.Validate(); err != nil {
			return Order{}, fmt.Errorf("%w: delivery address: %v", ErrInvalid, err)
		}
		addr := *req.DeliveryAddress
		addr.Line = strings.TrimSpace(addr.Line)
		o.DeliveryAddress = &addr
		o.DeliveryStatus = DeliveryPending
	case TypePreorder:
		if req.ScheduledFor == nil || !req.ScheduledFor.After(s.now()) {
			return Order{}, fmt.Errorf("%w: preorders need a future scheduledFor", ErrInvalid)
		}
		at := req.ScheduledFor.UTC()
		o.ScheduledFor = &at
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalid)
	}
	return s.repo.List(ctx, Filter{UserID: userID})
}

func (s *Service) Cancel(ctx context.Context, id string) (Order, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled)
}

// UpdateStatus applies a kitchen status change. Delivery orders are only
// completed through dispatch once the courier reports them delivered. The
// order row stays locked until commit so dispatch cannot move the delivery
// underneath a cancel.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) (Order, error) {
	tx, err := s.repo.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Order{}, err
	}
	if o.Status.Terminal() || !o.Status.CanTransitionTo(next) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	if o.IsDelivery() {
		if next == StatusCompleted && o.DeliveryStatus != DeliveryDelivered {
			return Order{}, fmt.Errorf("%w: delivery orders complete when delivered", ErrInvalidTransition)
		}
		if next == StatusCancelled && !o.DeliveryStatus.Assignable() {
			return Order{}, fmt.Errorf("%w: order already %s", ErrInvalidTransition, o.DeliveryStatus)
		}
	}

	previous := o.Status
	if err := s.repo.UpdateStatusWithTx(ctx, tx, &o, next); err != nil {
		return Order{}, err
	}
	if next == StatusCancelled && o.DriverID != "" && s.drivers != nil {
		if err := s.drivers.ReleaseWithTx(ctx, tx, o.DriverID, o.ID); err != nil {
			return Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("commit status: %w", err)
	}

	s.logger.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
	)
	s.rooms.Broadcast(realtime.OrderRoom(o.ID), realtime.EventOrderStatus, o)
	s.rooms.Broadcast(realtime.AdminRoom, realtime.EventOrderUpdated, o)
	s.publish(ctx, o, previous)
	return o, nil
}

// publish failures are logged; the state change is already committed.
func (s *Service) publish(ctx context.Context, o Order, previous Status) {
	if err := s.pub.PublishOrderStatusChanged(ctx, o, previous); err != nil {
		s.logger.Warn("publish order status changed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishOrderStatusChanged(context.Context, Order, Status) error { return nil }

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, string, any) {}
