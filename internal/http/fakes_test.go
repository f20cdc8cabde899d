package httpapi

import (
	"context"
	"time"

	"github.com/mark-4989/restaurant-service-go/internal/dispatch"
	"github.com/mark-4989/restaurant-service-go/internal/driver"
	"github.com/mark-4989/restaurant-service-go/internal/geo"
	"github.com/mark-4989/restaurant-service-go/internal/menu"
	"github.com/mark-4989/restaurant-service-go/internal/notification"
	"github.com/mark-4989/restaurant-service-go/internal/order"
	"github.com/mark-4989/restaurant-service-go/internal/staff"
)

type fakeMenu struct {
	items  map[string]menu.Item
	listFn func(f menu.Filter) ([]menu.Item, error)
	err    error
}

func (f *fakeMenu) Create(ctx context.Context, it menu.Item) (menu.Item, error) {
	if f.err != nil {
		return menu.Item{}, f.err
	}
	it.ID = "m-new"
	return it, nil
}

func (f *fakeMenu) Get(ctx context.Context, id string) (menu.Item, error) {
	it, ok := f.items[id]
	if !ok {
		return menu.Item{}, menu.ErrNotFound
	}
	return it, nil
}

func (f *fakeMenu) List(ctx context.Context, filter menu.Filter) ([]menu.Item, error) {
	if f.listFn != nil {
		return f.listFn(filter)
	}
	return nil, nil
}

func (f *fakeMenu) Update(ctx context.Context, id string, it menu.Item) (menu.Item, error) {
	if _, ok := f.items[id]; !ok {
		return menu.Item{}, menu.ErrNotFound
	}
	it.ID = id
	return it, nil
}

func (f *fakeMenu) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return menu.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeMenu) SetAvailability(ctx context.Context, id string, available bool) error {
	it, ok := f.items[id]
	if !ok {
		return menu.ErrNotFound
	}
	it.Available = available
	f.items[id] = it
	return nil
}

type fakeOrders struct {
	placeFn  func(req order.PlaceRequest) (order.Order, error)
	getFn    func(id string) (order.Order, error)
	listFn   func(f order.Filter) ([]order.Order, error)
	statusFn func(id string, next order.Status) (order.Order, error)
	cancelFn func(id string) (order.Order, error)
}

func (f *fakeOrders) Place(ctx context.Context, req order.PlaceRequest) (order.Order, error) {
	return f.placeFn(req)
}

func (f *fakeOrders) Get(ctx context.Context, id string) (order.Order, error) {
	if f.getFn == nil {
		return order.Order{}, order.ErrNotFound
	}
	return f.getFn(id)
}

func (f *fakeOrders) List(ctx context.Context, filter order.Filter) ([]order.Order, error) {
	return f.listFn(filter)
}

func (f *fakeOrders) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return f.listFn(order.Filter{UserID: userID})
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, id string, next order.Status) (order.Order, error) {
	return f.statusFn(id, next)
}

func (f *fakeOrders) Cancel(ctx context.Context, id string) (order.Order, error) {
	return f.cancelFn(id)
}

type fakeDispatch struct {
	assignFn   func(orderID, driverID string) (order.Order, error)
	autoFn     func(orderID string) (order.Order, error)
	deliveryFn func(orderID string, next order.DeliveryStatus) (order.Order, error)
	locationFn func(driverID string, p geo.Point) (driver.Driver, error)
	trackingFn func(orderID string) (dispatch.Tracking, error)
}

func (f *fakeDispatch) AssignDriver(ctx context.Context, orderID, driverID string) (order.Order, error) {
	return f.assignFn(orderID, driverID)
}

func (f *fakeDispatch) AutoAssign(ctx context.Context, orderID string) (order.Order, error) {
	return f.autoFn(orderID)
}

func (f *fakeDispatch) UpdateDeliveryStatus(ctx context.Context, orderID string, next order.DeliveryStatus) (order.Order, error) {
	return f.deliveryFn(orderID, next)
}

func (f *fakeDispatch) UpdateLocation(ctx context.Context, driverID string, p geo.Point) (driver.Driver, error) {
	return f.locationFn(driverID, p)
}

func (f *fakeDispatch) Tracking(ctx context.Context, orderID string) (dispatch.Tracking, error) {
	return f.trackingFn(orderID)
}

type fakeDrivers struct {
	drivers map[string]driver.Driver
	lastFil driver.Filter
}

func (f *fakeDrivers) Create(ctx context.Context, d driver.Driver) (driver.Driver, error) {
	if d.Name == "" {
		return driver.Driver{}, driver.ErrInvalid
	}
	d.ID = "d-new"
	d.Active = true
	d.Available = true
	return d, nil
}

func (f *fakeDrivers) Get(ctx context.Context, id string) (driver.Driver, error) {
	d, ok := f.drivers[id]
	if !ok {
		return driver.Driver{}, driver.ErrNotFound
	}
	return d, nil
}

func (f *fakeDrivers) List(ctx context.Context, filter driver.Filter) ([]driver.Driver, error) {
	f.lastFil = filter
	out := []driver.Driver{}
	for _, d := range f.drivers {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDrivers) Update(ctx context.Context, id string, d driver.Driver) (driver.Driver, error) {
	if _, ok := f.drivers[id]; !ok {
		return driver.Driver{}, driver.ErrNotFound
	}
	d.ID = id
	return d, nil
}

func (f *fakeDrivers) Deactivate(ctx context.Context, id string) error {
	if _, ok := f.drivers[id]; !ok {
		return driver.ErrNotFound
	}
	return nil
}

func (f *fakeDrivers) SetAvailability(ctx context.Context, id string, available bool) (driver.Driver, error) {
	d, ok := f.drivers[id]
	if !ok {
		return driver.Driver{}, driver.ErrNotFound
	}
	if available && d.Busy() {
		return driver.Driver{}, driver.ErrBusy
	}
	d.Available = available
	return d, nil
}

type fakeStaff struct {
	members map[string]staff.Member
	open    map[string]staff.Shift
	closed  []staff.Shift
	now     time.Time
}

func (f *fakeStaff) Create(ctx context.Context, m staff.Member) (staff.Member, error) {
	for _, existing := range f.members {
		if existing.Email == m.Email {
			return staff.Member{}, staff.ErrDuplicateEmail
		}
	}
	m.ID = "s-new"
	m.Active = true
	return m, nil
}

func (f *fakeStaff) Get(ctx context.Context, id string) (staff.Member, error) {
	m, ok := f.members[id]
	if !ok {
		return staff.Member{}, staff.ErrNotFound
	}
	return m, nil
}

func (f *fakeStaff) List(ctx context.Context, filter staff.Filter) ([]staff.Member, error) {
	out := []staff.Member{}
	for _, m := range f.members {
		if filter.Role == "" || m.Role == filter.Role {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStaff) Update(ctx context.Context, id string, m staff.Member) (staff.Member, error) {
	if _, ok := f.members[id]; !ok {
		return staff.Member{}, staff.ErrNotFound
	}
	m.ID = id
	return m, nil
}

func (f *fakeStaff) Deactivate(ctx context.Context, id string) error {
	if _, ok := f.members[id]; !ok {
		return staff.ErrNotFound
	}
	return nil
}

func (f *fakeStaff) ClockIn(ctx context.Context, staffID string) (staff.Shift, error) {
	if _, ok := f.members[staffID]; !ok {
		return staff.Shift{}, staff.ErrNotFound
	}
	if _, ok := f.open[staffID]; ok {
		return staff.Shift{}, staff.ErrAlreadyOnShift
	}
	s := staff.Shift{ID: "sh-" + staffID, StaffID: staffID, ClockIn: f.now}
	f.open[staffID] = s
	return s, nil
}

func (f *fakeStaff) ClockOut(ctx context.Context, staffID string) (staff.Shift, error) {
	s, ok := f.open[staffID]
	if !ok {
		return staff.Shift{}, staff.ErrNotOnShift
	}
	out := f.now
	s.ClockOut = &out
	delete(f.open, staffID)
	f.closed = append(f.closed, s)
	return s, nil
}

func (f *fakeStaff) Shifts(ctx context.Context, staffID string) ([]staff.Shift, error) {
	if _, ok := f.members[staffID]; !ok {
		return nil, staff.ErrNotFound
	}
	out := append([]staff.Shift{}, f.closed...)
	if s, ok := f.open[staffID]; ok {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStaff) Now() time.Time {
	return f.now
}

type fakeNotifications struct {
	byUser     map[string][]notification.Notification
	unreadOnly bool
}

func (f *fakeNotifications) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	f.unreadOnly = unreadOnly
	return f.byUser[userID], nil
}

func (f *fakeNotifications) MarkRead(ctx context.Context, id string) error {
	for _, list := range f.byUser {
		for i := range list {
			if list[i].ID == id {
				list[i].Read = true
				return nil
			}
		}
	}
	return notification.ErrNotFound
}

func (f *fakeNotifications) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var n int64
	for i := range f.byUser[userID] {
		if !f.byUser[userID][i].Read {
			f.byUser[userID][i].Read = true
			n++
		}
	}
	return n, nil
}
