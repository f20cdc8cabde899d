package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mark-4989/restaurant-service-go/internal/dispatch"
	"github.com/mark-4989/restaurant-service-go/internal/driver"
	"github.com/mark-4989/restaurant-service-go/internal/geo"
	"github.com/mark-4989/restaurant-service-go/internal/menu"
	"github.com/mark-4989/restaurant-service-go/internal/notification"
	"github.com/mark-4989/restaurant-service-go/internal/order"
	"github.com/mark-4989/restaurant-service-go/internal/staff"
)

const requestTimeout = 5 * time.Second

type MenuService interface {
	Create(ctx context.Context, it menu.Item) (menu.Item, error)
	Get(ctx context.Context, id string) (menu.Item, error)
	List(ctx context.Context, f menu.Filter) ([]menu.Item, error)
	Update(ctx context.Context, id string, it menu.Item) (menu.Item, error)
	Delete(ctx context.Context, id string) error
	SetAvailability(ctx context.Context, id string, available bool) error
}

type OrderService interface {
	Place(ctx context.Context, req order.PlaceRequest) (order.Order, error)
	Get(ctx context.Context, id string) (order.Order, error)
	List(ctx context.Context, f order.Filter) ([]order.Order, error)
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
	UpdateStatus(ctx context.Context, id string, next order.Status) (order.Order, error)
	Cancel(ctx context.Context, id string) (order.Order, error)
}

type DispatchService interface {
	AssignDriver(ctx context.Context, orderID, driverID string) (order.Order, error)
	AutoAssign(ctx context.Context, orderID string) (order.Order, error)
	UpdateDeliveryStatus(ctx context.Context, orderID string, next order.DeliveryStatus) (order.Order, error)
	UpdateLocation(ctx context.Context, driverID string, p geo.Point) (driver.Driver, error)
	Tracking(ctx context.Context, orderID string) (dispatch.Tracking, error)
}

type DriverService interface {
	Create(ctx context.Context, d driver.Driver) (driver.Driver, error)
	Get(ctx context.Context, id string) (driver.Driver, error)
	List(ctx context.Context, f driver.Filter) ([]driver.Driver, error)
	Update(ctx context.Context, id string, d driver.Driver) (driver.Driver, error)
	Deactivate(ctx context.Context, id string) error
	SetAvailability(ctx context.Context, id string, available bool) (driver.Driver, error)
}

type StaffService interface {
	Create(ctx context.Context, m staff.Member) (staff.Member, error)
	Get(ctx context.Context, id string) (staff.Member, error)
	List(ctx context.Context, f staff.Filter) ([]staff.Member, error)
	Update(ctx context.Context, id string, m staff.Member) (staff.Member, error)
	Deactivate(ctx context.Context, id string) error
	ClockIn(ctx context.Context, staffID string) (staff.Shift, error)
	ClockOut(ctx context.Context, staffID string) (staff.Shift, error)
	Shifts(ctx context.Context, staffID string) ([]staff.Shift, error)
	Now() time.Time
}

type NotificationService interface {
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]notification.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type Deps struct {
	Menu          MenuService
	Orders        OrderService
	Dispatch      DispatchService
	Drivers       DriverService
	Staff         StaffService
	Notifications NotificationService
	Logger        *zap.Logger
}

type Handler struct {
	menu          MenuService
	orders        OrderService
	dispatch      DispatchService
	drivers       DriverService
	staff         StaffService
	notifications NotificationService
	logger        *zap.Logger
}

func NewHandler(d Deps) *Handler {
	h := &Handler{
		menu:          d.Menu,
		orders:        d.Orders,
		dispatch:      d.Dispatch,
		drivers:       d.Drivers,
		staff:         d.Staff,
		notifications: d.Notifications,
		logger:        d.Logger,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "restaurant-service",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail maps domain errors onto status codes. Anything unrecognised is
// logged and reported as a 500 without leaking the cause.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, menu.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, driver.ErrNotFound),
		errors.Is(err, staff.ErrNotFound),
		errors.Is(err, notification.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, menu.ErrInvalid),
		errors.Is(err, order.ErrInvalid),
		errors.Is(err, driver.ErrInvalid),
		errors.Is(err, staff.ErrInvalid),
		errors.Is(err, notification.ErrInvalid),
		errors.Is(err, geo.ErrInvalidPoint):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrStaleStatus),
		errors.Is(err, order.ErrItemUnavailable),
		errors.Is(err, driver.ErrBusy),
		errors.Is(err, driver.ErrNoDriverAvailable),
		errors.Is(err, dispatch.ErrDriverUnavailable),
		errors.Is(err, dispatch.ErrNotDeliveryOrder),
		errors.Is(err, staff.ErrDuplicateEmail),
		errors.Is(err, staff.ErrAlreadyOnShift),
		errors.Is(err, staff.ErrNotOnShift),
		errors.Is(err, staff.ErrInactive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("correlationId", correlationID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

type availabilityRequest struct {
	Available *bool `json:"available"`
}
