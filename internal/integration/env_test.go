//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mark-4989/restaurant-service-go/internal/dispatch"
	"github.com/mark-4989/restaurant-service-go/internal/driver"
	"github.com/mark-4989/restaurant-service-go/internal/events"
	"github.com/mark-4989/restaurant-service-go/internal/geo"
	"github.com/mark-4989/restaurant-service-go/internal/menu"
	"github.com/mark-4989/restaurant-service-go/internal/notification"
	"github.com/mark-4989/restaurant-service-go/internal/order"
	"github.com/mark-4989/restaurant-service-go/internal/staff"
)

var origin = geo.Point{Lat: -1.2921, Lng: 36.8219}

type env struct {
	pool          *pgxpool.Pool
	menu          *menu.Service
	orders        *order.Service
	drivers       *driver.Service
	driverRepo    *driver.PostgresRepository
	dispatch      *dispatch.Service
	staff         *staff.Service
	notifications *notification.Service
}

// newEnv wires the services the way serve does without a broker.
func newEnv(pool *pgxpool.Pool, maxRadius float64) *env {
	menuRepo := menu.NewPostgresRepository(pool)
	orderRepo := order.NewPostgresRepository(pool)
	driverRepo := driver.NewPostgresRepository(pool)
	notifications := notification.NewService(notification.NewPostgresRepository(pool), nil, nil)
	pub := events.NewInlinePublisher(notifications)

	return &env{
		pool: pool,
		menu: menu.NewService(menuRepo),
		orders: order.NewService(orderRepo, menuRepo, order.Options{
			Pricing: order.Pricing{
				TaxRate:     decimal.RequireFromString("0.16"),
				DeliveryFee: decimal.RequireFromString("2.50"),
			},
			Publisher: pub,
			Drivers:   driverRepo,
		}),
		drivers:       driver.NewService(driverRepo),
		driverRepo:    driverRepo,
		dispatch:      dispatch.NewService(orderRepo, driverRepo, pub, nil, dispatch.Config{Origin: origin, MaxRadiusMeters: maxRadius}, nil),
		staff:         staff.NewService(staff.NewPostgresRepository(pool)),
		notifications: notifications,
	}
}

func (e *env) menuItem(t *testing.T, name, price string) menu.Item {
	t.Helper()
	it, err := e.menu.Create(context.Background(), menu.Item{
		Name:      name,
		Category:  "mains",
		Price:     decimal.RequireFromString(price),
		Available: true,
	})
	require.NoError(t, err)
	return it
}

func (e *env) driverAt(t *testing.T, name string, p geo.Point) driver.Driver {
	t.Helper()
	ctx := context.Background()
	d, err := e.drivers.Create(ctx, driver.Driver{Name: name, Phone: "0700000000", Vehicle: "motorbike"})
	require.NoError(t, err)
	d, err = e.driverRepo.UpdateLocation(ctx, d.ID, p)
	require.NoError(t, err)
	return d
}

func (e *env) deliveryOrder(t *testing.T, userID string, item menu.Item) order.Order {
	t.Helper()
	o, err := e.orders.Place(context.Background(), order.PlaceRequest{
		UserID:       userID,
		CustomerName: "Achieng",
		Type:         order.TypeDelivery,
		DeliveryAddress: &order.Address{
			Line:     "Kenyatta Avenue 4",
			Location: geo.Point{Lat: -1.2850, Lng: 36.8200},
		},
		Items: []order.LineRequest{{MenuItemID: item.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	return o
}
