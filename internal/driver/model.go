package driver

import (
	"time"

	"github.com/mark-4989/restaurant-service-go/internal/geo"
)

type Driver struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	Vehicle           string     `json:"vehicle"`
	Active            bool       `json:"active"`
	Available         bool       `json:"available"`
	Location          *geo.Point `json:"location,omitempty"`
	LocationUpdatedAt *time.Time `json:"locationUpdatedAt,omitempty"`
	CurrentOrderID    string     `json:"currentOrderId,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Busy reports whether the driver is carrying an order.
func (d Driver) Busy() bool {
	return d.CurrentOrderID != ""
}

// Assignable reports whether the driver can take orderID.
func (d Driver) Assignable(orderID string) bool {
	if !d.Active {
		return false
	}
	return d.Available || d.CurrentOrderID == orderID
}

type Filter struct {
	AvailableOnly   bool
	IncludeInactive bool
}

// Nearby is a driver returned by a proximity search.
type Nearby struct {
	Driver
	DistanceMeters float64 `json:"distanceMeters"`
}
