package dispatch

import (
	"time"

	"github.com/mark-4989/restaurant-service-go/internal/geo"
	"github.com/mark-4989/restaurant-service-go/internal/order"
)

// LocationUpdate is pushed to tracking rooms whenever a driver reports a
// position.
type LocationUpdate struct {
	DriverID string    `json:"driverId"`
	OrderID  string    `json:"orderId,omitempty"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	At       time.Time `json:"at"`
}

// StatusUpdate is pushed to the order room on every delivery transition.
type StatusUpdate struct {
	OrderID        string               `json:"orderId"`
	Status         order.Status         `json:"status"`
	DeliveryStatus order.DeliveryStatus `json:"deliveryStatus"`
	Previous       order.DeliveryStatus `json:"previousDeliveryStatus"`
	DriverID       string               `json:"driverId,omitempty"`
}

type DriverSummary struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Phone             string     `json:"phone"`
	Vehicle           string     `json:"vehicle"`
	Location          *geo.Point `json:"location,omitempty"`
	LocationUpdatedAt *time.Time `json:"locationUpdatedAt,omitempty"`
}

// Tracking is the snapshot a customer sees when opening the tracking page.
type Tracking struct {
	OrderID        string               `json:"orderId"`
	Status         order.Status         `json:"status"`
	DeliveryStatus order.DeliveryStatus `json:"deliveryStatus"`
	Destination    *order.Address       `json:"destination"`
	Driver         *DriverSummary       `json:"driver,omitempty"`
	// RemainingKm is the straight-line distance from the driver to the
	// destination, set once the driver has reported a location.
	RemainingKm *float64 `json:"remainingKm,omitempty"`
}
