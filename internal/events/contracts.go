package events

import "time"

const (
	EventOrderStatusChanged    = "OrderStatusChanged"
	EventDeliveryStatusChanged = "DeliveryStatusChanged"

	orderStatusChangedSchema    = "restaurant/order-status-changed/v1"
	deliveryStatusChangedSchema = "restaurant/delivery-status-changed/v1"
)

// OrderStatusChangedPayload is published on every kitchen status change,
// including placement where PreviousStatus is empty.
type OrderStatusChangedPayload struct {
	EventType      string    `json:"eventType,omitempty"`
	OrderID        string    `json:"orderId"`
	UserID         string    `json:"userId"`
	OrderType      string    `json:"orderType"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	DeliveryStatus string    `json:"deliveryStatus,omitempty"`
	Total          string    `json:"total"`
	Timestamp      time.Time `json:"timestamp"`
}

type DeliveryStatusChangedPayload struct {
	EventType              string    `json:"eventType,omitempty"`
	OrderID                string    `json:"orderId"`
	UserID                 string    `json:"userId"`
	DriverID               string    `json:"driverId,omitempty"`
	DeliveryStatus         string    `json:"deliveryStatus"`
	PreviousDeliveryStatus string    `json:"previousDeliveryStatus,omitempty"`
	OrderStatus            string    `json:"orderStatus"`
	Timestamp              time.Time `json:"timestamp"`
}
