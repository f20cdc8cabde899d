package notification

import "time"

type Kind string

const (
	KindOrderStatus    Kind = "order-status"
	KindDeliveryStatus Kind = "delivery-status"
	KindGeneral        Kind = "general"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	OrderID   string    `json:"orderId,omitempty"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}
