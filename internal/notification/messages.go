package notification

import "fmt"

// ForOrderStatus builds the customer message for a kitchen status. The
// second result is false when the status is not worth a notification.
func ForOrderStatus(userID, orderID, status, orderType string) (Notification, bool) {
	n := Notification{UserID: userID, OrderID: orderID, Kind: KindOrderStatus}
	short := shortID(orderID)
	switch status {
	case "pending":
		n.Title = "Order received"
		n.Message = fmt.Sprintf("We have received order %s.", short)
	case "confirmed":
		n.Title = "Order confirmed"
		n.Message = fmt.Sprintf("Order %s has been confirmed.", short)
	case "preparing":
		n.Title = "Being prepared"
		n.Message = fmt.Sprintf("The kitchen is preparing order %s.", short)
	case "ready":
		n.Title = "Order ready"
		switch orderType {
		case "pickup", "preorder":
			n.Message = fmt.Sprintf("Order %s is ready for collection.", short)
		case "dine-in":
			n.Message = fmt.Sprintf("Order %s is on its way to your table.", short)
		default:
			n.Message = fmt.Sprintf("Order %s is ready and waiting for a driver.", short)
		}
	case "completed":
		n.Title = "Order completed"
		n.Message = fmt.Sprintf("Thanks for ordering! Order %s is complete.", short)
	case "cancelled":
		n.Title = "Order cancelled"
		n.Message = fmt.Sprintf("Order %s has been cancelled.", short)
	default:
		return Notification{}, false
	}
	return n, true
}

// ForDeliveryStatus builds the customer message for a courier status.
func ForDeliveryStatus(userID, orderID, status string) (Notification, bool) {
	n := Notification{UserID: userID, OrderID: orderID, Kind: KindDeliveryStatus}
	short := shortID(orderID)
	switch status {
	case "assigned":
		n.Title = "Driver assigned"
		n.Message = fmt.Sprintf("A driver will deliver order %s.", short)
	case "picked-up":
		n.Title = "Picked up"
		n.Message = fmt.Sprintf("Your driver has collected order %s.", short)
	case "on-the-way":
		n.Title = "On the way"
		n.Message = fmt.Sprintf("Order %s is on the way to you.", short)
	case "delivered":
		n.Title = "Delivered"
		n.Message = fmt.Sprintf("Order %s has been delivered. Enjoy your meal!", short)
	default:
		return Notification{}, false
	}
	return n, true
}

func shortID(id string) string {
	if len(id) > 8 {
		return "#" + id[:8]
	}
	return "#" + id
}
