package realtime

// AdminRoom receives every order and delivery change for the dashboard.
const AdminRoom = "admin"

func OrderRoom(orderID string) string { return "order-" + orderID }

func CustomerRoom(userID string) string { return "customer_" + userID }

func DriverRoom(driverID string) string { return "driver-" + driverID }

// Event names pushed to clients.
const (
	EventOrderNew         = "order:new"
	EventOrderUpdated     = "order:updated"
	EventOrderStatus      = "order:status"
	EventDeliveryStatus   = "delivery:status"
	EventDeliveryAssigned = "delivery:assigned"
	EventDriverLocation   = "driver:location"
	EventNotification     = "notification"
)
