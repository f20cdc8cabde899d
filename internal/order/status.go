package order

type Type string

const (
	TypeDineIn   Type = "dine-in"
	TypePickup   Type = "pickup"
	TypeDelivery Type = "delivery"
	TypePreorder Type = "preorder"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDineIn, TypePickup, TypeDelivery, TypePreorder:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted, StatusCancelled},
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DeliveryStatus tracks the courier leg of a delivery order. It is separate
// from Status, which follows the kitchen.
type DeliveryStatus string

const (
	DeliveryNone      DeliveryStatus = ""
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryPickedUp  DeliveryStatus = "picked-up"
	DeliveryOnTheWay  DeliveryStatus = "on-the-way"
	DeliveryDelivered DeliveryStatus = "delivered"
)

var deliveryOrder = []DeliveryStatus{
	DeliveryPending,
	DeliveryAssigned,
	DeliveryPickedUp,
	DeliveryOnTheWay,
	DeliveryDelivered,
}

func (d DeliveryStatus) rank() int {
	for i, s := range deliveryOrder {
		if s == d {
			return i
		}
	}
	return -1
}

func (d DeliveryStatus) Valid() bool {
	return d.rank() >= 0
}

// Next reports the single status that may follow d.
func (d DeliveryStatus) Next() (DeliveryStatus, bool) {
	r := d.rank()
	if r < 0 || r == len(deliveryOrder)-1 {
		return DeliveryNone, false
	}
	return deliveryOrder[r+1], true
}

// Assignable reports whether a driver may be (re)assigned in this state.
func (d DeliveryStatus) Assignable() bool {
	return d == DeliveryPending || d == DeliveryAssigned
}
