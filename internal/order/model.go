package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mark-4989/restaurant-service-go/internal/geo"
)

type Item struct {
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
}

func (it Item) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Address struct {
	Line     string    `json:"line"`
	Location geo.Point `json:"location"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	CustomerName    string          `json:"customerName"`
	CustomerPhone   string          `json:"customerPhone"`
	Type            Type            `json:"type"`
	Status          Status          `json:"status"`
	DeliveryStatus  DeliveryStatus  `json:"deliveryStatus,omitempty"`
	TableNumber     string          `json:"tableNumber,omitempty"`
	ScheduledFor    *time.Time      `json:"scheduledFor,omitempty"`
	DeliveryAddress *Address        `json:"deliveryAddress,omitempty"`
	DriverID        string          `json:"driverId,omitempty"`
	Items           []Item          `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	DeliveryFee     decimal.Decimal `json:"deliveryFee"`
	Total           decimal.Decimal `json:"total"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (o Order) IsDelivery() bool {
	return o.Type == TypeDelivery
}

type Filter struct {
	UserID string
	Status Status
	Type   Type
	Limit  int
}

// LineRequest is one requested menu line; prices come from the menu.
type LineRequest struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

type PlaceRequest struct {
	UserID          string        `json:"userId"`
	CustomerName    string        `json:"customerName"`
	CustomerPhone   string        `json:"customerPhone"`
	Type            Type          `json:"type"`
	TableNumber     string        `json:"tableNumber"`
	ScheduledFor    *time.Time    `json:"scheduledFor"`
	DeliveryAddress *Address      `json:"deliveryAddress"`
	Items           []LineRequest `json:"items"`
	Notes           string        `json:"notes"`
}

// Pricing holds the tariffs applied when an order is placed.
type Pricing struct {
	TaxRate     decimal.Decimal
	DeliveryFee decimal.Decimal
}
