package payloads

import (
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is emitted once an order and its items are persisted.
type OrderCreatedEvent struct {
	OrderID   uuid.UUID         `json:"orderId"`
	UserID    uuid.UUID         `json:"userId"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"itemCount"`
	Status    enums.OrderStatus `json:"status"`
}

// OrderStatusChangedEvent is emitted on every status assignment, including
// assignments that leave the status unchanged.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"orderId"`
	UserID         uuid.UUID         `json:"userId"`
	PreviousStatus enums.OrderStatus `json:"previousStatus"`
	Status         enums.OrderStatus `json:"status"`
}
