package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
)

type CreateOrderInput struct {
	ShippingAddress string
}

type OrderItemView struct {
	ID       uuid.UUID       `json:"id"`
	BookID   uuid.UUID       `json:"bookId"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type OrderView struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"userId"`
	Status          enums.OrderStatus `json:"status"`
	Total           decimal.Decimal   `json:"total"`
	OrderDate       time.Time         `json:"orderDate"`
	ShippingAddress string            `json:"shippingAddress"`
	OrderItems      []OrderItemView   `json:"orderItems"`
}

func toItemView(item models.OrderItem) OrderItemView {
	return OrderItemView{
		ID:       item.ID,
		BookID:   item.BookID,
		Quantity: item.Quantity,
		Price:    item.Price,
	}
}

func toOrderView(order models.Order, items []models.OrderItem) OrderView {
	view := OrderView{
		ID:              order.ID,
		UserID:          order.UserID,
		Status:          order.Status,
		Total:           order.Total,
		OrderDate:       order.OrderDate,
		ShippingAddress: order.ShippingAddress,
		OrderItems:      make([]OrderItemView, 0, len(items)),
	}
	for _, item := range items {
		view.OrderItems = append(view.OrderItems, toItemView(item))
	}
	return view
}

func orderCursor(order models.Order) pagination.Cursor {
	return pagination.Cursor{CreatedAt: order.CreatedAt, ID: order.ID}
}

func itemCursor(item models.OrderItem) pagination.Cursor {
	return pagination.Cursor{CreatedAt: item.CreatedAt, ID: item.ID}
}
