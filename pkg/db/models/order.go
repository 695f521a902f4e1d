package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bookstore-backend/pkg/enums"
)

// Order is immutable after creation except for Status.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'PENDING'"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	OrderDate       time.Time         `gorm:"column:order_date;not null"`
	ShippingAddress string            `gorm:"column:shipping_address;not null"`
	IsDeleted       bool              `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem carries the price captured when its order was assembled.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	BookID    uuid.UUID       `gorm:"column:book_id;type:uuid;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsDeleted bool            `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
