package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is a line in a shopping cart. Removal sets IsDeleted.
type CartItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShoppingCartID uuid.UUID `gorm:"column:shopping_cart_id;type:uuid;not null"`
	BookID         uuid.UUID `gorm:"column:book_id;type:uuid;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	IsDeleted      bool      `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
