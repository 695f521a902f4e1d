package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups books for browsing. A book may sit in several categories.
type Category struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	IsDeleted   bool      `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BookCategory links a book to a category. Links are replaced wholesale when
// a book is edited.
type BookCategory struct {
	BookID     uuid.UUID `gorm:"column:book_id;type:uuid;primaryKey"`
	CategoryID uuid.UUID `gorm:"column:category_id;type:uuid;primaryKey"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (BookCategory) TableName() string { return "book_categories" }
