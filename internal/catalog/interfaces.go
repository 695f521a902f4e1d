package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
)

// Lookup is the read-only catalog view used while building carts and orders.
// BookPrice and BookTitle return gorm.ErrRecordNotFound for unknown books.
type Lookup interface {
	BookExists(ctx context.Context, id uuid.UUID) (bool, error)
	BookPrice(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)
	BookTitle(ctx context.Context, id uuid.UUID) (string, error)
	BookTitles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// TxLookup is a Lookup that can join a caller's transaction.
type TxLookup interface {
	Lookup
	WithTxLookup(tx *gorm.DB) Lookup
}

// BookRepository is the persistence surface for catalog administration.
type BookRepository interface {
	Lookup
	WithTx(tx *gorm.DB) BookRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	ISBNTaken(ctx context.Context, isbn string, exclude uuid.UUID) (bool, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book) error
	Tombstone(ctx context.Context, id uuid.UUID) error

	// List and ListByCategory return up to LimitWithBuffer(limit) live books,
	// newest first.
	List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Book, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Book, error)
	ReplaceCategories(ctx context.Context, bookID uuid.UUID, categoryIDs []uuid.UUID) error
	// CategoryIDs maps each book to its live categories.
	CategoryIDs(ctx context.Context, bookIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
}

// CategoryRepository is the persistence surface for categories.
type CategoryRepository interface {
	WithTx(tx *gorm.DB) CategoryRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Category, error)
	// CountLive reports how many of ids name live categories.
	CountLive(ctx context.Context, ids []uuid.UUID) (int64, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Tombstone(ctx context.Context, id uuid.UUID) error
}

