package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
)

// CartRepository is the persistence surface the cart service depends on.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindCartByOwner(ctx context.Context, userID uuid.UUID) (*models.ShoppingCart, error)
	CreateCartIfAbsent(ctx context.Context, userID uuid.UUID) (*models.ShoppingCart, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	FindLiveItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	TombstoneItem(ctx context.Context, itemID uuid.UUID) error
	ListLiveItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	FindItemOwner(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error)
}

// Reader is the read-only cart view used when assembling orders.
type Reader interface {
	FindCartByOwner(ctx context.Context, userID uuid.UUID) (*models.ShoppingCart, error)
	ListLiveItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
}

// TxReader is a Reader that can join a caller's transaction.
type TxReader interface {
	Reader
	WithTxReader(tx *gorm.DB) Reader
}
