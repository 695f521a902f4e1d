package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/outbox"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
)

// Repository is the order store. Every read filters tombstoned rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	FindLiveByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ExistsByIDAndUser(ctx context.Context, orderID, userID uuid.UUID) (bool, error)
	ListByOwner(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	ListItemsByOrder(ctx context.Context, orderID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.OrderItem, error)
	ListItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]models.OrderItem, error)
	FindItem(ctx context.Context, orderID, itemID uuid.UUID) (*models.OrderItem, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}
