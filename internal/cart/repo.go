package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bookstore-backend/internal/repo"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
)

// Repository persists shopping carts and their line items.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{Base: r.Bind(tx)}
}

// WithTxReader lets the order service read carts inside its transaction.
func (r *Repository) WithTxReader(tx *gorm.DB) Reader {
	return r.WithTx(tx)
}

// FindCartByOwner returns the user's live cart or gorm.ErrRecordNotFound.
func (r *Repository) FindCartByOwner(ctx context.Context, userID uuid.UUID) (*models.ShoppingCart, error) {
	var cart models.ShoppingCart
	err := r.DB(ctx).
		Where("user_id = ? AND is_deleted = ?", userID, false).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// CreateCartIfAbsent inserts a cart for the user unless a live one exists and
// returns whichever row survived. A concurrent insert that wins the unique index
// is re-read instead of surfacing as an error.
func (r *Repository) CreateCartIfAbsent(ctx context.Context, userID uuid.UUID) (*models.ShoppingCart, error) {
	now := time.Now().UTC()
	cart := &models.ShoppingCart{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(cart).Error; err != nil {
		return nil, err
	}
	return r.FindCartByOwner(ctx, userID)
}

func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	return r.DB(ctx).Create(item).Error
}

// FindLiveItem returns gorm.ErrRecordNotFound for unknown or tombstoned items.
func (r *Repository) FindLiveItem(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.DB(ctx).
		Where("id = ? AND is_deleted = ?", itemID, false).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.updateLiveItem(ctx, itemID, map[string]any{"quantity": quantity})
}

func (r *Repository) TombstoneItem(ctx context.Context, itemID uuid.UUID) error {
	return r.updateLiveItem(ctx, itemID, map[string]any{"is_deleted": true})
}

func (r *Repository) updateLiveItem(ctx context.Context, itemID uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.DB(ctx).Model(&models.CartItem{}).
		Where("id = ? AND is_deleted = ?", itemID, false).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListLiveItems returns the cart's live items oldest first.
func (r *Repository) ListLiveItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.DB(ctx).
		Where("shopping_cart_id = ? AND is_deleted = ?", cartID, false).
		Order("created_at ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// FindItemOwner resolves the user id of the live cart holding the item.
func (r *Repository) FindItemOwner(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error) {
	var rows []struct {
		UserID uuid.UUID
	}
	err := r.DB(ctx).
		Table("cart_items AS ci").
		Select("sc.user_id AS user_id").
		Joins("JOIN shopping_carts AS sc ON sc.id = ci.shopping_cart_id").
		Where("ci.id = ? AND sc.is_deleted = ?", itemID, false).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return uuid.Nil, err
	}
	if len(rows) == 0 {
		return uuid.Nil, gorm.ErrRecordNotFound
	}
	return rows[0].UserID, nil
}

// IsNotFound reports whether err means the cart or item does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// PurgeTombstonedItemsBefore hard-deletes removed cart lines last touched
// before cutoff and reports how many rows went away.
func (r *Repository) PurgeTombstonedItemsBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	conn := r.DB(ctx)
	if tx != nil {
		conn = tx.WithContext(ctx)
	}
	res := conn.
		Where("is_deleted = ? AND updated_at < ?", true, cutoff).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
