package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/internal/repo"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
)

// CategoryRepo reads and writes the categories table, skipping tombstoned rows.
type CategoryRepo struct {
	repo.Base
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepo {
	return &CategoryRepo{Base: repo.NewBase(db)}
}

func (r *CategoryRepo) WithTx(tx *gorm.DB) CategoryRepository {
	if tx == nil {
		return r
	}
	return &CategoryRepo{Base: r.Bind(tx)}
}

func (r *CategoryRepo) live(ctx context.Context) *gorm.DB {
	return r.DB(ctx).Model(&models.Category{}).Where("categories.is_deleted = ?", false)
}

// FindByID returns gorm.ErrRecordNotFound for unknown or tombstoned categories.
func (r *CategoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.live(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepo) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Category, error) {
	var rows []models.Category
	err := newestFirst(afterCursor(r.live(ctx), "categories", cursor), "categories").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	return rows, err
}

func (r *CategoryRepo) CountLive(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	err := r.live(ctx).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

func (r *CategoryRepo) Create(ctx context.Context, category *models.Category) error {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	return r.DB(ctx).Create(category).Error
}

func (r *CategoryRepo) Update(ctx context.Context, category *models.Category) error {
	return r.DB(ctx).Save(category).Error
}

// Tombstone hides the category. Book links stay but stop being reported.
func (r *CategoryRepo) Tombstone(ctx context.Context, id uuid.UUID) error {
	res := r.DB(ctx).Model(&models.Category{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]any{"is_deleted": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
