package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/internal/repo"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
)

// Repository reads and writes the books table. Every read ignores tombstoned rows.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) BookRepository {
	if tx == nil {
		return r
	}
	return &Repository{Base: r.Bind(tx)}
}

// WithTxLookup lets cart and order services read the catalog inside their transaction.
func (r *Repository) WithTxLookup(tx *gorm.DB) Lookup {
	return r.WithTx(tx)
}

func (r *Repository) live(ctx context.Context) *gorm.DB {
	return r.DB(ctx).Model(&models.Book{}).Where("is_deleted = ?", false)
}

// FindByID returns gorm.ErrRecordNotFound for unknown or tombstoned books.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.live(ctx).Where("id = ?", id).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *Repository) BookExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.live(ctx).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) BookPrice(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	book, err := r.FindByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return book.Price, nil
}

func (r *Repository) BookTitle(ctx context.Context, id uuid.UUID) (string, error) {
	book, err := r.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return book.Title, nil
}

// BookTitles resolves titles for a set of ids in one query. Missing ids are absent from the map.
func (r *Repository) BookTitles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Book
	if err := r.live(ctx).Select("id", "title").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Title
	}
	return out, nil
}

func (r *Repository) ISBNTaken(ctx context.Context, isbn string, exclude uuid.UUID) (bool, error) {
	q := r.live(ctx).Where("isbn = ?", isbn)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) Create(ctx context.Context, book *models.Book) error {
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	return r.DB(ctx).Create(book).Error
}

func (r *Repository) Update(ctx context.Context, book *models.Book) error {
	return r.DB(ctx).Save(book).Error
}

// Tombstone marks the book deleted. Existing order items keep their snapshot.
func (r *Repository) Tombstone(ctx context.Context, id uuid.UUID) error {
	res := r.DB(ctx).Model(&models.Book{}).
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

func (r *Repository) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]models.Book, error) {
	var rows []models.Book
	err := newestFirst(afterCursor(r.live(ctx), "books", cursor), "books").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListByCategory(ctx context.Context, categoryID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.Book, error) {
	query := r.DB(ctx).Model(&models.Book{}).
		Joins("JOIN book_categories ON book_categories.book_id = books.id").
		Where("book_categories.category_id = ? AND books.is_deleted = ?", categoryID, false)

	var rows []models.Book
	err := newestFirst(afterCursor(query, "books", cursor), "books").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	return rows, err
}

// ReplaceCategories drops the book's links and writes categoryIDs in their place.
func (r *Repository) ReplaceCategories(ctx context.Context, bookID uuid.UUID, categoryIDs []uuid.UUID) error {
	conn := r.DB(ctx)
	if err := conn.Where("book_id = ?", bookID).Delete(&models.BookCategory{}).Error; err != nil {
		return err
	}
	if len(categoryIDs) == 0 {
		return nil
	}
	links := make([]models.BookCategory, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		links = append(links, models.BookCategory{BookID: bookID, CategoryID: id})
	}
	return conn.Create(&links).Error
}

func (r *Repository) CategoryIDs(ctx context.Context, bookIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	out := make(map[uuid.UUID][]uuid.UUID, len(bookIDs))
	if len(bookIDs) == 0 {
		return out, nil
	}
	var links []models.BookCategory
	err := r.DB(ctx).
		Joins("JOIN categories ON categories.id = book_categories.category_id").
		Where("book_categories.book_id IN ? AND categories.is_deleted = ?", bookIDs, false).
		Order("book_categories.created_at").
		Order("book_categories.category_id").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		out[link.BookID] = append(out[link.BookID], link.CategoryID)
	}
	return out, nil
}

func afterCursor(query *gorm.DB, table string, cursor *pagination.Cursor) *gorm.DB {
	if cursor == nil {
		return query
	}
	return query.Where(
		fmt.Sprintf("(%[1]s.created_at < ?) OR (%[1]s.created_at = ? AND %[1]s.id < ?)", table),
		cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
	)
}

func newestFirst(query *gorm.DB, table string) *gorm.DB {
	return query.Order(table + ".created_at DESC").Order(table + ".id DESC")
}

// IsNotFound reports whether err means the book does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
