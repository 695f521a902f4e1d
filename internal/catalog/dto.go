package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
)

// BookInput is the full set of editable book fields. Update replaces all of them.
type BookInput struct {
	Title       string
	Author      string
	ISBN        string
	Price       decimal.Decimal
	Description *string
	CoverImage  *string
	CategoryIDs []uuid.UUID
}

type BookView struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	ISBN        string          `json:"isbn"`
	Price       decimal.Decimal `json:"price"`
	Description *string         `json:"description,omitempty"`
	CoverImage  *string         `json:"coverImage,omitempty"`
	CategoryIDs []uuid.UUID     `json:"categoryIds,omitempty"`
}

// CategoryInput holds the editable category fields. Update replaces both.
type CategoryInput struct {
	Name        string
	Description *string
}

type CategoryView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

func toCategoryView(category *models.Category) CategoryView {
	return CategoryView{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
	}
}

func bookCursor(book models.Book) pagination.Cursor {
	return pagination.Cursor{CreatedAt: book.CreatedAt, ID: book.ID}
}

func categoryCursor(category models.Category) pagination.Cursor {
	return pagination.Cursor{CreatedAt: category.CreatedAt, ID: category.ID}
}

func toView(book *models.Book) *BookView {
	return &BookView{
		ID:          book.ID,
		Title:       book.Title,
		Author:      book.Author,
		ISBN:        book.ISBN,
		Price:       book.Price,
		Description: book.Description,
		CoverImage:  book.CoverImage,
	}
}
