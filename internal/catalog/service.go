package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/pkg/db"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
)

// maxBookCategories caps how many categories one book may carry.
const maxBookCategories = 20

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service browses and administers books and categories.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*BookView, error)
	List(ctx context.Context, params pagination.Params) (*pagination.Page[BookView], error)
	Create(ctx context.Context, input BookInput) (*BookView, error)
	Update(ctx context.Context, id uuid.UUID, input BookInput) (*BookView, error)
	Delete(ctx context.Context, id uuid.UUID) error

	GetCategory(ctx context.Context, id uuid.UUID) (*CategoryView, error)
	ListCategories(ctx context.Context, params pagination.Params) (*pagination.Page[CategoryView], error)
	ListBooksByCategory(ctx context.Context, categoryID uuid.UUID, params pagination.Params) (*pagination.Page[BookView], error)
	CreateCategory(ctx context.Context, input CategoryInput) (*CategoryView, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*CategoryView, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo       BookRepository
	categories CategoryRepository
	tx         txRunner
	logg       *logger.Logger
}

func NewService(repo BookRepository, categories CategoryRepository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("book repository required")
	}
	if categories == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, categories: categories, tx: tx, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*BookView, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, id)
	}
	links, err := s.repo.CategoryIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book categories")
	}
	view := toView(book)
	view.CategoryIDs = links[id]
	return view, nil
}

// List pages through live books, newest first.
func (s *service) List(ctx context.Context, params pagination.Params) (*pagination.Page[BookView], error) {
	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list books")
	}
	rows, next := pagination.Trim(rows, params.Limit, bookCursor)

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	links, err := s.repo.CategoryIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book categories")
	}

	views := make([]BookView, 0, len(rows))
	for i := range rows {
		view := toView(&rows[i])
		view.CategoryIDs = links[rows[i].ID]
		views = append(views, *view)
	}
	return &pagination.Page[BookView]{Items: views, Cursor: pagination.EncodeNext(next)}, nil
}

func (s *service) Create(ctx context.Context, input BookInput) (*BookView, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	book := &models.Book{
		Title:       input.Title,
		Author:      input.Author,
		ISBN:        input.ISBN,
		Price:       input.Price,
		Description: input.Description,
		CoverImage:  input.CoverImage,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := ensureISBNFree(ctx, repo, input.ISBN, uuid.Nil); err != nil {
			return err
		}
		if err := s.ensureCategories(ctx, tx, input.CategoryIDs); err != nil {
			return err
		}
		if err := repo.Create(ctx, book); err != nil {
			return translateWriteErr(err, "create book")
		}
		if err := repo.ReplaceCategories(ctx, book.ID, input.CategoryIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link book categories")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx, book.ID, "catalog.book_created")
	view := toView(book)
	view.CategoryIDs = input.CategoryIDs
	return view, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input BookInput) (*BookView, error) {
	if err := validateInput(&input); err != nil {
		return nil, err
	}

	var updated *models.Book
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		book, err := repo.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, id)
		}
		if err := ensureISBNFree(ctx, repo, input.ISBN, id); err != nil {
			return err
		}
		if err := s.ensureCategories(ctx, tx, input.CategoryIDs); err != nil {
			return err
		}

		book.Title = input.Title
		book.Author = input.Author
		book.ISBN = input.ISBN
		book.Price = input.Price
		book.Description = input.Description
		book.CoverImage = input.CoverImage
		if err := repo.Update(ctx, book); err != nil {
			return translateWriteErr(err, "update book")
		}
		if err := repo.ReplaceCategories(ctx, id, input.CategoryIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link book categories")
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log(ctx, id, "catalog.book_updated")
	view := toView(updated)
	view.CategoryIDs = input.CategoryIDs
	return view, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Tombstone(ctx, id); err != nil {
			return notFoundOr(err, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log(ctx, id, "catalog.book_deleted")
	return nil
}

func (s *service) log(ctx context.Context, id uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "book_id", id.String()), msg)
}

func validateInput(input *BookInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)
	input.ISBN = strings.TrimSpace(input.ISBN)

	details := map[string]string{}
	if input.Title == "" {
		details["title"] = "is required"
	}
	if input.Author == "" {
		details["author"] = "is required"
	}
	if input.ISBN == "" {
		details["isbn"] = "is required"
	}
	if input.Price.IsNegative() {
		details["price"] = "must be at least 0"
	}
	ids, problem := dedupeCategoryIDs(input.CategoryIDs)
	if problem != "" {
		details["categoryIds"] = problem
	}
	input.CategoryIDs = ids
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	input.Price = input.Price.Round(2)
	return nil
}

func dedupeCategoryIDs(ids []uuid.UUID) ([]uuid.UUID, string) {
	if len(ids) == 0 {
		return nil, ""
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, "must not contain empty ids"
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > maxBookCategories {
		return nil, fmt.Sprintf("must name at most %d categories", maxBookCategories)
	}
	return out, ""
}

// ensureCategories rejects ids that do not name live categories.
func (s *service) ensureCategories(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	live, err := s.categories.WithTx(tx).CountLive(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check categories")
	}
	if live != int64(len(ids)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"categoryIds": "contains unknown categories"})
	}
	return nil
}

func parseCursor(raw string) (*pagination.Cursor, error) {
	cursor, err := pagination.ParseCursor(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]string{"cursor": "is malformed"})
	}
	return cursor, nil
}

func ensureISBNFree(ctx context.Context, repo BookRepository, isbn string, exclude uuid.UUID) error {
	taken, err := repo.ISBNTaken(ctx, isbn, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check isbn")
	}
	if taken {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "a book with isbn %s already exists", isbn)
	}
	return nil
}

func translateWriteErr(err error, action string) error {
	if db.IsUniqueViolation(err, "ux_books_isbn_live") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a book with this isbn already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func notFoundOr(err error, id uuid.UUID) error {
	if IsNotFound(err) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "book %s not found", id)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load book")
}
