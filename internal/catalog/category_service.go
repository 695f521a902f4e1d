package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
)

func (s *service) GetCategory(ctx context.Context, id uuid.UUID) (*CategoryView, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, categoryNotFoundOr(err, id)
	}
	view := toCategoryView(category)
	return &view, nil
}

func (s *service) ListCategories(ctx context.Context, params pagination.Params) (*pagination.Page[CategoryView], error) {
	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	rows, err := s.categories.List(ctx, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	rows, next := pagination.Trim(rows, params.Limit, categoryCursor)

	views := make([]CategoryView, 0, len(rows))
	for i := range rows {
		views = append(views, toCategoryView(&rows[i]))
	}
	return &pagination.Page[CategoryView]{Items: views, Cursor: pagination.EncodeNext(next)}, nil
}

// ListBooksByCategory pages through the live books of a live category. The
// views leave CategoryIDs empty.
func (s *service) ListBooksByCategory(ctx context.Context, categoryID uuid.UUID, params pagination.Params) (*pagination.Page[BookView], error) {
	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var views []BookView
	var next *pagination.Cursor
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.categories.WithTx(tx).FindByID(ctx, categoryID); err != nil {
			return categoryNotFoundOr(err, categoryID)
		}
		rows, err := s.repo.WithTx(tx).ListByCategory(ctx, categoryID, params.Limit, cursor)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list category books")
		}
		rows, next = pagination.Trim(rows, params.Limit, bookCursor)
		views = make([]BookView, 0, len(rows))
		for i := range rows {
			views = append(views, *toView(&rows[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pagination.Page[BookView]{Items: views, Cursor: pagination.EncodeNext(next)}, nil
}

func (s *service) CreateCategory(ctx context.Context, input CategoryInput) (*CategoryView, error) {
	if err := validateCategory(&input); err != nil {
		return nil, err
	}
	category := &models.Category{Name: input.Name, Description: input.Description}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	s.logCategory(ctx, category.ID, "catalog.category_created")
	view := toCategoryView(category)
	return &view, nil
}

func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*CategoryView, error) {
	if err := validateCategory(&input); err != nil {
		return nil, err
	}

	var updated *models.Category
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.categories.WithTx(tx)
		category, err := repo.FindByID(ctx, id)
		if err != nil {
			return categoryNotFoundOr(err, id)
		}
		category.Name = input.Name
		category.Description = input.Description
		if err := repo.Update(ctx, category); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
		}
		updated = category
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logCategory(ctx, id, "catalog.category_updated")
	view := toCategoryView(updated)
	return &view, nil
}

// DeleteCategory tombstones the category. Its books are untouched.
func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.categories.Tombstone(ctx, id); err != nil {
		return categoryNotFoundOr(err, id)
	}
	s.logCategory(ctx, id, "catalog.category_deleted")
	return nil
}

func (s *service) logCategory(ctx context.Context, id uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "category_id", id.String()), msg)
}

func validateCategory(input *CategoryInput) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"name": "is required"})
	}
	return nil
}

func categoryNotFoundOr(err error, id uuid.UUID) error {
	if IsNotFound(err) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "category %s not found", id)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
}
