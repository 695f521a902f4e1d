package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/internal/access"
	"github.com/angelmondragon/bookstore-backend/internal/catalog"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
	"github.com/angelmondragon/bookstore-backend/pkg/tracing"
)

var tracer = tracing.Tracer("bookstore/internal/cart")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the caller's single live shopping cart.
type Service interface {
	GetOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.ShoppingCart, error)
	GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartItemView, error)
	// UpdateQuantity does not verify that the caller owns the item.
	UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (*CartItemView, error)
	DeleteItem(ctx context.Context, itemID, callerUserID uuid.UUID) error
}

type service struct {
	repo    CartRepository
	books   catalog.TxLookup
	tx      txRunner
	metrics *metrics.FulfillmentMetrics
	logg    *logger.Logger
}

func NewService(repo CartRepository, books catalog.TxLookup, tx txRunner, m *metrics.FulfillmentMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if books == nil {
		return nil, fmt.Errorf("catalog lookup required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, books: books, tx: tx, metrics: m, logg: logg}, nil
}

func (s *service) GetOrCreateCart(ctx context.Context, userID uuid.UUID) (cart *models.ShoppingCart, err error) {
	ctx, span := tracer.Start(ctx, "cart.get_or_create", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer func() { tracing.EndSpan(span, err) }()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		cart, txErr = getOrCreate(ctx, s.repo.WithTx(tx), userID)
		return txErr
	})
	return cart, err
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (view *CartView, err error) {
	ctx, span := tracer.Start(ctx, "cart.get", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer func() { tracing.EndSpan(span, err) }()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := getOrCreate(ctx, repo, userID)
		if err != nil {
			return err
		}
		items, err := repo.ListLiveItems(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
		}

		bookIDs := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			bookIDs = append(bookIDs, item.BookID)
		}
		titles, err := s.books.WithTxLookup(tx).BookTitles(ctx, bookIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve book titles")
		}

		view = &CartView{ID: cart.ID, UserID: cart.UserID, CartItems: make([]CartItemView, 0, len(items))}
		for _, item := range items {
			view.CartItems = append(view.CartItems, toItemView(item, titles[item.BookID]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("cart.items", len(view.CartItems)))
	return view, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (view *CartItemView, err error) {
	ctx, span := tracer.Start(ctx, "cart.add_item", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("book.id", input.BookID.String()),
	))
	defer func() { tracing.EndSpan(span, err) }()

	if err := validateQuantity(input.Quantity); err != nil {
		return nil, err
	}

	var item *models.CartItem
	var title string
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		books := s.books.WithTxLookup(tx)

		exists, err := books.BookExists(ctx, input.BookID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check book")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}

		cart, err := getOrCreate(ctx, repo, userID)
		if err != nil {
			return err
		}
		item = &models.CartItem{
			ShoppingCartID: cart.ID,
			BookID:         input.BookID,
			Quantity:       input.Quantity,
		}
		if err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
		}
		title, err = books.BookTitle(ctx, input.BookID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve book title")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCartMutation(metrics.CartOpAdd)
	s.log(ctx, item, "cart.item_added")
	out := toItemView(*item, title)
	return &out, nil
}

func (s *service) UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (view *CartItemView, err error) {
	ctx, span := tracer.Start(ctx, "cart.update_quantity", trace.WithAttributes(attribute.String("cart_item.id", itemID.String())))
	defer func() { tracing.EndSpan(span, err) }()

	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	var item *models.CartItem
	var title string
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		item, err = loadItem(ctx, repo, itemID)
		if err != nil {
			return err
		}
		if err := repo.UpdateItemQuantity(ctx, itemID, quantity); err != nil {
			if IsNotFound(err) {
				return itemNotFound(itemID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		item.Quantity = quantity

		titles, err := s.books.WithTxLookup(tx).BookTitles(ctx, []uuid.UUID{item.BookID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve book title")
		}
		title = titles[item.BookID]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCartMutation(metrics.CartOpUpdate)
	s.log(ctx, item, "cart.item_quantity_updated")
	out := toItemView(*item, title)
	return &out, nil
}

func (s *service) DeleteItem(ctx context.Context, itemID, callerUserID uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "cart.delete_item", trace.WithAttributes(
		attribute.String("cart_item.id", itemID.String()),
		attribute.String("user.id", callerUserID.String()),
	))
	defer func() { tracing.EndSpan(span, err) }()

	var item *models.CartItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		item, err = loadItem(ctx, repo, itemID)
		if err != nil {
			return err
		}
		if err := access.AssertOwnsCartItem(ctx, repo, itemID, callerUserID); err != nil {
			return err
		}
		if err := repo.TombstoneItem(ctx, itemID); err != nil {
			if IsNotFound(err) {
				return itemNotFound(itemID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncCartMutation(metrics.CartOpDelete)
	s.log(ctx, item, "cart.item_deleted")
	return nil
}

func (s *service) log(ctx context.Context, item *models.CartItem, msg string) {
	if s.logg == nil || item == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"cart_id":      item.ShoppingCartID.String(),
		"cart_item_id": item.ID.String(),
		"book_id":      item.BookID.String(),
		"quantity":     item.Quantity,
	})
	s.logg.Info(logCtx, msg)
}

func getOrCreate(ctx context.Context, repo CartRepository, userID uuid.UUID) (*models.ShoppingCart, error) {
	cart, err := repo.FindCartByOwner(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	cart, err = repo.CreateCartIfAbsent(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

func loadItem(ctx context.Context, repo CartRepository, itemID uuid.UUID) (*models.CartItem, error) {
	item, err := repo.FindLiveItem(ctx, itemID)
	if err != nil {
		if IsNotFound(err) {
			return nil, itemNotFound(itemID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	return item, nil
}

func itemNotFound(itemID uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "cart item %s not found", itemID)
}

// MaxQuantity bounds a single cart line. It keeps quantities inside the
// integer column and order totals inside numeric(12,2).
const MaxQuantity = 10000

func validateQuantity(quantity int) error {
	switch {
	case quantity < 1:
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"quantity": "must be at least 1"})
	case quantity > MaxQuantity:
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"quantity": fmt.Sprintf("must be at most %d", MaxQuantity)})
	}
	return nil
}
