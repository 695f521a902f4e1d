package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/internal/access"
	"github.com/angelmondragon/bookstore-backend/internal/cart"
	"github.com/angelmondragon/bookstore-backend/internal/catalog"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
	"github.com/angelmondragon/bookstore-backend/pkg/outbox"
	"github.com/angelmondragon/bookstore-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
	"github.com/angelmondragon/bookstore-backend/pkg/tracing"
)

var tracer = tracing.Tracer("bookstore/internal/orders")

// Service turns carts into orders and serves order reads.
//
// CreateOrder leaves the cart untouched: its items stay in place after the
// order is placed and a second call builds another order from them.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*OrderView, error)
	// UpdateStatus assigns any status regardless of the current one.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*OrderView, error)
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*pagination.Page[OrderView], error)
	ListOrderItems(ctx context.Context, orderID, callerUserID uuid.UUID, params pagination.Params) (*pagination.Page[OrderItemView], error)
	GetOrderItem(ctx context.Context, orderID, itemID, callerUserID uuid.UUID) (*OrderItemView, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repo    Repository
	Carts   cart.TxReader
	Books   catalog.TxLookup
	Tx      txRunner
	Outbox  outboxPublisher
	Metrics *metrics.FulfillmentMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	carts   cart.TxReader
	books   catalog.TxLookup
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.FulfillmentMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if params.Books == nil {
		return nil, fmt.Errorf("catalog lookup required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    params.Repo,
		carts:   params.Carts,
		books:   params.Books,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (view *OrderView, err error) {
	ctx, span := tracer.Start(ctx, "orders.create", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer func() { tracing.EndSpan(span, err) }()

	address := strings.TrimSpace(input.ShippingAddress)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"shippingAddress": "is required"})
	}

	var order models.Order
	var items []models.OrderItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTxReader(tx)
		shoppingCart, err := carts.FindCartByOwner(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no shopping cart for user")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shopping cart")
		}
		cartItems, err := carts.ListLiveItems(ctx, shoppingCart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
		}

		now := s.now()
		order = models.Order{
			ID:              uuid.New(),
			UserID:          userID,
			Status:          enums.OrderStatusPending,
			OrderDate:       now,
			ShippingAddress: address,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		items, err = assembleItems(ctx, s.books.WithTxLookup(tx), order.ID, cartItems, now)
		if err != nil {
			return err
		}
		order.Total = computeTotal(items)

		if err := s.repo.WithTx(tx).CreateOrder(ctx, &order, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.UserRoleUser.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:   order.ID,
				UserID:    userID,
				Total:     order.Total,
				ItemCount: len(items),
				Status:    order.Status,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID.String()), attribute.Int("order.items", len(items)))
	s.metrics.ObserveOrderCreated(order.Total)
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"user_id":    userID.String(),
			"total":      order.Total.String(),
			"item_count": len(items),
		})
		s.logg.Info(logCtx, "order.created")
	}

	out := toOrderView(order, items)
	return &out, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (view *OrderView, err error) {
	ctx, span := tracer.Start(ctx, "orders.update_status", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("order.status", status.String()),
	))
	defer func() { tracing.EndSpan(span, err) }()

	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"status": "must be one of PENDING COMPLETED DELIVERED ON_THE_WAY"})
	}

	var order *models.Order
	var previous enums.OrderStatus
	var items []models.OrderItem
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.FindLiveByID(ctx, orderID)
		if err != nil {
			return orderNotFoundOr(err, orderID)
		}
		previous = order.Status
		if err := repo.UpdateStatus(ctx, orderID, status); err != nil {
			return orderNotFoundOr(err, orderID)
		}
		order.Status = status

		byOrder, err := repo.ListItemsByOrders(ctx, []uuid.UUID{orderID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order items")
		}
		items = byOrder[orderID]

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:        orderID,
				UserID:         order.UserID,
				PreviousStatus: previous,
				Status:         status,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status changed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncStatusUpdate(status.String())
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{
			"previous_status": previous,
			"status":          status,
		})
		s.logg.Info(logCtx, "order.status_updated")
	}

	out := toOrderView(*order, items)
	return &out, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (page *pagination.Page[OrderView], err error) {
	ctx, span := tracer.Start(ctx, "orders.list", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer func() { tracing.EndSpan(span, err) }()

	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var views []OrderView
	var next *pagination.Cursor
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.ListByOwner(ctx, userID, params.Limit, cursor)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
		}
		rows, next = pagination.Trim(rows, params.Limit, orderCursor)

		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		itemsByOrder, err := repo.ListItemsByOrders(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order items")
		}

		views = make([]OrderView, 0, len(rows))
		for _, row := range rows {
			views = append(views, toOrderView(row, itemsByOrder[row.ID]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pagination.Page[OrderView]{Items: views, Cursor: pagination.EncodeNext(next)}, nil
}

func (s *service) ListOrderItems(ctx context.Context, orderID, callerUserID uuid.UUID, params pagination.Params) (page *pagination.Page[OrderItemView], err error) {
	ctx, span := tracer.Start(ctx, "orders.list_items", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("user.id", callerUserID.String()),
	))
	defer func() { tracing.EndSpan(span, err) }()

	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	var views []OrderItemView
	var next *pagination.Cursor
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := access.AssertOwnsOrder(ctx, repo, orderID, callerUserID); err != nil {
			return err
		}
		rows, err := repo.ListItemsByOrder(ctx, orderID, params.Limit, cursor)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order items")
		}
		rows, next = pagination.Trim(rows, params.Limit, itemCursor)

		views = make([]OrderItemView, 0, len(rows))
		for _, row := range rows {
			views = append(views, toItemView(row))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &pagination.Page[OrderItemView]{Items: views, Cursor: pagination.EncodeNext(next)}, nil
}

func (s *service) GetOrderItem(ctx context.Context, orderID, itemID, callerUserID uuid.UUID) (view *OrderItemView, err error) {
	ctx, span := tracer.Start(ctx, "orders.get_item", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("order_item.id", itemID.String()),
	))
	defer func() { tracing.EndSpan(span, err) }()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := access.AssertOwnsOrder(ctx, repo, orderID, callerUserID); err != nil {
			return err
		}
		item, err := repo.FindItem(ctx, orderID, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "no item %s for order %s", itemID, orderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		out := toItemView(*item)
		view = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func parseCursor(raw string) (*pagination.Cursor, error) {
	cursor, err := pagination.ParseCursor(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]string{"cursor": "is malformed"})
	}
	return cursor, nil
}

func orderNotFoundOr(err error, orderID uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %s not found", orderID)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
