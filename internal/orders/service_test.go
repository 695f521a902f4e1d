package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/internal/cart"
	"github.com/angelmondragon/bookstore-backend/internal/catalog"
	"github.com/angelmondragon/bookstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/angelmondragon/bookstore-backend/pkg/outbox"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
)

type fixture struct {
	db    *gorm.DB
	svc   Service
	carts cart.Service
	books *catalog.Repository
}

type failingOutbox struct{}

func (failingOutbox) Emit(context.Context, *gorm.DB, outbox.DomainEvent) error {
	return errors.New("outbox unavailable")
}

func newFixture(t *testing.T, publisher outboxPublisher) fixture {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()

	books := catalog.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	carts, err := cart.NewService(cartRepo, books, client, nil, nil)
	require.NoError(t, err)

	if publisher == nil {
		publisher = outbox.NewService(outbox.NewRepository(conn), nil)
	}
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Carts:  cartRepo,
		Books:  books,
		Tx:     client,
		Outbox: publisher,
	})
	require.NoError(t, err)
	return fixture{db: conn, svc: svc, carts: carts, books: books}
}

func (f fixture) seedBook(t *testing.T, price string) *models.Book {
	t.Helper()
	book := &models.Book{
		Title:  "Book " + price,
		Author: "Author",
		ISBN:   uuid.NewString(),
		Price:  decimal.RequireFromString(price),
	}
	require.NoError(t, f.books.Create(context.Background(), book))
	return book
}

func (f fixture) addToCart(t *testing.T, userID, bookID uuid.UUID, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, cart.AddItemInput{BookID: bookID, Quantity: qty})
	require.NoError(t, err)
}

func (f fixture) placeOrder(t *testing.T, userID uuid.UUID) *OrderView {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), userID, CreateOrderInput{ShippingAddress: "1 Main St"})
	require.NoError(t, err)
	return order
}

func (f fixture) outboxEvents(t *testing.T, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.db.Where("event_type = ?", eventType).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func TestCreateOrderEndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	userID := uuid.New()
	b1 := f.seedBook(t, "44")
	b2 := f.seedBook(t, "33")
	f.addToCart(t, userID, b1.ID, 1)
	f.addToCart(t, userID, b2.ID, 2)

	order := f.placeOrder(t, userID)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, userID, order.UserID)
	assert.Equal(t, "1 Main St", order.ShippingAddress)
	assert.True(t, order.Total.Equal(decimal.NewFromInt(110)), "total %s", order.Total)
	require.Len(t, order.OrderItems, 2)

	prices := map[uuid.UUID]decimal.Decimal{}
	for _, item := range order.OrderItems {
		prices[item.BookID] = item.Price
	}
	assert.True(t, prices[b1.ID].Equal(decimal.NewFromInt(44)))
	assert.True(t, prices[b2.ID].Equal(decimal.NewFromInt(33)))

	// the cart is left as it was
	view, err := f.carts.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, view.CartItems, 2)

	events := f.outboxEvents(t, enums.EventOrderCreated)
	require.Len(t, events, 1)
	assert.Equal(t, order.ID, events[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, userID, envelope.Actor.UserID)
	var payload struct {
		Total     string `json:"total"`
		ItemCount int    `json:"itemCount"`
	}
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "110", payload.Total)
	assert.Equal(t, 2, payload.ItemCount)
}

func TestCreateOrderWithoutCart(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{ShippingAddress: "x"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Contains(t, err.Error(), "no shopping cart for user")
}

func TestCreateOrderRequiresShippingAddress(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderInput{ShippingAddress: "   "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateOrderFromEmptyCart(t *testing.T) {
	f := newFixture(t, nil)
	userID := uuid.New()
	_, err := f.carts.GetOrCreateCart(context.Background(), userID)
	require.NoError(t, err)

	order := f.placeOrder(t, userID)
	assert.True(t, order.Total.IsZero())
	assert.Empty(t, order.OrderItems)
}

func TestCreateOrderRollsBackOnFailure(t *testing.T) {
	f := newFixture(t, failingOutbox{})
	userID := uuid.New()
	book := f.seedBook(t, "10")
	f.addToCart(t, userID, book.ID, 3)

	_, err := f.svc.CreateOrder(context.Background(), userID, CreateOrderInput{ShippingAddress: "1 Main St"})
	require.Error(t, err)

	var orders, items int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, f.db.Model(&models.OrderItem{}).Count(&items).Error)
	assert.Zero(t, orders)
	assert.Zero(t, items)
}

func TestPriceSnapshotSurvivesCatalogChange(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	book := f.seedBook(t, "20")
	f.addToCart(t, userID, book.ID, 1)
	order := f.placeOrder(t, userID)

	book.Price = decimal.NewFromInt(99)
	require.NoError(t, f.books.Update(ctx, book))

	page, err := f.svc.ListOrderItems(ctx, order.ID, userID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].Price.Equal(decimal.NewFromInt(20)))

	orders, err := f.svc.ListOrders(ctx, userID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, orders.Items, 1)
	assert.True(t, orders.Items[0].Total.Equal(decimal.NewFromInt(20)))
}

func TestOrderItemReadsRequireOwnership(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	owner := uuid.New()
	book := f.seedBook(t, "5")
	f.addToCart(t, owner, book.ID, 1)
	order := f.placeOrder(t, owner)
	itemID := order.OrderItems[0].ID

	_, err := f.svc.ListOrderItems(ctx, order.ID, uuid.New(), pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.GetOrderItem(ctx, order.ID, itemID, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.ListOrderItems(ctx, uuid.New(), owner, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	item, err := f.svc.GetOrderItem(ctx, order.ID, itemID, owner)
	require.NoError(t, err)
	assert.Equal(t, book.ID, item.BookID)
}

func TestGetOrderItemIsScopedToOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	book := f.seedBook(t, "5")
	f.addToCart(t, userID, book.ID, 1)
	first := f.placeOrder(t, userID)
	second := f.placeOrder(t, userID)

	foreignItem := first.OrderItems[0].ID
	_, err := f.svc.GetOrderItem(ctx, second.ID, foreignItem, userID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Contains(t, err.Error(), "no item "+foreignItem.String()+" for order "+second.ID.String())
}

func TestUpdateStatusIsUnconditional(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	book := f.seedBook(t, "8")
	f.addToCart(t, userID, book.ID, 1)
	order := f.placeOrder(t, userID)

	transitions := 0
	for _, prior := range enums.OrderStatuses() {
		for _, next := range enums.OrderStatuses() {
			_, err := f.svc.UpdateStatus(ctx, order.ID, prior)
			require.NoError(t, err)
			updated, err := f.svc.UpdateStatus(ctx, order.ID, next)
			require.NoError(t, err, "%s -> %s", prior, next)
			assert.Equal(t, next, updated.Status)
			assert.Len(t, updated.OrderItems, 1)
			transitions += 2
		}
	}

	var stored models.Order
	require.NoError(t, f.db.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusOnTheWay, stored.Status)
	assert.Len(t, f.outboxEvents(t, enums.EventOrderStatusChanged), transitions)
}

func TestUpdateStatusErrors(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.UpdateStatus(context.Background(), uuid.New(), enums.OrderStatusDelivered)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.UpdateStatus(context.Background(), uuid.New(), enums.OrderStatus("LOST"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListOrdersPaginates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	book := f.seedBook(t, "3")
	f.addToCart(t, userID, book.ID, 1)

	placed := []uuid.UUID{
		f.placeOrder(t, userID).ID,
		f.placeOrder(t, userID).ID,
		f.placeOrder(t, userID).ID,
	}
	other := uuid.New()
	f.addToCart(t, other, book.ID, 1)
	f.placeOrder(t, other)

	first, err := f.svc.ListOrders(ctx, userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.Cursor)
	assert.Equal(t, placed[2], first.Items[0].ID)
	assert.Equal(t, placed[1], first.Items[1].ID)

	second, err := f.svc.ListOrders(ctx, userID, pagination.Params{Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.Cursor)
	assert.Equal(t, placed[0], second.Items[0].ID)

	_, err = f.svc.ListOrders(ctx, userID, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListOrderItemsPagesAcrossSharedTimestamp(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	userID := uuid.New()
	for _, price := range []string{"1", "2", "3", "4"} {
		f.addToCart(t, userID, f.seedBook(t, price).ID, 1)
	}
	order := f.placeOrder(t, userID)
	require.Len(t, order.OrderItems, 4)

	// every line of one order is stamped with the same created_at
	var stamps []models.OrderItem
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&stamps).Error)
	for _, item := range stamps {
		assert.True(t, item.CreatedAt.Equal(stamps[0].CreatedAt))
	}

	seen := map[uuid.UUID]bool{}
	params := pagination.Params{Limit: 1}
	for pageNo := 0; pageNo < 4; pageNo++ {
		page, err := f.svc.ListOrderItems(ctx, order.ID, userID, params)
		require.NoError(t, err)
		require.Len(t, page.Items, 1, "page %d", pageNo)
		id := page.Items[0].ID
		assert.False(t, seen[id], "item %s returned twice", id)
		seen[id] = true
		if pageNo < 3 {
			require.NotEmpty(t, page.Cursor, "page %d", pageNo)
		} else {
			assert.Empty(t, page.Cursor)
		}
		params.Cursor = page.Cursor
	}
	assert.Len(t, seen, 4)
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
