package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bookstore-backend/internal/cart"
	"github.com/angelmondragon/bookstore-backend/internal/catalog"
	"github.com/angelmondragon/bookstore-backend/internal/orders"
	pkgAuth "github.com/angelmondragon/bookstore-backend/pkg/auth"
	"github.com/angelmondragon/bookstore-backend/pkg/config"
	"github.com/angelmondragon/bookstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/outbox"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	cfg     *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "bookstore", ExpirationMinutes: 5},
		RateLimit: config.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			OrdersPerMinute:   30,
		},
	}
}

func newTestAPI(t *testing.T, pinger stubPinger) *testAPI {
	t.Helper()
	cfg := testConfig()
	client := dbtest.Client(t)
	conn := client.DB()

	books := catalog.NewRepository(conn)
	catalogSvc, err := catalog.NewService(books, catalog.NewCategoryRepository(conn), client, nil)
	require.NoError(t, err)

	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, books, client, nil, nil)
	require.NoError(t, err)

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orders.NewRepository(conn),
		Carts:  cartRepo,
		Books:  books,
		Tx:     client,
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)

	handler := NewRouter(cfg, nil, pinger, nil, nil, catalogSvc, cartSvc, ordersSvc)
	return &testAPI{t: t, handler: handler, cfg: cfg}
}

func (a *testAPI) token(userID uuid.UUID, role enums.UserRole) string {
	a.t.Helper()
	token, err := pkgAuth.MintAccessToken(a.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: userID, Role: role})
	require.NoError(a.t, err)
	return token
}

func (a *testAPI) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealthRoutes(t *testing.T) {
	api := newTestAPI(t, stubPinger{})

	code, _ := api.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)

	down := newTestAPI(t, stubPinger{err: errors.New("db down")})
	code, env := down.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DEPENDENCY_ERROR", env.Error.Code)
}

func TestMetricsRoute(t *testing.T) {
	api := newTestAPI(t, stubPinger{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresAuthentication(t *testing.T) {
	api := newTestAPI(t, stubPinger{})

	code, env := api.do(http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, env.Error)

	code, _ = api.do(http.MethodGet, "/api/v1/cart", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	api := newTestAPI(t, stubPinger{})
	userToken := api.token(uuid.New(), enums.UserRoleUser)

	code, _ := api.do(http.MethodPatch, "/api/admin/v1/orders/"+uuid.NewString(), userToken, map[string]string{"status": "DELIVERED"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodPost, "/api/admin/v1/books", userToken, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestOrderFulfillmentFlow(t *testing.T) {
	api := newTestAPI(t, stubPinger{})
	admin := api.token(uuid.New(), enums.UserRoleAdmin)
	buyerID := uuid.New()
	buyer := api.token(buyerID, enums.UserRoleUser)
	stranger := api.token(uuid.New(), enums.UserRoleUser)

	createBook := func(title, isbn, price string) catalog.BookView {
		code, env := api.do(http.MethodPost, "/api/admin/v1/books", admin, map[string]any{
			"title": title, "author": "Author", "isbn": isbn, "price": price,
		})
		require.Equal(t, http.StatusCreated, code, "%+v", env.Error)
		return decode[catalog.BookView](t, env.Data)
	}
	b1 := createBook("First", "isbn-1", "44")
	b2 := createBook("Second", "isbn-2", "33")

	code, env := api.do(http.MethodGet, "/api/v1/books/"+b1.ID.String(), buyer, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "First", decode[catalog.BookView](t, env.Data).Title)

	code, env = api.do(http.MethodPost, "/api/v1/cart", buyer, map[string]any{"bookId": b1.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, code, "%+v", env.Error)
	first := decode[cart.CartItemView](t, env.Data)
	assert.Equal(t, "First", first.BookTitle)

	code, env = api.do(http.MethodPost, "/api/v1/cart", buyer, map[string]any{"bookId": b2.ID, "quantity": 1})
	require.Equal(t, http.StatusCreated, code)
	second := decode[cart.CartItemView](t, env.Data)

	code, _ = api.do(http.MethodPost, "/api/v1/cart", buyer, map[string]any{"bookId": b2.ID, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(http.MethodPut, "/api/v1/cart/cart-items/"+second.ID.String(), buyer, map[string]any{"quantity": 2})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, decode[cart.CartItemView](t, env.Data).Quantity)

	code, _ = api.do(http.MethodDelete, "/api/v1/cart/cart-items/"+first.ID.String(), stranger, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = api.do(http.MethodGet, "/api/v1/cart", buyer, nil)
	require.Equal(t, http.StatusOK, code)
	cartView := decode[cart.CartView](t, env.Data)
	assert.Equal(t, buyerID, cartView.UserID)
	assert.Len(t, cartView.CartItems, 2)

	code, env = api.do(http.MethodPost, "/api/v1/orders", buyer, map[string]any{"shippingAddress": "1 Main St"})
	require.Equal(t, http.StatusCreated, code, "%+v", env.Error)
	order := decode[orders.OrderView](t, env.Data)
	assert.Equal(t, "110", order.Total.String())
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.OrderItems, 2)

	code, env = api.do(http.MethodGet, "/api/v1/orders?limit=10", buyer, nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[struct {
		Items  []orders.OrderView `json:"items"`
		Cursor string             `json:"cursor"`
	}](t, env.Data)
	require.Len(t, page.Items, 1)
	assert.Empty(t, page.Cursor)

	itemsPath := "/api/v1/orders/" + order.ID.String() + "/items"
	code, _ = api.do(http.MethodGet, itemsPath, stranger, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = api.do(http.MethodGet, itemsPath, buyer, nil)
	require.Equal(t, http.StatusOK, code)

	itemID := order.OrderItems[0].ID
	code, env = api.do(http.MethodGet, itemsPath+"/"+itemID.String(), buyer, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, itemID, decode[orders.OrderItemView](t, env.Data).ID)

	code, _ = api.do(http.MethodGet, itemsPath+"/"+uuid.NewString(), buyer, nil)
	assert.Equal(t, http.StatusNotFound, code)

	statusPath := "/api/admin/v1/orders/" + order.ID.String()
	code, _ = api.do(http.MethodPatch, statusPath, admin, map[string]string{"status": "LOST"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = api.do(http.MethodPatch, statusPath, admin, map[string]string{"status": "DELIVERED"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, enums.OrderStatusDelivered, decode[orders.OrderView](t, env.Data).Status)

	code, env = api.do(http.MethodPatch, statusPath, admin, map[string]string{"status": "PENDING"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, enums.OrderStatusPending, decode[orders.OrderView](t, env.Data).Status)

	code, _ = api.do(http.MethodDelete, "/api/admin/v1/books/"+b1.ID.String(), admin, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = api.do(http.MethodGet, "/api/v1/books/"+b1.ID.String(), buyer, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestInvalidPathParams(t *testing.T) {
	api := newTestAPI(t, stubPinger{})
	buyer := api.token(uuid.New(), enums.UserRoleUser)

	code, _ := api.do(http.MethodGet, "/api/v1/orders/not-a-uuid/items", buyer, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodGet, "/api/v1/orders?limit=500", buyer, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCatalogBrowsingFlow(t *testing.T) {
	api := newTestAPI(t, stubPinger{})
	admin := api.token(uuid.New(), enums.UserRoleAdmin)
	reader := api.token(uuid.New(), enums.UserRoleUser)

	code, env := api.do(http.MethodPost, "/api/admin/v1/categories", admin, map[string]any{"name": "Poetry"})
	require.Equal(t, http.StatusCreated, code, "%+v", env.Error)
	poetry := decode[catalog.CategoryView](t, env.Data)

	code, _ = api.do(http.MethodPost, "/api/admin/v1/categories", reader, map[string]any{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = api.do(http.MethodPost, "/api/admin/v1/books", admin, map[string]any{
		"title": "Leaves of Grass", "author": "Walt Whitman", "isbn": "isbn-poetry", "price": "12.50",
		"categoryIds": []uuid.UUID{poetry.ID},
	})
	require.Equal(t, http.StatusCreated, code, "%+v", env.Error)
	book := decode[catalog.BookView](t, env.Data)
	assert.Equal(t, []uuid.UUID{poetry.ID}, book.CategoryIDs)

	code, env = api.do(http.MethodPost, "/api/admin/v1/books", admin, map[string]any{
		"title": "Unfiled", "author": "Anon", "isbn": "isbn-unfiled", "price": "3",
	})
	require.Equal(t, http.StatusCreated, code, "%+v", env.Error)

	type bookPage struct {
		Items  []catalog.BookView `json:"items"`
		Cursor string             `json:"cursor"`
	}

	code, env = api.do(http.MethodGet, "/api/v1/books?limit=1", reader, nil)
	require.Equal(t, http.StatusOK, code)
	first := decode[bookPage](t, env.Data)
	require.Len(t, first.Items, 1)
	require.NotEmpty(t, first.Cursor)

	code, env = api.do(http.MethodGet, "/api/v1/books?limit=1&cursor="+url.QueryEscape(first.Cursor), reader, nil)
	require.Equal(t, http.StatusOK, code)
	second := decode[bookPage](t, env.Data)
	require.Len(t, second.Items, 1)
	assert.NotEqual(t, first.Items[0].ID, second.Items[0].ID)
	assert.Empty(t, second.Cursor)

	code, env = api.do(http.MethodGet, "/api/v1/categories/"+poetry.ID.String()+"/books", reader, nil)
	require.Equal(t, http.StatusOK, code)
	filed := decode[bookPage](t, env.Data)
	require.Len(t, filed.Items, 1)
	assert.Equal(t, book.ID, filed.Items[0].ID)

	code, _ = api.do(http.MethodDelete, "/api/admin/v1/categories/"+poetry.ID.String(), admin, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = api.do(http.MethodGet, "/api/v1/categories/"+poetry.ID.String(), reader, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
