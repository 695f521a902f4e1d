package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bookstore-backend/api/controllers"
	"github.com/angelmondragon/bookstore-backend/api/middleware"
	"github.com/angelmondragon/bookstore-backend/internal/cart"
	"github.com/angelmondragon/bookstore-backend/internal/catalog"
	"github.com/angelmondragon/bookstore-backend/internal/orders"
	"github.com/angelmondragon/bookstore-backend/pkg/auth/session"
	"github.com/angelmondragon/bookstore-backend/pkg/config"
	"github.com/angelmondragon/bookstore-backend/pkg/db"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/bookstore-backend/pkg/redis"
)

// NewRouter wires the HTTP surface. redisClient and sessions may be nil, in
// which case idempotency, the distributed order limit and session checks are
// skipped.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	sessions session.AccessSessionChecker,
	catalogService catalog.Service,
	cartService cart.Service,
	ordersService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	readyDeps := map[string]controllers.Pinger{"database": dbP}
	var idempotencyStore pkgredis.IdempotencyStore
	var ordersLimiter middleware.Limiter
	if redisClient != nil {
		readyDeps["redis"] = redisClient
		idempotencyStore = redisClient
		ordersLimiter = middleware.NewRedisWindowLimiter(redisClient, "orders", cfg.RateLimit.OrdersPerMinute, time.Minute)
	}
	userLimiter := middleware.NewLocalLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	idempotent := middleware.Idempotency(idempotencyStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readyDeps, logg))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RateLimit(userLimiter, logg))

		r.Get("/books", controllers.BooksList(catalogService, logg))
		r.Get("/books/{bookId}", controllers.BookGet(catalogService, logg))

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CategoriesList(catalogService, logg))
			r.Get("/{categoryId}", controllers.CategoryGet(catalogService, logg))
			r.Get("/{categoryId}/books", controllers.CategoryBooksList(catalogService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartService, logg))
			r.With(idempotent).Post("/", controllers.CartAddItem(cartService, logg))
			r.Put("/cart-items/{itemId}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/cart-items/{itemId}", controllers.CartDeleteItem(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(ordersService, logg))
			r.With(middleware.RateLimit(ordersLimiter, logg), idempotent).Post("/", controllers.OrderCreate(ordersService, logg))
			r.Get("/{orderId}/items", controllers.OrderItemsList(ordersService, logg))
			r.Get("/{orderId}/items/{itemId}", controllers.OrderItemGet(ordersService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
		r.Use(middleware.RateLimit(userLimiter, logg))

		r.Patch("/orders/{orderId}", controllers.AdminOrderStatusUpdate(ordersService, logg))

		r.Route("/books", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.AdminBookCreate(catalogService, logg))
			r.Put("/{bookId}", controllers.AdminBookUpdate(catalogService, logg))
			r.Delete("/{bookId}", controllers.AdminBookDelete(catalogService, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.With(idempotent).Post("/", controllers.AdminCategoryCreate(catalogService, logg))
			r.Put("/{categoryId}", controllers.AdminCategoryUpdate(catalogService, logg))
			r.Delete("/{categoryId}", controllers.AdminCategoryDelete(catalogService, logg))
		})
	})

	return r
}
