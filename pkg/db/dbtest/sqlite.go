// Package dbtest opens isolated in-memory sqlite databases carrying the
// bookstore schema for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/bookstore-backend/pkg/db"
)

// Schema mirrors the goose migrations using sqlite column types.
const Schema = `
CREATE TABLE books (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  isbn TEXT NOT NULL,
  price TEXT NOT NULL,
  description TEXT,
  cover_image TEXT,
  is_deleted BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX ux_books_isbn_live ON books (isbn) WHERE is_deleted = 0;

CREATE TABLE categories (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  is_deleted BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);

CREATE TABLE book_categories (
  book_id TEXT NOT NULL,
  category_id TEXT NOT NULL,
  created_at DATETIME,
  PRIMARY KEY (book_id, category_id)
);

CREATE TABLE shopping_carts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  is_deleted BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX ux_shopping_carts_user_live ON shopping_carts (user_id) WHERE is_deleted = 0;

CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  shopping_cart_id TEXT NOT NULL,
  book_id TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  is_deleted BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);

CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  total TEXT NOT NULL,
  order_date DATETIME NOT NULL,
  shipping_address TEXT NOT NULL,
  is_deleted BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);

CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  book_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price TEXT NOT NULL,
  is_deleted BOOLEAN NOT NULL DEFAULT 0,
  created_at DATETIME
);

CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);
`

var openSeq atomic.Uint64

// Open returns a gorm connection to a fresh database. Every call gets its own
// database, even within one test. The schema is applied and the connection
// is closed when the test ends.
func Open(tb testing.TB) *gorm.DB {
	tb.Helper()

	name := fmt.Sprintf("%s_%d", strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name()), openSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(tb, err)

	sqlDB, err := conn.DB()
	require.NoError(tb, err)
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(tb, conn.Exec(stmt).Error)
	}
	return conn
}

// Client wraps Open in a *db.Client so services get a real transaction runner.
func Client(tb testing.TB) *db.Client {
	tb.Helper()
	return db.NewFromGorm(Open(tb))
}
