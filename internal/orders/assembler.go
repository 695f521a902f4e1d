package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bookstore-backend/internal/catalog"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
)

// assembleItems turns live cart items into order items priced at the catalog's
// current price. The price is read once per line and never revisited.
func assembleItems(ctx context.Context, books catalog.Lookup, orderID uuid.UUID, cartItems []models.CartItem, now time.Time) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(cartItems))
	for _, ci := range cartItems {
		price, err := books.BookPrice(ctx, ci.BookID)
		if err != nil {
			if catalog.IsNotFound(err) {
				return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "book %s not found", ci.BookID)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read book price")
		}
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			BookID:    ci.BookID,
			Quantity:  ci.Quantity,
			Price:     price,
			CreatedAt: now,
		})
	}
	return items, nil
}

// computeTotal sums price × quantity over the items.
func computeTotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
