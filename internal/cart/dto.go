package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
)

// AddItemInput appends a line item. Adding a book twice creates two lines.
type AddItemInput struct {
	BookID   uuid.UUID
	Quantity int
}

type CartItemView struct {
	ID        uuid.UUID `json:"id"`
	BookID    uuid.UUID `json:"bookId"`
	BookTitle string    `json:"bookTitle"`
	Quantity  int       `json:"quantity"`
}

type CartView struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"userId"`
	CartItems []CartItemView `json:"cartItems"`
}

func toItemView(item models.CartItem, title string) CartItemView {
	return CartItemView{
		ID:        item.ID,
		BookID:    item.BookID,
		BookTitle: title,
		Quantity:  item.Quantity,
	}
}
