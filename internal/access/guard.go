// Package access enforces per-user ownership of orders and cart contents.
package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
)

// OrderOwnershipChecker reports whether a live order with the id belongs to the user.
type OrderOwnershipChecker interface {
	ExistsByIDAndUser(ctx context.Context, orderID, userID uuid.UUID) (bool, error)
}

// CartItemOwnerResolver returns the user owning the cart that holds the item.
// Unknown items yield gorm.ErrRecordNotFound.
type CartItemOwnerResolver interface {
	FindItemOwner(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error)
}

// AssertOwnsOrder fails with CodeForbidden unless userID owns the live order.
// A missing order is indistinguishable from someone else's.
func AssertOwnsOrder(ctx context.Context, checker OrderOwnershipChecker, orderID, userID uuid.UUID) error {
	if checker == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order ownership checker required")
	}
	owned, err := checker.ExistsByIDAndUser(ctx, orderID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order ownership")
	}
	if !owned {
		return pkgerrors.Newf(pkgerrors.CodeForbidden, "not allowed to access order %s", orderID)
	}
	return nil
}

// AssertOwnsCartItem fails with CodeForbidden unless the item's cart belongs to userID.
func AssertOwnsCartItem(ctx context.Context, resolver CartItemOwnerResolver, itemID, userID uuid.UUID) error {
	if resolver == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "cart item owner resolver required")
	}
	owner, err := resolver.FindItemOwner(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return forbiddenItem(itemID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve cart item owner")
	}
	if owner != userID {
		return forbiddenItem(itemID)
	}
	return nil
}

func forbiddenItem(itemID uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeForbidden, "not allowed to modify cart item %s", itemID)
}
