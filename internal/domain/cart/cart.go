package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNoCart is returned by operations that require an existing cart when the
// user has never opened one.
var ErrNoCart = errors.New("user has no cart")

// InvalidQuantityError indicates a non-positive quantity in an add or update
// request.
type InvalidQuantityError struct {
	Quantity int32
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0, got %d", e.Quantity)
}

// Cart is a user's pending selection. Each user has at most one; it is
// created lazily on first access and survives checkout empty.
type Cart struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is one line of a cart: at most one per (cart, product) pair.
// UnitPrice is the current catalog price at read time, not a snapshot; cart
// values float with catalog price changes.
type Item struct {
	CartID      int64
	ProductID   int64
	ProductName string
	Quantity    int32
	UnitPrice   decimal.Decimal
}

// Totals is a cart rollup: distinct lines, summed quantity, and summed value
// at current catalog prices.
type Totals struct {
	Lines    int64
	Quantity int64
	Value    decimal.Decimal
}

// Repository defines persistence operations for carts and their items. Add
// and set are single-statement upserts so concurrent increments on the same
// (cart, product) pair never lose updates.
type Repository interface {
	GetOrCreate(ctx context.Context, userID int64) (*Cart, error)

	// Get returns the user's cart or ErrNoCart.
	Get(ctx context.Context, userID int64) (*Cart, error)

	// AddItemQuantity atomically increments the item's quantity, creating the
	// item when absent.
	AddItemQuantity(ctx context.Context, cartID, productID int64, quantity int32) (*Item, error)

	// SetItemQuantity sets the item's quantity, creating the item when absent.
	SetItemQuantity(ctx context.Context, cartID, productID int64, quantity int32) (*Item, error)

	// DeleteItem removes the item; deleting an absent item is not an error.
	DeleteItem(ctx context.Context, cartID, productID int64) error

	ListItems(ctx context.Context, cartID int64) ([]Item, error)

	// Clear deletes every item of the cart, leaving the cart itself in place.
	Clear(ctx context.Context, cartID int64) error

	Totals(ctx context.Context, cartID int64) (Totals, error)
}
