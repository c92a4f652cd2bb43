package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for the order pipeline.
var (
	// ErrEmptyCart is returned by checkout when the user has no cart or the
	// cart has no items.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrNonCashTotal is returned when a cash payment is offered against a
	// total that is not a whole number of shillings.
	ErrNonCashTotal = errors.New("order total is not payable in cash denominations")
)

// InvalidDiscountError indicates a discount percentage outside [0, 100].
type InvalidDiscountError struct {
	Percentage decimal.Decimal
}

func (e *InvalidDiscountError) Error() string {
	return fmt.Sprintf("discount percentage must be between 0 and 100, got %s", e.Percentage)
}

// Order is an immutable record of a completed checkout. Total equals the sum
// of item price*quantity at creation time; the only later mutation is the
// explicit discount override, which is destructive and compounds on repeated
// application.
type Order struct {
	ID        int64
	UserID    int64
	Total     decimal.Decimal
	CreatedAt time.Time
	Items     []Item
}

// Item is one order line. Price is the product's catalog price snapshotted at
// checkout; later catalog changes never affect it.
type Item struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int32
	Price     decimal.Decimal
}

// CheckoutLine is a cart line resolved against the catalog at checkout time.
type CheckoutLine struct {
	ProductID int64
	Quantity  int32
	UnitPrice decimal.Decimal
}

// Repository defines the persistence operations of the order pipeline. The
// mutating methods are transaction-aware: inside WithTx they run on the
// transaction, outside it on the pool.
type Repository interface {
	// WithTx runs fn inside a single transaction; fn's error rolls back.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// CheckoutLines locks the user's cart row and returns its lines joined
	// with current catalog prices. A user without a cart yields an empty
	// slice.
	CheckoutLines(ctx context.Context, userID int64) ([]CheckoutLine, error)

	// CreateOrder persists the order header and fills in ID and CreatedAt.
	CreateOrder(ctx context.Context, o *Order) error

	// AddItems persists the order's lines.
	AddItems(ctx context.Context, orderID int64, lines []CheckoutLine) error

	// ClearCart deletes every cart item of the user; the cart row survives.
	ClearCart(ctx context.Context, userID int64) error

	// Get returns the order with its items, or ErrNotFound.
	Get(ctx context.Context, id int64) (*Order, error)

	// GetForUpdate locks the order row for the duration of the enclosing
	// transaction and returns it without items.
	GetForUpdate(ctx context.Context, id int64) (*Order, error)

	// UpdateTotal overwrites the order's stored total.
	UpdateTotal(ctx context.Context, id int64, total decimal.Decimal) error
}
