package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvalidLimitError indicates a non-positive topN parameter on a ranked
// query.
type InvalidLimitError struct {
	Limit int
}

func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("limit must be greater than 0, got %d", e.Limit)
}

// Summary holds the store-wide scalar metrics. Every field is zero when the
// store has no orders. AverageItemsPerOrder counts distinct order lines, not
// summed units; TotalUnitsSold carries the unit view.
type Summary struct {
	TotalOrders          int64
	TotalRevenue         decimal.Decimal
	AverageOrderValue    decimal.Decimal
	AverageItemsPerOrder decimal.Decimal
	TotalUnitsSold       int64
	TotalCustomers       int64
}

// ProductRank is one row of a ranked product query. Count is either the
// number of distinct orders containing the product or the summed units sold,
// depending on the query.
type ProductRank struct {
	ProductID int64
	Name      string
	Count     int64
}

// CustomerRank is one row of the top-customers query.
type CustomerRank struct {
	UserID     int64
	Username   string
	TotalSpent decimal.Decimal
}

// OrderInfo is the order header shape returned by list queries.
type OrderInfo struct {
	ID        int64
	UserID    int64
	Total     decimal.Decimal
	CreatedAt time.Time
}

// CartInfo identifies a cart for the inactivity sweep.
type CartInfo struct {
	ID        int64
	UserID    int64
	UpdatedAt time.Time
}

// CartTotals is a per-user cart rollup: distinct lines and summed quantity.
type CartTotals struct {
	Lines    int64
	Quantity int64
}

// Repository defines the read-side queries over persisted orders, order
// items, and carts. Every method recomputes from the store; results reflect
// the latest committed state with no snapshot guarantee. Ranked queries break
// ties by ascending entity ID.
type Repository interface {
	TotalOrders(ctx context.Context) (int64, error)
	TotalRevenue(ctx context.Context) (decimal.Decimal, error)
	AverageOrderValue(ctx context.Context) (decimal.Decimal, error)
	AverageItemsPerOrder(ctx context.Context) (decimal.Decimal, error)
	TotalUnitsSold(ctx context.Context) (int64, error)
	TotalCustomers(ctx context.Context) (int64, error)

	// ProductsByOrderCount ranks products by the number of distinct orders
	// containing them; ascending=true returns the least ordered first.
	ProductsByOrderCount(ctx context.Context, limit int, ascending bool) ([]ProductRank, error)

	// ProductsByUnitsSold ranks products by summed order-item quantity.
	ProductsByUnitsSold(ctx context.Context, limit int, ascending bool) ([]ProductRank, error)

	TopCustomers(ctx context.Context, limit int) ([]CustomerRank, error)

	OrdersWithinRange(ctx context.Context, start, end time.Time) ([]OrderInfo, error)
	RevenueWithinRange(ctx context.Context, start, end time.Time) (decimal.Decimal, error)
	AverageOrderValueWithinRange(ctx context.Context, start, end time.Time) (decimal.Decimal, error)
	OrdersExceedingTotal(ctx context.Context, minTotal decimal.Decimal) ([]OrderInfo, error)
	OrdersContainingProduct(ctx context.Context, productID int64) ([]OrderInfo, error)

	// MostExpensiveOrder and LeastExpensiveOrder return nil when the store
	// has no orders.
	MostExpensiveOrder(ctx context.Context) (*OrderInfo, error)
	LeastExpensiveOrder(ctx context.Context) (*OrderInfo, error)

	ProductUnitsSold(ctx context.Context, productID int64) (int64, error)

	InactiveCarts(ctx context.Context, threshold time.Time) ([]CartInfo, error)

	// DeleteInactiveCarts removes carts untouched since threshold and
	// returns the exact count removed.
	DeleteInactiveCarts(ctx context.Context, threshold time.Time) (int64, error)

	UserOrderHistory(ctx context.Context, userID int64) ([]OrderInfo, error)
	UserCartValue(ctx context.Context, userID int64) (decimal.Decimal, error)
	UserCartTotals(ctx context.Context, userID int64) (CartTotals, error)
}
