package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/ugx-shop/internal/domain/analytics"
)

const (
	totalOrdersSQL   = `SELECT COUNT(*) FROM orders`
	totalRevenueSQL  = `SELECT COALESCE(SUM(total), 0) FROM orders`
	avgOrderValueSQL = `SELECT COALESCE(AVG(total), 0) FROM orders`

	avgItemsPerOrderSQL = `SELECT COALESCE(AVG(n), 0) FROM (
			SELECT COUNT(*) AS n FROM order_items GROUP BY order_id
		) per_order`

	totalUnitsSoldSQL = `SELECT COALESCE(SUM(quantity), 0) FROM order_items`
	totalCustomersSQL = `SELECT COUNT(DISTINCT user_id) FROM orders`

	productsByOrderCountSQL = `SELECT p.id, p.name, COUNT(DISTINCT oi.order_id) AS n
		FROM products p
		LEFT JOIN order_items oi ON oi.product_id = p.id
		GROUP BY p.id, p.name
		ORDER BY n DESC, p.id ASC
		LIMIT $1`

	productsByOrderCountAscSQL = `SELECT p.id, p.name, COUNT(DISTINCT oi.order_id) AS n
		FROM products p
		LEFT JOIN order_items oi ON oi.product_id = p.id
		GROUP BY p.id, p.name
		ORDER BY n ASC, p.id ASC
		LIMIT $1`

	productsByUnitsSoldSQL = `SELECT p.id, p.name, COALESCE(SUM(oi.quantity), 0) AS n
		FROM products p
		LEFT JOIN order_items oi ON oi.product_id = p.id
		GROUP BY p.id, p.name
		ORDER BY n DESC, p.id ASC
		LIMIT $1`

	productsByUnitsSoldAscSQL = `SELECT p.id, p.name, COALESCE(SUM(oi.quantity), 0) AS n
		FROM products p
		LEFT JOIN order_items oi ON oi.product_id = p.id
		GROUP BY p.id, p.name
		ORDER BY n ASC, p.id ASC
		LIMIT $1`

	topCustomersSQL = `SELECT u.id, u.username, COALESCE(SUM(o.total), 0) AS spent
		FROM orders o
		JOIN users u ON u.id = o.user_id
		GROUP BY u.id, u.username
		ORDER BY spent DESC, u.id ASC
		LIMIT $1`

	orderInfoColumns = `id, user_id, total, created_at`

	ordersWithinRangeSQL = `SELECT ` + orderInfoColumns + ` FROM orders
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC, id DESC`

	revenueWithinRangeSQL = `SELECT COALESCE(SUM(total), 0) FROM orders
		WHERE created_at >= $1 AND created_at <= $2`

	avgOrderValueWithinRangeSQL = `SELECT COALESCE(AVG(total), 0) FROM orders
		WHERE created_at >= $1 AND created_at <= $2`

	ordersExceedingTotalSQL = `SELECT ` + orderInfoColumns + ` FROM orders
		WHERE total > $1
		ORDER BY total DESC, id ASC`

	ordersContainingProductSQL = `SELECT DISTINCT o.id, o.user_id, o.total, o.created_at
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE oi.product_id = $1
		ORDER BY o.created_at DESC, o.id DESC`

	mostExpensiveOrderSQL = `SELECT ` + orderInfoColumns + ` FROM orders
		ORDER BY total DESC, id ASC LIMIT 1`

	leastExpensiveOrderSQL = `SELECT ` + orderInfoColumns + ` FROM orders
		ORDER BY total ASC, id ASC LIMIT 1`

	productUnitsSoldSQL = `SELECT COALESCE(SUM(quantity), 0) FROM order_items
		WHERE product_id = $1`

	inactiveCartsSQL = `SELECT id, user_id, updated_at FROM carts
		WHERE updated_at < $1
		ORDER BY id ASC`

	deleteInactiveCartsSQL = `WITH del AS (
			DELETE FROM carts WHERE updated_at < $1 RETURNING id
		) SELECT COUNT(*) FROM del`

	userOrderHistorySQL = `SELECT ` + orderInfoColumns + ` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	userCartValueSQL = `SELECT COALESCE(SUM(ci.quantity * p.price), 0)
		FROM carts c
		JOIN cart_items ci ON ci.cart_id = c.id
		JOIN products p ON p.id = ci.product_id
		WHERE c.user_id = $1`

	userCartTotalsSQL = `SELECT COUNT(ci.product_id), COALESCE(SUM(ci.quantity), 0)
		FROM carts c
		JOIN cart_items ci ON ci.cart_id = c.id
		WHERE c.user_id = $1`
)

var _ analytics.Repository = (*AnalyticsRepository)(nil)

// AnalyticsRepository implements analytics.Repository on PostgreSQL. Every
// metric is a single aggregate query recomputed per call; nothing is
// materialized.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository returns an AnalyticsRepository that uses the given
// pool.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

func (r *AnalyticsRepository) TotalOrders(ctx context.Context) (int64, error) {
	return r.scanInt(ctx, totalOrdersSQL)
}

func (r *AnalyticsRepository) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	return r.scanDecimal(ctx, totalRevenueSQL)
}

func (r *AnalyticsRepository) AverageOrderValue(ctx context.Context) (decimal.Decimal, error) {
	return r.scanDecimal(ctx, avgOrderValueSQL)
}

func (r *AnalyticsRepository) AverageItemsPerOrder(ctx context.Context) (decimal.Decimal, error) {
	return r.scanDecimal(ctx, avgItemsPerOrderSQL)
}

func (r *AnalyticsRepository) TotalUnitsSold(ctx context.Context) (int64, error) {
	return r.scanInt(ctx, totalUnitsSoldSQL)
}

func (r *AnalyticsRepository) TotalCustomers(ctx context.Context) (int64, error) {
	return r.scanInt(ctx, totalCustomersSQL)
}

func (r *AnalyticsRepository) ProductsByOrderCount(ctx context.Context, limit int, ascending bool) ([]analytics.ProductRank, error) {
	sql := productsByOrderCountSQL
	if ascending {
		sql = productsByOrderCountAscSQL
	}
	return r.productRanks(ctx, sql, limit)
}

func (r *AnalyticsRepository) ProductsByUnitsSold(ctx context.Context, limit int, ascending bool) ([]analytics.ProductRank, error) {
	sql := productsByUnitsSoldSQL
	if ascending {
		sql = productsByUnitsSoldAscSQL
	}
	return r.productRanks(ctx, sql, limit)
}

func (r *AnalyticsRepository) TopCustomers(ctx context.Context, limit int) ([]analytics.CustomerRank, error) {
	rows, err := r.pool.Query(ctx, topCustomersSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top customers")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.CustomerRank, error) {
		var c analytics.CustomerRank
		err := row.Scan(&c.UserID, &c.Username, &c.TotalSpent)
		return c, err
	})
}

func (r *AnalyticsRepository) OrdersWithinRange(ctx context.Context, start, end time.Time) ([]analytics.OrderInfo, error) {
	return r.orderInfos(ctx, ordersWithinRangeSQL, start, end)
}

func (r *AnalyticsRepository) RevenueWithinRange(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	return r.scanDecimal(ctx, revenueWithinRangeSQL, start, end)
}

func (r *AnalyticsRepository) AverageOrderValueWithinRange(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	return r.scanDecimal(ctx, avgOrderValueWithinRangeSQL, start, end)
}

func (r *AnalyticsRepository) OrdersExceedingTotal(ctx context.Context, minTotal decimal.Decimal) ([]analytics.OrderInfo, error) {
	return r.orderInfos(ctx, ordersExceedingTotalSQL, minTotal)
}

func (r *AnalyticsRepository) OrdersContainingProduct(ctx context.Context, productID int64) ([]analytics.OrderInfo, error) {
	return r.orderInfos(ctx, ordersContainingProductSQL, productID)
}

func (r *AnalyticsRepository) MostExpensiveOrder(ctx context.Context) (*analytics.OrderInfo, error) {
	return r.extremeOrder(ctx, mostExpensiveOrderSQL)
}

func (r *AnalyticsRepository) LeastExpensiveOrder(ctx context.Context) (*analytics.OrderInfo, error) {
	return r.extremeOrder(ctx, leastExpensiveOrderSQL)
}

func (r *AnalyticsRepository) ProductUnitsSold(ctx context.Context, productID int64) (int64, error) {
	return r.scanInt(ctx, productUnitsSoldSQL, productID)
}

func (r *AnalyticsRepository) InactiveCarts(ctx context.Context, threshold time.Time) ([]analytics.CartInfo, error) {
	rows, err := r.pool.Query(ctx, inactiveCartsSQL, threshold)
	if err != nil {
		return nil, errors.Wrap(err, "inactive carts")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.CartInfo, error) {
		var c analytics.CartInfo
		err := row.Scan(&c.ID, &c.UserID, &c.UpdatedAt)
		return c, err
	})
}

// DeleteInactiveCarts removes carts untouched since threshold; cart items go
// with them through ON DELETE CASCADE.
func (r *AnalyticsRepository) DeleteInactiveCarts(ctx context.Context, threshold time.Time) (int64, error) {
	return r.scanInt(ctx, deleteInactiveCartsSQL, threshold)
}

func (r *AnalyticsRepository) UserOrderHistory(ctx context.Context, userID int64) ([]analytics.OrderInfo, error) {
	return r.orderInfos(ctx, userOrderHistorySQL, userID)
}

func (r *AnalyticsRepository) UserCartValue(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return r.scanDecimal(ctx, userCartValueSQL, userID)
}

func (r *AnalyticsRepository) UserCartTotals(ctx context.Context, userID int64) (analytics.CartTotals, error) {
	var t analytics.CartTotals
	err := r.pool.QueryRow(ctx, userCartTotalsSQL, userID).Scan(&t.Lines, &t.Quantity)
	if err != nil {
		return analytics.CartTotals{}, errors.Wrapf(err, "cart totals of user %d", userID)
	}
	return t, nil
}

func (r *AnalyticsRepository) scanInt(ctx context.Context, sql string, args ...any) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "scan count")
	}
	return n, nil
}

func (r *AnalyticsRepository) scanDecimal(ctx context.Context, sql string, args ...any) (decimal.Decimal, error) {
	var d decimal.Decimal
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&d); err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "scan amount")
	}
	return d, nil
}

func (r *AnalyticsRepository) productRanks(ctx context.Context, sql string, limit int) ([]analytics.ProductRank, error) {
	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, errors.Wrap(err, "rank products")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.ProductRank, error) {
		var p analytics.ProductRank
		err := row.Scan(&p.ProductID, &p.Name, &p.Count)
		return p, err
	})
}

func (r *AnalyticsRepository) orderInfos(ctx context.Context, sql string, args ...any) ([]analytics.OrderInfo, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, scanOrderInfo)
}

func (r *AnalyticsRepository) extremeOrder(ctx context.Context, sql string) (*analytics.OrderInfo, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, errors.Wrap(err, "extreme order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrderInfo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "extreme order")
	}
	return &o, nil
}

func scanOrderInfo(row pgx.CollectableRow) (analytics.OrderInfo, error) {
	var o analytics.OrderInfo
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.CreatedAt)
	return o, err
}
