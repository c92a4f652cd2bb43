package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/ugx-shop/internal/domain/order"
)

const (
	lockCartSQL = `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`

	checkoutLinesSQL = `SELECT ci.product_id, ci.quantity, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id`

	createOrderSQL = `INSERT INTO orders (user_id, total)
		VALUES ($1, $2)
		RETURNING id, created_at`

	clearUserCartSQL = `DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id AND c.user_id = $1`

	getOrderSQL = `SELECT id, user_id, total, created_at
		FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	getOrderItemsSQL = `SELECT id, order_id, product_id, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY id`

	updateOrderTotalSQL = `UPDATE orders SET total = $2 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Its
// mutating methods run on the transaction carried in the context when one is
// open, so the checkout pipeline commits or rolls back as a unit.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// WithTx runs fn inside a single transaction; fn's error rolls back.
func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// CheckoutLines locks the user's cart row, serializing checkout against
// concurrent item mutations, and returns the cart's lines joined with
// current catalog prices. A user without a cart yields an empty slice.
func (r *OrderRepository) CheckoutLines(ctx context.Context, userID int64) ([]order.CheckoutLine, error) {
	q := db(ctx, r.pool)

	var cartID int64
	if err := q.QueryRow(ctx, lockCartSQL, userID).Scan(&cartID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "lock cart of user %d", userID)
	}

	rows, err := q.Query(ctx, checkoutLinesSQL, cartID)
	if err != nil {
		return nil, errors.Wrapf(err, "load lines of cart %d", cartID)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.CheckoutLine, error) {
		var line order.CheckoutLine
		err := row.Scan(&line.ProductID, &line.Quantity, &line.UnitPrice)
		return line, err
	})
}

// CreateOrder persists the order header and fills in ID and CreatedAt.
func (r *OrderRepository) CreateOrder(ctx context.Context, o *order.Order) error {
	err := db(ctx, r.pool).QueryRow(ctx, createOrderSQL, o.UserID, o.Total).
		Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "create order for user %d", o.UserID)
	}
	return nil
}

// AddItems bulk-inserts the order's lines with their price snapshots.
func (r *OrderRepository) AddItems(ctx context.Context, orderID int64, lines []order.CheckoutLine) error {
	rows := make([][]any, len(lines))
	for i, line := range lines {
		rows[i] = []any{orderID, line.ProductID, line.Quantity, line.UnitPrice}
	}

	_, err := db(ctx, r.pool).CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "product_id", "quantity", "price"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return errors.Wrapf(err, "add items to order %d", orderID)
	}
	return nil
}

// ClearCart deletes every cart item of the user; the cart row survives.
func (r *OrderRepository) ClearCart(ctx context.Context, userID int64) error {
	if _, err := db(ctx, r.pool).Exec(ctx, clearUserCartSQL, userID); err != nil {
		return errors.Wrapf(err, "clear cart of user %d", userID)
	}
	return nil
}

// Get returns the order with its items, or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	o, err := r.getHeader(ctx, getOrderSQL, id)
	if err != nil {
		return nil, err
	}

	rows, err := db(ctx, r.pool).Query(ctx, getOrderItemsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "load items of order %d", id)
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var item order.Item
		err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price)
		return item, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan items of order %d", id)
	}
	return o, nil
}

// GetForUpdate locks the order row for the duration of the enclosing
// transaction and returns it without items.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	return r.getHeader(ctx, getOrderForUpdateSQL, id)
}

// UpdateTotal overwrites the order's stored total.
func (r *OrderRepository) UpdateTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	tag, err := db(ctx, r.pool).Exec(ctx, updateOrderTotalSQL, id, total)
	if err != nil {
		return errors.Wrapf(err, "update total of order %d", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) getHeader(ctx context.Context, sql string, id int64) (*order.Order, error) {
	var o order.Order
	err := db(ctx, r.pool).QueryRow(ctx, sql, id).
		Scan(&o.ID, &o.UserID, &o.Total, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	return &o, nil
}
