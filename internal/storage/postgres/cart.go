package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/ugx-shop/internal/domain/cart"
)

const (
	// ON CONFLICT DO UPDATE instead of DO NOTHING so RETURNING always yields
	// the row, found or created.
	getOrCreateCartSQL = `INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, created_at, updated_at`

	getCartSQL = `SELECT id, user_id, created_at, updated_at
		FROM carts WHERE user_id = $1`

	addItemQuantitySQL = `INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING quantity`

	setItemQuantitySQL = `INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING quantity`

	deleteItemSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`

	listItemsSQL = `SELECT ci.cart_id, ci.product_id, p.name, ci.quantity, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1`

	clearCartSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	cartTotalsSQL = `SELECT COUNT(*), COALESCE(SUM(ci.quantity), 0), COALESCE(SUM(ci.quantity * p.price), 0)
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1`

	touchCartSQL = `UPDATE carts SET updated_at = now() WHERE id = $1`

	itemPriceSQL = `SELECT name, price FROM products WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Item writes
// are single-statement upserts, so concurrent increments on the same
// (cart, product) pair serialize in the database instead of racing in Go.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetOrCreate returns the user's cart, creating an empty one on first
// access.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID int64) (*cart.Cart, error) {
	var c cart.Cart
	err := r.pool.QueryRow(ctx, getOrCreateCartSQL, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "get or create cart for user %d", userID)
	}
	return &c, nil
}

// Get returns the user's cart or cart.ErrNoCart.
func (r *CartRepository) Get(ctx context.Context, userID int64) (*cart.Cart, error) {
	var c cart.Cart
	err := r.pool.QueryRow(ctx, getCartSQL, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNoCart
		}
		return nil, errors.Wrapf(err, "get cart for user %d", userID)
	}
	return &c, nil
}

// AddItemQuantity atomically increments the item's quantity, creating the row
// when absent.
func (r *CartRepository) AddItemQuantity(ctx context.Context, cartID, productID int64, quantity int32) (*cart.Item, error) {
	return r.upsertItem(ctx, addItemQuantitySQL, cartID, productID, quantity)
}

// SetItemQuantity sets the item's quantity, creating the row when absent.
func (r *CartRepository) SetItemQuantity(ctx context.Context, cartID, productID int64, quantity int32) (*cart.Item, error) {
	return r.upsertItem(ctx, setItemQuantitySQL, cartID, productID, quantity)
}

func (r *CartRepository) upsertItem(ctx context.Context, sql string, cartID, productID int64, quantity int32) (*cart.Item, error) {
	item := cart.Item{CartID: cartID, ProductID: productID}
	if err := r.pool.QueryRow(ctx, sql, cartID, productID, quantity).Scan(&item.Quantity); err != nil {
		return nil, errors.Wrapf(err, "upsert cart item (%d, %d)", cartID, productID)
	}
	if err := r.pool.QueryRow(ctx, itemPriceSQL, productID).Scan(&item.ProductName, &item.UnitPrice); err != nil {
		return nil, errors.Wrapf(err, "read price for product %d", productID)
	}

	r.touch(ctx, cartID)
	return &item, nil
}

// DeleteItem removes the item; deleting an absent item is not an error.
func (r *CartRepository) DeleteItem(ctx context.Context, cartID, productID int64) error {
	tag, err := r.pool.Exec(ctx, deleteItemSQL, cartID, productID)
	if err != nil {
		return errors.Wrapf(err, "delete cart item (%d, %d)", cartID, productID)
	}
	if tag.RowsAffected() > 0 {
		r.touch(ctx, cartID)
	}
	return nil
}

// ListItems returns the cart's lines joined with current catalog prices.
func (r *CartRepository) ListItems(ctx context.Context, cartID int64) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, listItemsSQL, cartID)
	if err != nil {
		return nil, errors.Wrapf(err, "list items of cart %d", cartID)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var item cart.Item
		err := row.Scan(&item.CartID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice)
		return item, err
	})
}

// Clear deletes every item of the cart, leaving the cart row in place.
func (r *CartRepository) Clear(ctx context.Context, cartID int64) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, cartID); err != nil {
		return errors.Wrapf(err, "clear cart %d", cartID)
	}
	r.touch(ctx, cartID)
	return nil
}

// Totals computes line, quantity, and value rollups in one query.
func (r *CartRepository) Totals(ctx context.Context, cartID int64) (cart.Totals, error) {
	var t cart.Totals
	err := r.pool.QueryRow(ctx, cartTotalsSQL, cartID).
		Scan(&t.Lines, &t.Quantity, &t.Value)
	if err != nil {
		return cart.Totals{}, errors.Wrapf(err, "totals of cart %d", cartID)
	}
	return t, nil
}

// touch bumps the cart's updated_at for the inactivity sweep. Best effort:
// a failed touch never fails the item operation that triggered it.
func (r *CartRepository) touch(ctx context.Context, cartID int64) {
	_, _ = r.pool.Exec(ctx, touchCartSQL, cartID)
}
