package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/ugx-shop/internal/domain/product"
)

// Service owns the mutable per-user cart. It validates input, resolves
// products against the catalog, and delegates persistence to the Repository.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{
		carts:    carts,
		products: products,
	}
}

// GetOrCreateCart returns the user's cart, creating an empty one on first
// access.
func (s *Service) GetOrCreateCart(ctx context.Context, userID int64) (*Cart, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get or create cart")
	}
	return c, nil
}

// AddItem increments the quantity of (cart, product) by quantity, creating
// the line when absent. The product must exist and quantity must be positive.
func (s *Service) AddItem(ctx context.Context, userID, productID int64, quantity int32) (*Item, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}

	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, errors.Wrapf(err, "get product %d", productID)
	}

	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get or create cart")
	}

	item, err := s.carts.AddItemQuantity(ctx, c.ID, productID, quantity)
	if err != nil {
		return nil, errors.Wrap(err, "add cart item")
	}
	return item, nil
}

// UpdateItemQuantity sets (not increments) the quantity of (cart, product),
// creating the line when absent.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, productID int64, quantity int32) (*Item, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}

	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, errors.Wrapf(err, "get product %d", productID)
	}

	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get or create cart")
	}

	item, err := s.carts.SetItemQuantity(ctx, c.ID, productID, quantity)
	if err != nil {
		return nil, errors.Wrap(err, "set cart item quantity")
	}
	return item, nil
}

// RemoveItem deletes the matching line. Removing an absent item, or from a
// user without a cart, is a no-op.
func (s *Service) RemoveItem(ctx context.Context, userID, productID int64) error {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoCart) {
			return nil
		}
		return errors.Wrap(err, "get cart")
	}

	if err := s.carts.DeleteItem(ctx, c.ID, productID); err != nil {
		return errors.Wrap(err, "delete cart item")
	}
	return nil
}

// ListItems returns a read-only snapshot of the cart's lines. Order is not
// guaranteed.
func (s *Service) ListItems(ctx context.Context, userID int64) ([]Item, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get or create cart")
	}

	items, err := s.carts.ListItems(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	return items, nil
}

// Clear deletes every item of the user's cart. It returns ErrNoCart when the
// user has never opened one.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "get cart")
	}

	if err := s.carts.Clear(ctx, c.ID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

// TotalItemCount returns the sum of quantities across the cart's lines.
func (s *Service) TotalItemCount(ctx context.Context, userID int64) (int64, error) {
	totals, err := s.totals(ctx, userID)
	if err != nil {
		return 0, err
	}
	return totals.Quantity, nil
}

// TotalValue returns the cart value at current catalog prices.
func (s *Service) TotalValue(ctx context.Context, userID int64) (decimal.Decimal, error) {
	totals, err := s.totals(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return totals.Value, nil
}

func (s *Service) totals(ctx context.Context, userID int64) (Totals, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoCart) {
			return Totals{Value: decimal.Zero}, nil
		}
		return Totals{}, errors.Wrap(err, "get cart")
	}

	totals, err := s.carts.Totals(ctx, c.ID)
	if err != nil {
		return Totals{}, errors.Wrap(err, "cart totals")
	}
	return totals, nil
}
