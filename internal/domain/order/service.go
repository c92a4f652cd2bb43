package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/ugx-shop/internal/domain/denom"
)

var hundred = decimal.NewFromInt(100)

// CheckoutRequest holds the input for a checkout. AmountPaid, when set, is a
// cash payment in whole shillings to compute change for; payment validation
// failures abort the whole checkout.
type CheckoutRequest struct {
	UserID     int64
	AmountPaid *int64
}

// CheckoutResult holds the created order and, for cash payments, the minimal
// change breakdown by denomination.
type CheckoutResult struct {
	Order  *Order
	Change map[int64]int64
}

// Service converts carts into immutable orders and applies post-hoc
// discounts.
type Service struct {
	repo  Repository
	denom denom.Set
}

// NewService creates an order Service using the canonical UGX denomination
// set for cash payments.
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		denom: denom.UGX,
	}
}

// Checkout converts the user's cart into an order: it computes the total at
// current catalog prices, creates the order, snapshots each line's price onto
// an order item, and clears the cart. The steps run in one transaction;
// either all persist or none do. Stock is neither checked nor decremented —
// inventory enforcement is deliberately absent from this pipeline.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	var result CheckoutResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		lines, err := s.repo.CheckoutLines(txCtx, req.UserID)
		if err != nil {
			return errors.Wrap(err, "load cart lines")
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		total := decimal.Zero
		for _, line := range lines {
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity)))
		}

		if req.AmountPaid != nil {
			change, err := s.cashChange(*req.AmountPaid, total)
			if err != nil {
				return err
			}
			result.Change = change
		}

		o := &Order{
			UserID: req.UserID,
			Total:  total,
		}
		if err := s.repo.CreateOrder(txCtx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if err := s.repo.AddItems(txCtx, o.ID, lines); err != nil {
			return errors.Wrap(err, "add order items")
		}
		if err := s.repo.ClearCart(txCtx, req.UserID); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		o.Items = make([]Item, len(lines))
		for i, line := range lines {
			o.Items[i] = Item{
				OrderID:   o.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     line.UnitPrice,
			}
		}
		result.Order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// cashChange validates a cash payment against the denomination set and
// returns the change breakdown.
func (s *Service) cashChange(paid int64, total decimal.Decimal) (map[int64]int64, error) {
	if !total.IsInteger() {
		return nil, ErrNonCashTotal
	}
	if err := s.denom.Validate(paid); err != nil {
		return nil, errors.Wrap(err, "validate payment")
	}

	change, err := s.denom.Change(paid, total.IntPart())
	if err != nil {
		return nil, err
	}
	return change, nil
}

// GetOrder returns an order with its items.
func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ApplyDiscount reduces the order's stored total by percentage and returns
// the new total. The pre-discount total is not retained: applying a discount
// twice compounds. Concurrent applications serialize on a row lock so the
// result is always a sequence of compounded discounts, never a lost update.
func (s *Service) ApplyDiscount(ctx context.Context, orderID int64, percentage decimal.Decimal) (decimal.Decimal, error) {
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return decimal.Zero, &InvalidDiscountError{Percentage: percentage}
	}

	var newTotal decimal.Decimal
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.repo.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}

		discount := o.Total.Mul(percentage).Div(hundred)
		newTotal = o.Total.Sub(discount).Round(2)

		if err := s.repo.UpdateTotal(txCtx, orderID, newTotal); err != nil {
			return errors.Wrap(err, "update order total")
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return newTotal, nil
}
