package analytics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Service is the stateless read side of the shop: every call is a pure
// function of store state and parameters, recomputed per invocation. Only
// DeleteInactiveCarts mutates anything.
type Service struct {
	repo Repository
}

// NewService creates an analytics Service over the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Summary computes the store-wide scalar metrics. The six aggregate queries
// are independent and run concurrently; each reads latest-committed state, so
// the summary as a whole is not a single snapshot.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var out Summary

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalOrders, err = s.repo.TotalOrders(ctx)
		return errors.Wrap(err, "total orders")
	})
	g.Go(func() (err error) {
		out.TotalRevenue, err = s.repo.TotalRevenue(ctx)
		return errors.Wrap(err, "total revenue")
	})
	g.Go(func() (err error) {
		out.AverageOrderValue, err = s.repo.AverageOrderValue(ctx)
		return errors.Wrap(err, "average order value")
	})
	g.Go(func() (err error) {
		out.AverageItemsPerOrder, err = s.repo.AverageItemsPerOrder(ctx)
		return errors.Wrap(err, "average items per order")
	})
	g.Go(func() (err error) {
		out.TotalUnitsSold, err = s.repo.TotalUnitsSold(ctx)
		return errors.Wrap(err, "total units sold")
	})
	g.Go(func() (err error) {
		out.TotalCustomers, err = s.repo.TotalCustomers(ctx)
		return errors.Wrap(err, "total customers")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &out, nil
}

// MostOrderedProducts returns the topN products by distinct order count,
// highest first.
func (s *Service) MostOrderedProducts(ctx context.Context, topN int) ([]ProductRank, error) {
	if topN <= 0 {
		return nil, &InvalidLimitError{Limit: topN}
	}
	return s.repo.ProductsByOrderCount(ctx, topN, false)
}

// LeastOrderedProducts returns the topN products by distinct order count,
// lowest first. Products never ordered rank first with a count of zero.
func (s *Service) LeastOrderedProducts(ctx context.Context, topN int) ([]ProductRank, error) {
	if topN <= 0 {
		return nil, &InvalidLimitError{Limit: topN}
	}
	return s.repo.ProductsByOrderCount(ctx, topN, true)
}

// TopSellingProducts returns the topN products by summed units sold, highest
// first.
func (s *Service) TopSellingProducts(ctx context.Context, topN int) ([]ProductRank, error) {
	if topN <= 0 {
		return nil, &InvalidLimitError{Limit: topN}
	}
	return s.repo.ProductsByUnitsSold(ctx, topN, false)
}

// LeastSellingProducts returns the topN products by summed units sold, lowest
// first.
func (s *Service) LeastSellingProducts(ctx context.Context, topN int) ([]ProductRank, error) {
	if topN <= 0 {
		return nil, &InvalidLimitError{Limit: topN}
	}
	return s.repo.ProductsByUnitsSold(ctx, topN, true)
}

// TopCustomers returns the topN customers by summed order totals.
func (s *Service) TopCustomers(ctx context.Context, topN int) ([]CustomerRank, error) {
	if topN <= 0 {
		return nil, &InvalidLimitError{Limit: topN}
	}
	return s.repo.TopCustomers(ctx, topN)
}

// OrdersWithinRange returns orders with start <= created_at <= end, newest
// first.
func (s *Service) OrdersWithinRange(ctx context.Context, start, end time.Time) ([]OrderInfo, error) {
	return s.repo.OrdersWithinRange(ctx, start, end)
}

// RevenueWithinRange sums order totals over the inclusive date range.
func (s *Service) RevenueWithinRange(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	return s.repo.RevenueWithinRange(ctx, start, end)
}

// AverageOrderValueWithinRange averages order totals over the inclusive date
// range; zero when the range holds no orders.
func (s *Service) AverageOrderValueWithinRange(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	return s.repo.AverageOrderValueWithinRange(ctx, start, end)
}

// OrdersExceedingTotal returns orders with a total strictly greater than
// minTotal, most expensive first.
func (s *Service) OrdersExceedingTotal(ctx context.Context, minTotal decimal.Decimal) ([]OrderInfo, error) {
	return s.repo.OrdersExceedingTotal(ctx, minTotal)
}

// OrdersContainingProduct returns orders with at least one line for the
// product, newest first.
func (s *Service) OrdersContainingProduct(ctx context.Context, productID int64) ([]OrderInfo, error) {
	return s.repo.OrdersContainingProduct(ctx, productID)
}

// MostExpensiveOrder returns the order with the highest total, or nil when
// there are no orders.
func (s *Service) MostExpensiveOrder(ctx context.Context) (*OrderInfo, error) {
	return s.repo.MostExpensiveOrder(ctx)
}

// LeastExpensiveOrder returns the order with the lowest total, or nil when
// there are no orders.
func (s *Service) LeastExpensiveOrder(ctx context.Context) (*OrderInfo, error) {
	return s.repo.LeastExpensiveOrder(ctx)
}

// ProductUnitsSold returns the summed quantity of the product across all
// orders; zero for unknown or never-sold products.
func (s *Service) ProductUnitsSold(ctx context.Context, productID int64) (int64, error) {
	return s.repo.ProductUnitsSold(ctx, productID)
}

// InactiveCarts lists carts untouched since threshold.
func (s *Service) InactiveCarts(ctx context.Context, threshold time.Time) ([]CartInfo, error) {
	return s.repo.InactiveCarts(ctx, threshold)
}

// DeleteInactiveCarts removes carts untouched since threshold and reports the
// exact count removed. This is the only mutating aggregator operation.
func (s *Service) DeleteInactiveCarts(ctx context.Context, threshold time.Time) (int64, error) {
	return s.repo.DeleteInactiveCarts(ctx, threshold)
}

// UserOrderHistory returns the user's orders, newest first.
func (s *Service) UserOrderHistory(ctx context.Context, userID int64) ([]OrderInfo, error) {
	return s.repo.UserOrderHistory(ctx, userID)
}

// UserCartValue returns the user's cart value at current catalog prices;
// zero for users without a cart.
func (s *Service) UserCartValue(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.repo.UserCartValue(ctx, userID)
}

// UserCartTotals returns distinct line and summed quantity counts for the
// user's cart.
func (s *Service) UserCartTotals(ctx context.Context, userID int64) (CartTotals, error) {
	return s.repo.UserCartTotals(ctx, userID)
}
