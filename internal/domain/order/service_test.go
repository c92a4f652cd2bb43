package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/ugx-shop/internal/domain/denom"
)

// --- Mock repository ---

// mockRepo simulates the transactional store: mutations inside WithTx are
// buffered and dropped when the closure fails.
type mockRepo struct {
	lines  []CheckoutLine
	orders map[int64]*Order
	nextID int64

	cartCleared bool
	itemsAdded  []CheckoutLine

	// pending state inside an open transaction
	inTx          bool
	txOrders      []*Order
	txItems       []CheckoutLine
	txCartCleared bool
}

func newMockRepo(lines ...CheckoutLine) *mockRepo {
	return &mockRepo{
		lines:  lines,
		orders: make(map[int64]*Order),
	}
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.inTx = true
	m.txOrders = nil
	m.txItems = nil
	m.txCartCleared = false
	defer func() { m.inTx = false }()

	if err := fn(ctx); err != nil {
		return err
	}

	// Commit.
	for _, o := range m.txOrders {
		m.orders[o.ID] = o
	}
	m.itemsAdded = append(m.itemsAdded, m.txItems...)
	if m.txCartCleared {
		m.cartCleared = true
		m.lines = nil
	}
	return nil
}

func (m *mockRepo) CheckoutLines(_ context.Context, _ int64) ([]CheckoutLine, error) {
	return m.lines, nil
}

func (m *mockRepo) CreateOrder(_ context.Context, o *Order) error {
	m.nextID++
	o.ID = m.nextID
	o.CreatedAt = time.Now()
	cp := *o
	m.txOrders = append(m.txOrders, &cp)
	return nil
}

func (m *mockRepo) AddItems(_ context.Context, _ int64, lines []CheckoutLine) error {
	m.txItems = append(m.txItems, lines...)
	return nil
}

func (m *mockRepo) ClearCart(_ context.Context, _ int64) error {
	m.txCartCleared = true
	return nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	return m.Get(ctx, id)
}

func (m *mockRepo) UpdateTotal(_ context.Context, id int64, total decimal.Decimal) error {
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Total = total
	return nil
}

func line(productID int64, qty int32, price int64) CheckoutLine {
	return CheckoutLine{ProductID: productID, Quantity: qty, UnitPrice: decimal.NewFromInt(price)}
}

// --- Checkout ---

func TestCheckout_EmptyCart(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: 1})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_SnapshotsPricesAndClearsCart(t *testing.T) {
	repo := newMockRepo(
		line(1, 2, 1000),
		line(2, 1, 500),
	)
	svc := NewService(repo)

	result, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: 1})
	require.NoError(t, err)

	o := result.Order
	assert.True(t, decimal.NewFromInt(2500).Equal(o.Total), "got %s", o.Total)
	require.Len(t, o.Items, 2)
	assert.True(t, decimal.NewFromInt(1000).Equal(o.Items[0].Price))
	assert.True(t, decimal.NewFromInt(500).Equal(o.Items[1].Price))

	assert.True(t, repo.cartCleared, "cart items must be deleted")
	assert.Len(t, repo.itemsAdded, 2, "one order item per cart item")
}

func TestCheckout_WithCashPayment(t *testing.T) {
	repo := newMockRepo(line(1, 2, 1000))
	svc := NewService(repo)

	paid := int64(5000)
	result, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: 1, AmountPaid: &paid})
	require.NoError(t, err)

	// due 3000 = 2000 + 1000
	assert.Equal(t, map[int64]int64{2000: 1, 1000: 1}, result.Change)
}

func TestCheckout_InsufficientPaymentRollsBack(t *testing.T) {
	repo := newMockRepo(line(1, 2, 1000))
	svc := NewService(repo)

	paid := int64(1000)
	_, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: 1, AmountPaid: &paid})
	require.ErrorIs(t, err, denom.ErrInsufficientPayment)

	assert.Empty(t, repo.orders, "no order may persist")
	assert.False(t, repo.cartCleared, "cart must survive a failed checkout")
}

func TestCheckout_UnrepresentablePayment(t *testing.T) {
	repo := newMockRepo(line(1, 1, 1000))
	svc := NewService(repo)

	paid := int64(1050)
	_, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: 1, AmountPaid: &paid})

	var nre *denom.NotRepresentableError
	require.ErrorAs(t, err, &nre)
	assert.Empty(t, repo.orders)
}

func TestCheckout_NonCashTotal(t *testing.T) {
	repo := newMockRepo(CheckoutLine{
		ProductID: 1,
		Quantity:  1,
		UnitPrice: decimal.RequireFromString("999.50"),
	})
	svc := NewService(repo)

	paid := int64(1000)
	_, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: 1, AmountPaid: &paid})
	require.ErrorIs(t, err, ErrNonCashTotal)
}

// --- ApplyDiscount ---

func TestApplyDiscount_OutOfRange(t *testing.T) {
	svc := NewService(newMockRepo())

	for _, pct := range []int64{-1, 101} {
		_, err := svc.ApplyDiscount(context.Background(), 1, decimal.NewFromInt(pct))

		var ide *InvalidDiscountError
		require.ErrorAs(t, err, &ide, "percentage %d", pct)
	}
}

func TestApplyDiscount_UnknownOrder(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.ApplyDiscount(context.Background(), 42, decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApplyDiscount_Compounds(t *testing.T) {
	repo := newMockRepo(line(1, 1, 1000))
	svc := NewService(repo)
	ctx := context.Background()

	result, err := svc.Checkout(ctx, CheckoutRequest{UserID: 1})
	require.NoError(t, err)
	orderID := result.Order.ID

	total, err := svc.ApplyDiscount(ctx, orderID, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(900).Equal(total), "got %s", total)

	// Second application compounds on 900, it does not reset to the
	// original baseline.
	total, err = svc.ApplyDiscount(ctx, orderID, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(810).Equal(total), "got %s", total)

	stored, err := svc.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(810).Equal(stored.Total), "new total must persist")
}

func TestApplyDiscount_Bounds(t *testing.T) {
	repo := newMockRepo(line(1, 1, 1000))
	svc := NewService(repo)
	ctx := context.Background()

	result, err := svc.Checkout(ctx, CheckoutRequest{UserID: 1})
	require.NoError(t, err)

	total, err := svc.ApplyDiscount(ctx, result.Order.ID, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1000).Equal(total), "0%% keeps the total")

	total, err = svc.ApplyDiscount(ctx, result.Order.ID, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, total.IsZero(), "100%% zeroes the total")
}
