package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/ugx-shop/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[int64]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) { return nil, nil }

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) ListCategories(_ context.Context) ([]product.Category, error) {
	return nil, nil
}

func (m *mockProductRepo) CreateReview(_ context.Context, _ *product.Review) error { return nil }

type itemKey struct {
	cartID    int64
	productID int64
}

// mockCartRepo keeps carts and items in memory with the same upsert semantics
// as the Postgres implementation.
type mockCartRepo struct {
	products *mockProductRepo
	carts    map[int64]*Cart // by user ID
	items    map[itemKey]int32
	nextID   int64
}

func newMockCartRepo(products *mockProductRepo) *mockCartRepo {
	return &mockCartRepo{
		products: products,
		carts:    make(map[int64]*Cart),
		items:    make(map[itemKey]int32),
	}
}

func (m *mockCartRepo) GetOrCreate(_ context.Context, userID int64) (*Cart, error) {
	if c, ok := m.carts[userID]; ok {
		return c, nil
	}
	m.nextID++
	c := &Cart{ID: m.nextID, UserID: userID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.carts[userID] = c
	return c, nil
}

func (m *mockCartRepo) Get(_ context.Context, userID int64) (*Cart, error) {
	c, ok := m.carts[userID]
	if !ok {
		return nil, ErrNoCart
	}
	return c, nil
}

func (m *mockCartRepo) AddItemQuantity(_ context.Context, cartID, productID int64, quantity int32) (*Item, error) {
	key := itemKey{cartID, productID}
	m.items[key] += quantity
	return m.item(key), nil
}

func (m *mockCartRepo) SetItemQuantity(_ context.Context, cartID, productID int64, quantity int32) (*Item, error) {
	key := itemKey{cartID, productID}
	m.items[key] = quantity
	return m.item(key), nil
}

func (m *mockCartRepo) DeleteItem(_ context.Context, cartID, productID int64) error {
	delete(m.items, itemKey{cartID, productID})
	return nil
}

func (m *mockCartRepo) ListItems(_ context.Context, cartID int64) ([]Item, error) {
	var out []Item
	for key := range m.items {
		if key.cartID == cartID {
			out = append(out, *m.item(key))
		}
	}
	return out, nil
}

func (m *mockCartRepo) Clear(_ context.Context, cartID int64) error {
	for key := range m.items {
		if key.cartID == cartID {
			delete(m.items, key)
		}
	}
	return nil
}

func (m *mockCartRepo) Totals(_ context.Context, cartID int64) (Totals, error) {
	totals := Totals{Value: decimal.Zero}
	for key, qty := range m.items {
		if key.cartID != cartID {
			continue
		}
		totals.Lines++
		totals.Quantity += int64(qty)
		price := m.products.byID[key.productID].Price
		totals.Value = totals.Value.Add(price.Mul(decimal.NewFromInt32(qty)))
	}
	return totals, nil
}

func (m *mockCartRepo) item(key itemKey) *Item {
	return &Item{
		CartID:      key.cartID,
		ProductID:   key.productID,
		ProductName: m.products.byID[key.productID].Name,
		Quantity:    m.items[key],
		UnitPrice:   m.products.byID[key.productID].Price,
	}
}

// --- Helpers ---

func newCatalog(products ...product.Product) *mockProductRepo {
	byID := make(map[int64]*product.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return &mockProductRepo{byID: byID}
}

func newTestService(products ...product.Product) (*Service, *mockCartRepo) {
	catalog := newCatalog(products...)
	repo := newMockCartRepo(catalog)
	return NewService(repo, catalog), repo
}

func testProduct(id int64, name string, price int64) product.Product {
	return product.Product{
		ID:    id,
		Name:  name,
		Price: decimal.NewFromInt(price),
		Stock: 10,
	}
}

// --- Tests ---

func TestGetOrCreateCart_Lazy(t *testing.T) {
	svc, _ := newTestService()

	c1, err := svc.GetOrCreateCart(context.Background(), 7)
	require.NoError(t, err)

	c2, err := svc.GetOrCreateCart(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID, "second access must return the same cart")
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	svc, _ := newTestService(testProduct(1, "Posho", 1000))

	for _, qty := range []int32{0, -1, -5} {
		_, err := svc.AddItem(context.Background(), 1, 1, qty)

		var iqErr *InvalidQuantityError
		require.ErrorAs(t, err, &iqErr, "quantity %d", qty)
		assert.Equal(t, qty, iqErr.Quantity)
	}
}

func TestAddItem_UnknownProduct(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.AddItem(context.Background(), 1, 42, 1)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAddItem_IncrementsThenSetOverrides(t *testing.T) {
	svc, _ := newTestService(testProduct(1, "Posho", 1000))
	ctx := context.Background()

	item, err := svc.AddItem(ctx, 1, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), item.Quantity)

	item, err = svc.AddItem(ctx, 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(5), item.Quantity, "add increments")

	item, err = svc.UpdateItemQuantity(ctx, 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), item.Quantity, "update sets, not increments")
}

func TestUpdateItemQuantity_CreatesWhenAbsent(t *testing.T) {
	svc, _ := newTestService(testProduct(1, "Posho", 1000))

	item, err := svc.UpdateItemQuantity(context.Background(), 1, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, int32(4), item.Quantity)
}

func TestRemoveItem_Idempotent(t *testing.T) {
	svc, _ := newTestService(testProduct(1, "Posho", 1000))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, 1, 1, 2)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(ctx, 1, 1))
	require.NoError(t, svc.RemoveItem(ctx, 1, 1), "second remove is a no-op")

	items, err := svc.ListItems(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRemoveItem_NoCart(t *testing.T) {
	svc, _ := newTestService(testProduct(1, "Posho", 1000))

	require.NoError(t, svc.RemoveItem(context.Background(), 99, 1))
}

func TestClear_NoCart(t *testing.T) {
	svc, _ := newTestService()

	err := svc.Clear(context.Background(), 99)
	require.ErrorIs(t, err, ErrNoCart)
}

func TestTotals(t *testing.T) {
	svc, _ := newTestService(
		testProduct(1, "Posho", 1000),
		testProduct(2, "Beans", 500),
	)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, 1, 1, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, 1, 2, 1)
	require.NoError(t, err)

	count, err := svc.TotalItemCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	value, err := svc.TotalValue(ctx, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2500).Equal(value), "got %s", value)
}

// Cart totals float with catalog price changes, unlike order totals.
func TestTotalValue_TracksCurrentPrice(t *testing.T) {
	catalog := newCatalog(testProduct(1, "Posho", 1000))
	repo := newMockCartRepo(catalog)
	svc := NewService(repo, catalog)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, 1, 1, 2)
	require.NoError(t, err)

	catalog.byID[1].Price = decimal.NewFromInt(1200)

	value, err := svc.TotalValue(ctx, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2400).Equal(value), "got %s", value)
}

func TestTotals_NoCartIsZero(t *testing.T) {
	svc, _ := newTestService()

	count, err := svc.TotalItemCount(context.Background(), 5)
	require.NoError(t, err)
	assert.Zero(t, count)

	value, err := svc.TotalValue(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, value.IsZero())
}
