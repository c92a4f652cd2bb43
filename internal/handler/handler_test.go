package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/ugx-shop/internal/domain/analytics"
	"github.com/xenking/ugx-shop/internal/domain/auth"
	"github.com/xenking/ugx-shop/internal/domain/cart"
	"github.com/xenking/ugx-shop/internal/domain/order"
	"github.com/xenking/ugx-shop/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
	reviews  []product.Review
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) ListCategories(_ context.Context) ([]product.Category, error) {
	return []product.Category{{ID: 1, Name: "Beverages"}}, nil
}

func (m *mockProductRepo) CreateReview(_ context.Context, r *product.Review) error {
	r.ID = int64(len(m.reviews) + 1)
	r.CreatedAt = time.Now()
	m.reviews = append(m.reviews, *r)
	return nil
}

type itemKey struct {
	cartID    int64
	productID int64
}

type mockCartRepo struct {
	products *mockProductRepo
	carts    map[int64]*cart.Cart
	items    map[itemKey]int32
	nextID   int64
}

func newMockCartRepo(products *mockProductRepo) *mockCartRepo {
	return &mockCartRepo{
		products: products,
		carts:    make(map[int64]*cart.Cart),
		items:    make(map[itemKey]int32),
	}
}

func (m *mockCartRepo) GetOrCreate(_ context.Context, userID int64) (*cart.Cart, error) {
	if c, ok := m.carts[userID]; ok {
		return c, nil
	}
	m.nextID++
	c := &cart.Cart{ID: m.nextID, UserID: userID}
	m.carts[userID] = c
	return c, nil
}

func (m *mockCartRepo) Get(_ context.Context, userID int64) (*cart.Cart, error) {
	if c, ok := m.carts[userID]; ok {
		return c, nil
	}
	return nil, cart.ErrNoCart
}

func (m *mockCartRepo) item(cartID, productID int64) (*cart.Item, error) {
	p, err := m.products.GetByID(context.Background(), productID)
	if err != nil {
		return nil, err
	}
	return &cart.Item{
		CartID:      cartID,
		ProductID:   productID,
		ProductName: p.Name,
		Quantity:    m.items[itemKey{cartID, productID}],
		UnitPrice:   p.Price,
	}, nil
}

func (m *mockCartRepo) AddItemQuantity(_ context.Context, cartID, productID int64, quantity int32) (*cart.Item, error) {
	m.items[itemKey{cartID, productID}] += quantity
	return m.item(cartID, productID)
}

func (m *mockCartRepo) SetItemQuantity(_ context.Context, cartID, productID int64, quantity int32) (*cart.Item, error) {
	m.items[itemKey{cartID, productID}] = quantity
	return m.item(cartID, productID)
}

func (m *mockCartRepo) DeleteItem(_ context.Context, cartID, productID int64) error {
	delete(m.items, itemKey{cartID, productID})
	return nil
}

func (m *mockCartRepo) ListItems(_ context.Context, cartID int64) ([]cart.Item, error) {
	var out []cart.Item
	for key := range m.items {
		if key.cartID != cartID {
			continue
		}
		item, err := m.item(cartID, key.productID)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
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

func (m *mockCartRepo) Totals(ctx context.Context, cartID int64) (cart.Totals, error) {
	items, err := m.ListItems(ctx, cartID)
	if err != nil {
		return cart.Totals{}, err
	}
	t := cart.Totals{Value: decimal.Zero}
	for _, item := range items {
		t.Lines++
		t.Quantity += int64(item.Quantity)
		t.Value = t.Value.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	return t, nil
}

type mockOrderRepo struct {
	carts  *mockCartRepo
	orders map[int64]*order.Order
	items  map[int64][]order.Item
	nextID int64
}

func newMockOrderRepo(carts *mockCartRepo) *mockOrderRepo {
	return &mockOrderRepo{
		carts:  carts,
		orders: make(map[int64]*order.Order),
		items:  make(map[int64][]order.Item),
	}
}

func (m *mockOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *mockOrderRepo) CheckoutLines(ctx context.Context, userID int64) ([]order.CheckoutLine, error) {
	c, err := m.carts.Get(ctx, userID)
	if err != nil {
		return nil, nil
	}
	items, err := m.carts.ListItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	lines := make([]order.CheckoutLine, len(items))
	for i, item := range items {
		lines[i] = order.CheckoutLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return lines, nil
}

func (m *mockOrderRepo) CreateOrder(_ context.Context, o *order.Order) error {
	m.nextID++
	o.ID = m.nextID
	o.CreatedAt = time.Now()
	m.orders[o.ID] = o
	return nil
}

func (m *mockOrderRepo) AddItems(_ context.Context, orderID int64, lines []order.CheckoutLine) error {
	for _, line := range lines {
		m.items[orderID] = append(m.items[orderID], order.Item{
			OrderID:   orderID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.UnitPrice,
		})
	}
	return nil
}

func (m *mockOrderRepo) ClearCart(ctx context.Context, userID int64) error {
	c, err := m.carts.Get(ctx, userID)
	if err != nil {
		return nil
	}
	return m.carts.Clear(ctx, c.ID)
}

func (m *mockOrderRepo) Get(_ context.Context, id int64) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	out := *o
	out.Items = m.items[id]
	return &out, nil
}

func (m *mockOrderRepo) GetForUpdate(ctx context.Context, id int64) (*order.Order, error) {
	return m.Get(ctx, id)
}

func (m *mockOrderRepo) UpdateTotal(_ context.Context, id int64, total decimal.Decimal) error {
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Total = total
	return nil
}

// mockAnalyticsRepo embeds the interface; only overridden methods are usable.
type mockAnalyticsRepo struct {
	analytics.Repository
	deleted int64
}

func (m *mockAnalyticsRepo) TotalOrders(_ context.Context) (int64, error)    { return 4, nil }
func (m *mockAnalyticsRepo) TotalUnitsSold(_ context.Context) (int64, error) { return 9, nil }
func (m *mockAnalyticsRepo) TotalCustomers(_ context.Context) (int64, error) { return 2, nil }

func (m *mockAnalyticsRepo) TotalRevenue(_ context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(8000), nil
}

func (m *mockAnalyticsRepo) AverageOrderValue(_ context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(2000), nil
}

func (m *mockAnalyticsRepo) AverageItemsPerOrder(_ context.Context) (decimal.Decimal, error) {
	return decimal.NewFromFloat(2.25), nil
}

func (m *mockAnalyticsRepo) ProductsByUnitsSold(_ context.Context, limit int, _ bool) ([]analytics.ProductRank, error) {
	ranks := []analytics.ProductRank{
		{ProductID: 1, Name: "Coffee", Count: 6},
		{ProductID: 2, Name: "Tea", Count: 3},
	}
	if limit < len(ranks) {
		ranks = ranks[:limit]
	}
	return ranks, nil
}

func (m *mockAnalyticsRepo) DeleteInactiveCarts(_ context.Context, _ time.Time) (int64, error) {
	return m.deleted, nil
}

type mockAPIKeyRepo struct {
	keys map[string]*auth.Key
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.Key, error) {
	if k, ok := m.keys[hash]; ok {
		return k, nil
	}
	return nil, auth.ErrKeyNotFound
}

// --- Test fixture ---

const (
	testPepper   = "test-pepper"
	shopKey      = "shop-key"
	analyticsKey = "analytics-key"
	adminKey     = "admin-key"
)

type fixture struct {
	mux      *http.ServeMux
	products *mockProductRepo
	carts    *mockCartRepo
	orders   *mockOrderRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := &mockProductRepo{products: []product.Product{
		{ID: 1, Name: "Coffee", Price: decimal.NewFromInt(1000), Stock: 10},
		{ID: 2, Name: "Tea", Price: decimal.NewFromInt(500), Stock: 5},
	}}
	carts := newMockCartRepo(products)
	orders := newMockOrderRepo(carts)

	pepper := []byte(testPepper)
	keys := &mockAPIKeyRepo{keys: map[string]*auth.Key{}}
	for _, k := range []struct {
		raw    string
		userID int64
		scopes []string
	}{
		{shopKey, 7, []string{auth.ScopeShop}},
		{analyticsKey, 8, []string{auth.ScopeAnalytics}},
		{adminKey, 9, []string{auth.ScopeShop, auth.ScopeAnalytics, auth.ScopeAdmin}},
	} {
		hash := auth.HashKey(pepper, k.raw)
		keys.keys[hash] = &auth.Key{
			ID:      k.raw,
			UserID:  k.userID,
			KeyHash: hash,
			Scopes:  k.scopes,
		}
	}

	h := NewHandler(
		products,
		cart.NewService(carts, products),
		order.NewService(orders),
		analytics.NewService(&mockAnalyticsRepo{deleted: 3}),
	)

	mux := http.NewServeMux()
	h.Routes(mux, NewSecurity(keys, pepper))

	return &fixture{mux: mux, products: products, carts: carts, orders: orders}
}

func (f *fixture) do(t *testing.T, method, path, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if apiKey != "" {
		req.Header.Set("api_key", apiKey)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// --- Tests ---

func TestSecurity_MissingKey(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/cart", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSecurity_UnknownKey(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/cart", "no-such-key", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSecurity_MissingScope(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/analytics/summary", shopKey, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/orders/1/discount", shopKey, `{"percentage": 10}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCart_AddAndGet(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 1, "quantity": 2}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 2, "quantity": 1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/cart", shopKey, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Len(t, body["items"], 2)
	assert.Equal(t, float64(2500), body["total_price"])
}

func TestCart_AddDefaultsQuantityToOne(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/cart", shopKey, "")
	body := decodeBody(t, w)
	assert.Equal(t, float64(1000), body["total_price"])

	// Update has no default: the target quantity must be explicit.
	w = f.do(t, http.MethodPut, "/api/cart", shopKey, `{"product_id": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCart_AddInvalidQuantity(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 1, "quantity": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCart_AddUnknownProduct(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 99, "quantity": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCart_UpdateSetsQuantity(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 1, "quantity": 3}`)
	w := f.do(t, http.MethodPut, "/api/cart", shopKey, `{"product_id": 1, "quantity": 2}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/cart", shopKey, "")
	body := decodeBody(t, w)
	assert.Equal(t, float64(2000), body["total_price"])
}

func TestCart_ClearWithoutCart(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodDelete, "/api/cart", shopKey, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCart_RemoveItemIdempotent(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 1, "quantity": 1}`)
	w := f.do(t, http.MethodDelete, "/api/cart/items/1", shopKey, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/cart/items/1", shopKey, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/checkout", shopKey, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckout_PlacesOrderAndClearsCart(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 1, "quantity": 2}`)
	f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 2, "quantity": 1}`)

	w := f.do(t, http.MethodPost, "/api/checkout", shopKey, "")
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["order_id"])
	assert.Equal(t, float64(2500), body["total"])

	w = f.do(t, http.MethodGet, "/api/cart", shopKey, "")
	assert.Equal(t, float64(0), decodeBody(t, w)["total_price"])
}

func TestCheckout_CashPaymentChange(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 2, "quantity": 1}`)

	w := f.do(t, http.MethodPost, "/api/orders", shopKey, `{"amount_paid": 2000}`)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	change, ok := body["change"].(map[string]any)
	require.True(t, ok, "change breakdown expected for cash payment")
	assert.Equal(t, float64(1), change["1000"])
	assert.Equal(t, float64(1), change["500"])
}

func TestCheckout_InsufficientPayment(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 1, "quantity": 1}`)

	w := f.do(t, http.MethodPost, "/api/checkout", shopKey, `{"amount_paid": 500}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Failed payment aborts the checkout; the cart survives.
	w = f.do(t, http.MethodGet, "/api/cart", shopKey, "")
	assert.Equal(t, float64(1000), decodeBody(t, w)["total_price"])
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/cart", shopKey, `{"product_id": 1, "quantity": 2}`)
	w := f.do(t, http.MethodPost, "/api/checkout", shopKey, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodGet, "/api/orders/1", shopKey, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(2000), body["total"])
	assert.Len(t, body["items"], 1)
}

func TestGetOrder_NotFound(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/orders/42", shopKey, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiscount_Apply(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/cart", adminKey, `{"product_id": 1, "quantity": 1}`)
	w := f.do(t, http.MethodPost, "/api/checkout", adminKey, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodPost, "/api/orders/1/discount", adminKey, `{"percentage": 10}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(900), decodeBody(t, w)["total"])

	// Compounds on repeat.
	w = f.do(t, http.MethodPost, "/api/orders/1/discount", adminKey, `{"percentage": 10}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(810), decodeBody(t, w)["total"])
}

func TestDiscount_OutOfRange(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/orders/1/discount", adminKey, `{"percentage": 101}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiscount_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/orders/42/discount", adminKey, `{"percentage": 10}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/products", shopKey, "")
	require.Equal(t, http.StatusOK, w.Code)

	var products []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	require.Len(t, products, 2)
	assert.Equal(t, "Coffee", products[0]["name"])
	assert.Equal(t, float64(1000), products[0]["price"])
}

func TestCreateReview(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/reviews", shopKey, `{"product_id": 1, "rating": 5, "comment": "great"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["review_id"])
}

func TestCreateReview_InvalidRating(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		`{"product_id": 1, "rating": 0}`,
		`{"product_id": 1, "rating": 6}`,
	} {
		w := f.do(t, http.MethodPost, "/api/reviews", shopKey, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestCreateReview_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/reviews", shopKey, `{"product_id": 99, "rating": 4}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalytics_Summary(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/analytics/summary", analyticsKey, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(4), body["total_orders"])
	assert.Equal(t, float64(8000), body["total_revenue"])
	assert.Equal(t, float64(2.25), body["average_items_per_order"])
}

func TestAnalytics_Products(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/analytics/products?limit=1", analyticsKey, "")
	require.Equal(t, http.StatusOK, w.Code)

	var ranks []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ranks))
	require.Len(t, ranks, 1)
	assert.Equal(t, "Coffee", ranks[0]["name"])
}

func TestAnalytics_InvalidLimit(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/analytics/products?limit=0", analyticsKey, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalytics_OrdersRequiresFilter(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/analytics/orders", analyticsKey, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalytics_DeleteInactiveCarts(t *testing.T) {
	f := newFixture(t)

	since := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	w := f.do(t, http.MethodDelete, "/api/analytics/carts/inactive?since="+since, adminKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeBody(t, w)["deleted"])

	// The sweep mutates state and is admin-only.
	w = f.do(t, http.MethodDelete, "/api/analytics/carts/inactive?since="+since, analyticsKey, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
