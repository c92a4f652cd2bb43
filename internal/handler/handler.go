// Package handler exposes the shop over HTTP. Handlers decode JSON bodies,
// delegate to the domain services, and map domain errors onto the status
// codes of the public API.
package handler

import (
	"net/http"

	"github.com/xenking/ugx-shop/internal/domain/analytics"
	"github.com/xenking/ugx-shop/internal/domain/auth"
	"github.com/xenking/ugx-shop/internal/domain/cart"
	"github.com/xenking/ugx-shop/internal/domain/order"
	"github.com/xenking/ugx-shop/internal/domain/product"
)

// Handler holds the domain dependencies of the HTTP surface.
type Handler struct {
	products  product.Repository
	carts     *cart.Service
	orders    *order.Service
	analytics *analytics.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
	analyticsSvc *analytics.Service,
) *Handler {
	return &Handler{
		products:  products,
		carts:     carts,
		orders:    orders,
		analytics: analyticsSvc,
	}
}

// Routes registers every API route on mux, guarded by sec. Cart, checkout,
// catalog, and review routes need the shop scope; the read-side analytics
// routes need the analytics scope; order mutation and the cart sweep need
// admin.
func (h *Handler) Routes(mux *http.ServeMux, sec *Security) {
	shop := func(fn http.HandlerFunc) http.Handler {
		return sec.Require(auth.ScopeShop, fn)
	}
	stats := func(fn http.HandlerFunc) http.Handler {
		return sec.Require(auth.ScopeAnalytics, fn)
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return sec.Require(auth.ScopeAdmin, fn)
	}

	mux.Handle("GET /api/cart", shop(h.getCart))
	mux.Handle("POST /api/cart", shop(h.addToCart))
	mux.Handle("PUT /api/cart", shop(h.updateCart))
	mux.Handle("DELETE /api/cart", shop(h.clearCart))
	mux.Handle("DELETE /api/cart/items/{product_id}", shop(h.removeFromCart))

	mux.Handle("POST /api/checkout", shop(h.checkout))
	mux.Handle("POST /api/orders", shop(h.checkout))
	mux.Handle("GET /api/orders/{id}", shop(h.getOrder))

	mux.Handle("GET /api/products", shop(h.listProducts))
	mux.Handle("GET /api/categories", shop(h.listCategories))
	mux.Handle("POST /api/reviews", shop(h.createReview))

	mux.Handle("POST /api/orders/{id}/discount", admin(h.applyDiscount))

	mux.Handle("GET /api/analytics/summary", stats(h.analyticsSummary))
	mux.Handle("GET /api/analytics/products", stats(h.analyticsProducts))
	mux.Handle("GET /api/analytics/products/{id}/units", stats(h.analyticsProductUnits))
	mux.Handle("GET /api/analytics/customers", stats(h.analyticsCustomers))
	mux.Handle("GET /api/analytics/orders", stats(h.analyticsOrders))
	mux.Handle("GET /api/analytics/orders/extremes", stats(h.analyticsOrderExtremes))
	mux.Handle("GET /api/analytics/users/{id}/orders", stats(h.analyticsUserOrders))
	mux.Handle("GET /api/analytics/users/{id}/cart", stats(h.analyticsUserCart))
	mux.Handle("GET /api/analytics/carts/inactive", stats(h.analyticsInactiveCarts))
	mux.Handle("DELETE /api/analytics/carts/inactive", admin(h.deleteInactiveCarts))
}
