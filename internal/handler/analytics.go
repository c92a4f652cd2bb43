package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/ugx-shop/internal/domain/analytics"
)

const defaultRankLimit = 10

// analyticsSummary returns the store-wide scalar metrics.
func (h *Handler) analyticsSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.analytics.Summary(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("total_orders", func(e *jx.Encoder) { e.Int64(s.TotalOrders) })
			e.Field("total_revenue", func(e *jx.Encoder) { e.RawStr(s.TotalRevenue.String()) })
			e.Field("average_order_value", func(e *jx.Encoder) { e.RawStr(s.AverageOrderValue.String()) })
			e.Field("average_items_per_order", func(e *jx.Encoder) { e.RawStr(s.AverageItemsPerOrder.String()) })
			e.Field("total_units_sold", func(e *jx.Encoder) { e.Int64(s.TotalUnitsSold) })
			e.Field("total_customers", func(e *jx.Encoder) { e.Int64(s.TotalCustomers) })
		})
	})
}

// analyticsProducts ranks products. Query parameters: rank=most|least
// (default most), by=units|orders (default units), limit (default 10).
func (h *Handler) analyticsProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	rank := r.URL.Query().Get("rank")
	by := r.URL.Query().Get("by")

	var ranks []analytics.ProductRank
	switch {
	case rank == "least" && by == "orders":
		ranks, err = h.analytics.LeastOrderedProducts(r.Context(), limit)
	case by == "orders":
		ranks, err = h.analytics.MostOrderedProducts(r.Context(), limit)
	case rank == "least":
		ranks, err = h.analytics.LeastSellingProducts(r.Context(), limit)
	default:
		ranks, err = h.analytics.TopSellingProducts(r.Context(), limit)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range ranks {
				e.Obj(func(e *jx.Encoder) {
					e.Field("product_id", func(e *jx.Encoder) { e.Int64(p.ProductID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
					e.Field("count", func(e *jx.Encoder) { e.Int64(p.Count) })
				})
			}
		})
	})
}

// analyticsProductUnits returns the summed units sold of one product.
func (h *Handler) analyticsProductUnits(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	units, err := h.analytics.ProductUnitsSold(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("product_id", func(e *jx.Encoder) { e.Int64(id) })
			e.Field("units_sold", func(e *jx.Encoder) { e.Int64(units) })
		})
	})
}

// analyticsCustomers returns the top customers by summed order totals.
func (h *Handler) analyticsCustomers(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	customers, err := h.analytics.TopCustomers(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range customers {
				e.Obj(func(e *jx.Encoder) {
					e.Field("user_id", func(e *jx.Encoder) { e.Int64(c.UserID) })
					e.Field("username", func(e *jx.Encoder) { e.Str(c.Username) })
					e.Field("total_spent", func(e *jx.Encoder) { e.RawStr(c.TotalSpent.String()) })
				})
			}
		})
	})
}

// analyticsOrders filters orders by exactly one of: a [start, end] date range
// (which also reports range revenue and average order value), a minimum
// total, or a contained product.
func (h *Handler) analyticsOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case q.Get("start") != "" || q.Get("end") != "":
		start, err1 := time.Parse(time.RFC3339, q.Get("start"))
		end, err2 := time.Parse(time.RFC3339, q.Get("end"))
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "start and end must be RFC3339 timestamps")
			return
		}

		orders, err := h.analytics.OrdersWithinRange(r.Context(), start, end)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		revenue, err := h.analytics.RevenueWithinRange(r.Context(), start, end)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		avg, err := h.analytics.AverageOrderValueWithinRange(r.Context(), start, end)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("orders", func(e *jx.Encoder) { encodeOrderInfos(e, orders) })
				e.Field("revenue", func(e *jx.Encoder) { e.RawStr(revenue.String()) })
				e.Field("average_order_value", func(e *jx.Encoder) { e.RawStr(avg.String()) })
			})
		})

	case q.Get("min_total") != "":
		minTotal, err := decimal.NewFromString(q.Get("min_total"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_total")
			return
		}
		orders, err := h.analytics.OrdersExceedingTotal(r.Context(), minTotal)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrderInfos(e, orders) })

	case q.Get("product_id") != "":
		productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid product_id")
			return
		}
		orders, err := h.analytics.OrdersContainingProduct(r.Context(), productID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrderInfos(e, orders) })

	default:
		writeError(w, http.StatusBadRequest, "one of start/end, min_total, or product_id is required")
	}
}

// analyticsOrderExtremes returns the most and least expensive orders, null
// when the store has none.
func (h *Handler) analyticsOrderExtremes(w http.ResponseWriter, r *http.Request) {
	most, err := h.analytics.MostExpensiveOrder(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	least, err := h.analytics.LeastExpensiveOrder(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("most_expensive", func(e *jx.Encoder) { encodeOrderInfoOrNull(e, most) })
			e.Field("least_expensive", func(e *jx.Encoder) { encodeOrderInfoOrNull(e, least) })
		})
	})
}

// analyticsUserOrders returns the user's order history, newest first.
func (h *Handler) analyticsUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	orders, err := h.analytics.UserOrderHistory(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrderInfos(e, orders) })
}

// analyticsUserCart returns the user's cart rollup at current catalog prices.
func (h *Handler) analyticsUserCart(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	value, err := h.analytics.UserCartValue(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	totals, err := h.analytics.UserCartTotals(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("user_id", func(e *jx.Encoder) { e.Int64(userID) })
			e.Field("value", func(e *jx.Encoder) { e.RawStr(value.String()) })
			e.Field("lines", func(e *jx.Encoder) { e.Int64(totals.Lines) })
			e.Field("quantity", func(e *jx.Encoder) { e.Int64(totals.Quantity) })
		})
	})
}

// analyticsInactiveCarts lists carts untouched since the `since` timestamp.
func (h *Handler) analyticsInactiveCarts(w http.ResponseWriter, r *http.Request) {
	threshold, err := sinceParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
		return
	}

	carts, err := h.analytics.InactiveCarts(r.Context(), threshold)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range carts {
				e.Obj(func(e *jx.Encoder) {
					e.Field("cart_id", func(e *jx.Encoder) { e.Int64(c.ID) })
					e.Field("user_id", func(e *jx.Encoder) { e.Int64(c.UserID) })
					e.Field("updated_at", func(e *jx.Encoder) { e.Str(c.UpdatedAt.Format(timeFormat)) })
				})
			}
		})
	})
}

// deleteInactiveCarts removes carts untouched since the `since` timestamp and
// reports the exact count removed.
func (h *Handler) deleteInactiveCarts(w http.ResponseWriter, r *http.Request) {
	threshold, err := sinceParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
		return
	}

	deleted, err := h.analytics.DeleteInactiveCarts(r.Context(), threshold)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("deleted", func(e *jx.Encoder) { e.Int64(deleted) })
		})
	})
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultRankLimit, nil
	}
	return strconv.Atoi(raw)
}

func sinceParam(r *http.Request) (time.Time, error) {
	return time.Parse(time.RFC3339, r.URL.Query().Get("since"))
}

func encodeOrderInfos(e *jx.Encoder, orders []analytics.OrderInfo) {
	e.Arr(func(e *jx.Encoder) {
		for _, o := range orders {
			encodeOrderInfo(e, o)
		}
	})
}

func encodeOrderInfoOrNull(e *jx.Encoder, o *analytics.OrderInfo) {
	if o == nil {
		e.Null()
		return
	}
	encodeOrderInfo(e, *o)
}

func encodeOrderInfo(e *jx.Encoder, o analytics.OrderInfo) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("user_id", func(e *jx.Encoder) { e.Int64(o.UserID) })
		e.Field("total", func(e *jx.Encoder) { e.RawStr(o.Total.String()) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(timeFormat)) })
	})
}
