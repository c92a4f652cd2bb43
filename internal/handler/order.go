package handler

import (
	"bytes"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/ugx-shop/internal/domain/order"
)

// checkout converts the user's cart into an order. An optional {amount_paid}
// body field is a cash payment in whole shillings; the response then carries
// the minimal change breakdown by denomination.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req := order.CheckoutRequest{UserID: KeyFromContext(r.Context()).UserID}
	if len(bytes.TrimSpace(data)) > 0 {
		err := decodeObj(data, func(d *jx.Decoder, key string) error {
			switch key {
			case "amount_paid":
				v, err := d.Int64()
				req.AmountPaid = &v
				return err
			default:
				return d.Skip()
			}
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.orders.Checkout(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str("order placed") })
			e.Field("order_id", func(e *jx.Encoder) { e.Int64(result.Order.ID) })
			e.Field("total", func(e *jx.Encoder) { e.RawStr(result.Order.Total.String()) })
			if result.Change != nil {
				e.Field("change", func(e *jx.Encoder) { encodeChange(e, result.Change) })
			}
		})
	})
}

// encodeChange writes the change map keyed by denomination, largest first.
func encodeChange(e *jx.Encoder, change map[int64]int64) {
	denoms := make([]int64, 0, len(change))
	for d := range change {
		denoms = append(denoms, d)
	}
	slices.Sort(denoms)
	slices.Reverse(denoms)

	e.Obj(func(e *jx.Encoder) {
		for _, d := range denoms {
			e.Field(strconv.FormatInt(d, 10), func(e *jx.Encoder) { e.Int64(change[d]) })
		}
	})
}

// getOrder returns an order with its price-snapshot items.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
			e.Field("user_id", func(e *jx.Encoder) { e.Int64(o.UserID) })
			e.Field("total", func(e *jx.Encoder) { e.RawStr(o.Total.String()) })
			e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(timeFormat)) })
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, item := range o.Items {
						e.Obj(func(e *jx.Encoder) {
							e.Field("product_id", func(e *jx.Encoder) { e.Int64(item.ProductID) })
							e.Field("quantity", func(e *jx.Encoder) { e.Int32(item.Quantity) })
							e.Field("price", func(e *jx.Encoder) { e.RawStr(item.Price.String()) })
						})
					}
				})
			})
		})
	})
}

// applyDiscount reduces the order's stored total by a percentage. Repeated
// applications compound.
func (h *Handler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var percentage decimal.Decimal
	err = decodeObj(data, func(d *jx.Decoder, key string) error {
		switch key {
		case "percentage":
			n, err := d.Num()
			if err != nil {
				return err
			}
			percentage, err = decimal.NewFromString(n.String())
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newTotal, err := h.orders.ApplyDiscount(r.Context(), id, percentage)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("order_id", func(e *jx.Encoder) { e.Int64(id) })
			e.Field("total", func(e *jx.Encoder) { e.RawStr(newTotal.String()) })
		})
	})
}
