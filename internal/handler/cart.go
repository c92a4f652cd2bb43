package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/xenking/ugx-shop/internal/domain/cart"
)

// cartItemReq is the body of POST and PUT /api/cart.
type cartItemReq struct {
	ProductID int64
	Quantity  int32
}

func decodeCartItemReq(r *http.Request, defaultQuantity int32) (cartItemReq, error) {
	data, err := readBody(r)
	if err != nil {
		return cartItemReq{}, err
	}

	req := cartItemReq{Quantity: defaultQuantity}
	err = decodeObj(data, func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Int64()
			req.ProductID = v
			return err
		case "quantity":
			v, err := d.Int32()
			req.Quantity = v
			return err
		default:
			return d.Skip()
		}
	})
	return req, err
}

// getCart returns the cart's lines and its value at current catalog prices.
func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	userID := KeyFromContext(r.Context()).UserID

	items, err := h.carts.ListItems(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	total, err := h.carts.TotalValue(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, item := range items {
						encodeCartItem(e, item)
					}
				})
			})
			e.Field("total_price", func(e *jx.Encoder) { e.RawStr(total.String()) })
		})
	})
}

func encodeCartItem(e *jx.Encoder, item cart.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(item.ProductID) })
		e.Field("product_name", func(e *jx.Encoder) { e.Str(item.ProductName) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int32(item.Quantity) })
		e.Field("unit_price", func(e *jx.Encoder) { e.RawStr(item.UnitPrice.String()) })
	})
}

// addToCart increments the line's quantity, creating it when absent. A body
// without a quantity adds one unit.
func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCartItemReq(r, 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := KeyFromContext(r.Context()).UserID
	if _, err := h.carts.AddItem(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "item added to cart")
}

// updateCart sets the line's quantity, creating it when absent. Unlike add,
// the quantity is mandatory here: setting requires an explicit target.
func (h *Handler) updateCart(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCartItemReq(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := KeyFromContext(r.Context()).UserID
	if _, err := h.carts.UpdateItemQuantity(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "cart updated")
}

// clearCart removes every line of the user's cart.
func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	userID := KeyFromContext(r.Context()).UserID
	if err := h.carts.Clear(r.Context(), userID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "cart cleared")
}

// removeFromCart deletes one line; removing an absent line succeeds.
func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("product_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	userID := KeyFromContext(r.Context()).UserID
	if err := h.carts.RemoveItem(r.Context(), userID, productID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "item removed from cart")
}
