package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/ugx-shop/internal/domain/analytics"
	"github.com/xenking/ugx-shop/internal/domain/cart"
	"github.com/xenking/ugx-shop/internal/domain/denom"
	"github.com/xenking/ugx-shop/internal/domain/order"
	"github.com/xenking/ugx-shop/internal/domain/product"
)

// maxBodySize caps request bodies; every API body is a small JSON object.
const maxBodySize = 1 << 16

// writeJSON encodes one response value built by fn and writes it with the
// given status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the API error shape {code, message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// writeMessage writes the API success shape {message}.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		})
	})
}

// writeDomainError maps domain errors onto API status codes. Anything not in
// the taxonomy is a 500 with a generic message; the cause is logged, never
// leaked.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		iqErr  *cart.InvalidQuantityError
		nrErr  *denom.NotRepresentableError
		idErr  *order.InvalidDiscountError
		ilErr  *analytics.InvalidLimitError
		irErr  *product.InvalidRatingError
	)
	switch {
	case errors.As(err, &iqErr),
		errors.As(err, &nrErr),
		errors.As(err, &idErr),
		errors.As(err, &ilErr),
		errors.As(err, &irErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusBadRequest, "product not found")
	case errors.Is(err, cart.ErrNoCart):
		writeError(w, http.StatusBadRequest, "no cart to clear")
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, order.ErrNonCashTotal):
		writeError(w, http.StatusBadRequest, "order total is not payable in cash denominations")
	case errors.Is(err, denom.ErrInsufficientPayment):
		writeError(w, http.StatusBadRequest, "insufficient payment")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// readBody reads a request body up to maxBodySize.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return data, nil
}

// decodeObj decodes a single JSON object, dispatching each key to fn.
func decodeObj(data []byte, fn func(d *jx.Decoder, key string) error) error {
	d := jx.DecodeBytes(data)
	return d.Obj(fn)
}
