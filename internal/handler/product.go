package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/ugx-shop/internal/domain/product"
)

// Timestamps keep their full stored precision so a created_at read from one
// response can be fed back as an inclusive range bound.
const timeFormat = time.RFC3339Nano

// listProducts returns the full catalog.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range products {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
					e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
					e.Field("price", func(e *jx.Encoder) { e.RawStr(p.Price.String()) })
					e.Field("stock", func(e *jx.Encoder) { e.Int32(p.Stock) })
				})
			}
		})
	})
}

// listCategories returns every category.
func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.products.ListCategories(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, c := range categories {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
					e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
				})
			}
		})
	})
}

// createReview accepts a product review from the acting user.
func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rev := product.Review{UserID: KeyFromContext(r.Context()).UserID}
	err = decodeObj(data, func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Int64()
			rev.ProductID = v
			return err
		case "rating":
			v, err := d.Int32()
			rev.Rating = v
			return err
		case "comment":
			v, err := d.Str()
			rev.Comment = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !product.ValidRating(rev.Rating) {
		writeDomainError(w, r, &product.InvalidRatingError{Rating: rev.Rating})
		return
	}
	if _, err := h.products.GetByID(r.Context(), rev.ProductID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.products.CreateReview(r.Context(), &rev); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str("review created") })
			e.Field("review_id", func(e *jx.Encoder) { e.Int64(rev.ID) })
		})
	})
}
