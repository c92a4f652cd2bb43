package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// InvalidRatingError indicates a review rating outside 1..5.
type InvalidRatingError struct {
	Rating int32
}

func (e *InvalidRatingError) Error() string {
	return fmt.Sprintf("rating must be between 1 and 5, got %d", e.Rating)
}

// ValidRating reports whether rating is within 1..5.
func ValidRating(rating int32) bool {
	return rating >= 1 && rating <= 5
}

// Product represents a catalog item available for purchase. Price is the
// current catalog price in UGX; carts always read it live, orders snapshot it
// at checkout time.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int32
}

// Category groups products for browsing.
type Category struct {
	ID          int64
	Name        string
	Description string
}

// Review is a customer review of a product. Rating is constrained to 1..5.
type Review struct {
	ID        int64
	ProductID int64
	UserID    int64
	Rating    int32
	Comment   string
	CreatedAt time.Time
}

// Repository defines catalog read operations plus review submission, the one
// catalog-side write the shop accepts from customers.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListCategories(ctx context.Context) ([]Category, error)

	// CreateReview persists a review and fills in its ID and CreatedAt.
	CreateReview(ctx context.Context, r *Review) error
}
