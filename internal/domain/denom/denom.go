// Package denom validates and decomposes monetary amounts against a fixed set
// of Ugandan Shilling cash denominations. Amounts are int64 whole shillings;
// UGX has no sub-unit, and nothing smaller than a 100 shilling coin is legal
// tender.
package denom

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Set is an ordered (largest first) sequence of cash denomination values.
type Set []int64

// UGX is the canonical Ugandan Shilling denomination set.
var UGX = Set{50000, 20000, 10000, 5000, 2000, 1000, 500, 200, 100}

// ErrInsufficientPayment is returned when the amount paid does not cover the
// total cost.
var ErrInsufficientPayment = errors.New("amount paid is less than total cost")

// NotRepresentableError indicates an amount that cannot be fully decomposed
// into the denomination set. Remainder is the part left over after greedy
// decomposition (the whole amount when it is negative).
type NotRepresentableError struct {
	Amount    int64
	Remainder int64
}

func (e *NotRepresentableError) Error() string {
	return fmt.Sprintf("amount %d cannot be represented in cash denominations (remainder %d)", e.Amount, e.Remainder)
}

// Canonical reports whether greedy decomposition produces the minimal
// note/coin count for every representable amount. It uses the Kozen-Zaks
// bound: greedy is optimal everywhere iff it is optimal for every amount
// below the sum of the two largest denominations, so the check compares
// greedy against an exact dynamic program over that range. The UGX set is
// canonical; substituted sets must stay canonical or Change loses its
// minimality guarantee.
func (s Set) Canonical() bool {
	if len(s) == 0 || s[len(s)-1] <= 0 {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] <= s[i+1] {
			return false
		}
	}
	if len(s) == 1 {
		return true
	}

	const inf = int64(1) << 62
	limit := s[0] + s[1]
	best := make([]int64, limit+1)
	for x := int64(1); x <= limit; x++ {
		best[x] = inf
		for _, d := range s {
			if d <= x && best[x-d] != inf && best[x-d]+1 < best[x] {
				best[x] = best[x-d] + 1
			}
		}
		if best[x] == inf {
			// Not representable at all; greedy correctly rejects these.
			continue
		}

		breakdown, remainder := s.decompose(x)
		if remainder != 0 {
			return false
		}
		var greedy int64
		for _, count := range breakdown {
			greedy += count
		}
		if greedy > best[x] {
			return false
		}
	}
	return true
}

// Validate checks that amount is non-negative and fully representable in the
// set. The check runs the explicit greedy decomposition rather than a modulus
// shortcut so that edits to the set keep it correct.
func (s Set) Validate(amount int64) error {
	if amount < 0 {
		return &NotRepresentableError{Amount: amount, Remainder: amount}
	}
	_, remainder := s.decompose(amount)
	if remainder != 0 {
		return &NotRepresentableError{Amount: amount, Remainder: remainder}
	}
	return nil
}

// Change computes the minimal-count cash breakdown of paid - cost. It fails
// with ErrInsufficientPayment when paid < cost, and with NotRepresentableError
// when the due amount cannot be fully decomposed; it never returns a partial
// breakdown.
func (s Set) Change(paid, cost int64) (map[int64]int64, error) {
	if paid < cost {
		return nil, ErrInsufficientPayment
	}

	due := paid - cost
	breakdown, remainder := s.decompose(due)
	if remainder != 0 {
		return nil, &NotRepresentableError{Amount: due, Remainder: remainder}
	}
	return breakdown, nil
}

// decompose greedily assigns the maximum count of each denomination, largest
// first, recording only non-zero counts. The second return value is what
// could not be covered. Non-positive denominations are skipped so a malformed
// set degrades to a not-representable remainder instead of a division panic.
func (s Set) decompose(amount int64) (map[int64]int64, int64) {
	breakdown := make(map[int64]int64)
	remaining := amount
	for _, d := range s {
		if d <= 0 {
			continue
		}
		if count := remaining / d; count > 0 {
			breakdown[d] = count
			remaining -= count * d
		}
	}
	return breakdown, remaining
}

// ValidateAmount validates amount against the canonical UGX set.
func ValidateAmount(amount int64) error {
	return UGX.Validate(amount)
}

// CalculateChange computes change for a cash payment against the canonical
// UGX set.
func CalculateChange(paid, cost int64) (map[int64]int64, error) {
	return UGX.Change(paid, cost)
}
