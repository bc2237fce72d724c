package money

import (
	"errors"
	"fmt"
	"math"
)

// Amount is a monetary value in minor units (kobo). All order math is
// integer arithmetic; floating point never touches money.
type Amount int64

// DefaultCurrency is the only currency the store charges in today.
const DefaultCurrency = "NGN"

// MaxOrderTotal caps a single order at NGN 100,000,000.00. Anything above
// this is treated as corrupted or overflowed input, not a real purchase.
const MaxOrderTotal Amount = 10_000_000_000

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrOverflow       = errors.New("amount overflow")
)

// Line computes unitPrice * quantity with overflow checking.
func Line(unitPrice Amount, quantity int) (Amount, error) {
	if unitPrice < 0 {
		return 0, ErrNegativeAmount
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("invalid quantity: %d", quantity)
	}
	if unitPrice > 0 && int64(unitPrice) > math.MaxInt64/int64(quantity) {
		return 0, ErrOverflow
	}
	return unitPrice * Amount(quantity), nil
}

// Add returns a+b with overflow checking.
func Add(a, b Amount) (Amount, error) {
	if a < 0 || b < 0 {
		return 0, ErrNegativeAmount
	}
	if int64(a) > math.MaxInt64-int64(b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// WithinCeiling reports whether a total is inside [0, MaxOrderTotal].
func WithinCeiling(total Amount) bool {
	return total >= 0 && total <= MaxOrderTotal
}
