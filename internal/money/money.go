package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every Amount is normalized to.
const Scale = 2

// InvalidAmountError reports a value that cannot become a valid Amount,
// such as a negative input or a subtraction that would go below zero.
type InvalidAmountError struct {
	Value  string
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid monetary amount %s: %s", e.Value, e.Reason)
}

// Amount is an immutable, non-negative monetary value with scale 2.
// Every constructor and operation normalizes with half-up rounding,
// so 10.005 becomes 10.01 and 10.004 becomes 10.00.
type Amount struct {
	value decimal.Decimal
}

// New builds an Amount from a decimal, rejecting negative values.
func New(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, &InvalidAmountError{Value: d.String(), Reason: "amount cannot be negative"}
	}
	return Amount{value: d.Round(Scale)}, nil
}

// NewFromString parses a decimal string into an Amount.
func NewFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, &InvalidAmountError{Value: s, Reason: "not a decimal value"}
	}
	return New(d)
}

// NewFromFloat builds an Amount from a float64.
func NewFromFloat(f float64) (Amount, error) {
	return New(decimal.NewFromFloat(f))
}

// MustFromString is NewFromString that panics on error. For fixtures and seeds.
func MustFromString(s string) Amount {
	a, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Zero returns the additive identity.
func Zero() Amount {
	return Amount{value: decimal.Zero}
}

// Add returns a + other. The sum of two non-negative amounts is always valid.
func (a Amount) Add(other Amount) Amount {
	return Amount{value: a.value.Add(other.value).Round(Scale)}
}

// Subtract returns a - other, failing if the result would be negative.
func (a Amount) Subtract(other Amount) (Amount, error) {
	result := a.value.Sub(other.value)
	if result.IsNegative() {
		return Amount{}, &InvalidAmountError{
			Value:  result.String(),
			Reason: fmt.Sprintf("subtracting %s from %s yields a negative amount", other, a),
		}
	}
	return Amount{value: result.Round(Scale)}, nil
}

// Multiply returns a * factor, failing on a negative factor.
func (a Amount) Multiply(factor decimal.Decimal) (Amount, error) {
	if factor.IsNegative() {
		return Amount{}, &InvalidAmountError{Value: factor.String(), Reason: "factor cannot be negative"}
	}
	return Amount{value: a.value.Mul(factor).Round(Scale)}, nil
}

// Cmp compares two amounts: -1 if a < other, 0 if equal, +1 if a > other.
func (a Amount) Cmp(other Amount) int {
	return a.value.Cmp(other.value)
}

// Equal reports whether both amounts have the same normalized value.
func (a Amount) Equal(other Amount) bool {
	return a.value.Equal(other.value)
}

// IsZero reports whether the amount equals zero.
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.value.IsPositive()
}

// IsNegative reports whether the amount is below zero. Always false for an
// Amount built through the constructors; kept so the value type exposes the
// full sign predicate set.
func (a Amount) IsNegative() bool {
	return a.value.IsNegative()
}

// GreaterThanOrEqual reports whether a >= other.
func (a Amount) GreaterThanOrEqual(other Amount) bool {
	return a.value.GreaterThanOrEqual(other.value)
}

// LessThan reports whether a < other.
func (a Amount) LessThan(other Amount) bool {
	return a.value.LessThan(other.value)
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.value
}

// String renders the amount with exactly two decimal places, e.g. "500.00".
func (a Amount) String() string {
	return a.value.StringFixed(Scale)
}

// Value implements driver.Valuer so Amount can be written by database/sql.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner, enforcing the non-negativity invariant on read.
func (a *Amount) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	parsed, err := New(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
