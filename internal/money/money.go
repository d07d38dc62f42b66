// Package money implements the shop's currency amounts.
//
// Amounts are fixed-point decimals with three fractional digits (the fils of
// the Kuwaiti dinar). Every constructor and arithmetic result is rounded to
// that precision, so repeated edits never accumulate binary rounding drift
// and "paid in full" is an exact zero test.
package money

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits carried by every Amount.
const Places = 3

var (
	ErrInvalid   = errors.New("invalid amount")
	ErrPrecision = errors.New("amount has more than 3 fractional digits")
)

// Max is the largest magnitude a NUMERIC(12,3) column holds.
var Max = Amount{d: decimal.New(999_999_999_999, -Places)}

// Amount is an immutable currency value. The zero value is 0.000.
type Amount struct {
	d decimal.Decimal
}

// Zero is 0.000.
var Zero = Amount{}

// New rounds d to Places and wraps it.
func New(d decimal.Decimal) Amount {
	return Amount{d: d.Round(Places)}
}

// FromInt returns a whole-unit amount, e.g. FromInt(5) == 5.000.
func FromInt(units int64) Amount {
	return Amount{d: decimal.NewFromInt(units)}
}

// FromMinor returns an amount from fils, e.g. FromMinor(1) == 0.001.
func FromMinor(fils int64) Amount {
	return Amount{d: decimal.New(fils, -Places)}
}

// Parse reads a decimal string. Values that would need rounding are
// rejected instead of being silently corrected.
func Parse(s string) (Amount, error) {
	if s == "" {
		return Zero, fmt.Errorf("%w: empty", ErrInvalid)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	if !d.Equal(d.Round(Places)) {
		return Zero, fmt.Errorf("%w: %q", ErrPrecision, s)
	}
	a := New(d)
	if a.ExceedsMax() {
		return Zero, fmt.Errorf("%w: %q is out of range", ErrInvalid, s)
	}
	return a, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount { return New(a.d.Add(b.d)) }
func (a Amount) Sub(b Amount) Amount { return New(a.d.Sub(b.d)) }

// MulQty multiplies by an item quantity.
func (a Amount) MulQty(qty int32) Amount {
	return New(a.d.Mul(decimal.NewFromInt32(qty)))
}

// ClampZero returns max(0, a).
func (a Amount) ClampZero() Amount {
	if a.d.IsNegative() {
		return Zero
	}
	return a
}

// ExceedsMax reports whether a cannot be stored, i.e. |a| > Max.
func (a Amount) ExceedsMax() bool {
	return a.d.Abs().GreaterThan(Max.d)
}

// Sum adds all amounts.
func Sum(amounts ...Amount) Amount {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func (a Amount) Cmp(b Amount) int              { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool           { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool        { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool     { return a.d.GreaterThan(b.d) }
func (a Amount) LessThanOrEqual(b Amount) bool { return a.d.LessThanOrEqual(b.d) }
func (a Amount) IsZero() bool                  { return a.d.IsZero() }
func (a Amount) IsPositive() bool              { return a.d.IsPositive() }
func (a Amount) IsNegative() bool              { return a.d.IsNegative() }

// Decimal exposes the underlying value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// String renders exactly three fractional digits, e.g. "12.500".
func (a Amount) String() string { return a.d.StringFixed(Places) }

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Numeric converts to a NUMERIC(12,3) column value.
func (a Amount) Numeric() pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(a.String())
	return n
}

// FromNumeric converts a NUMERIC column value. NULL reads as zero.
func FromNumeric(n pgtype.Numeric) (Amount, error) {
	if !n.Valid {
		return Zero, nil
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return Zero, err
	}
	s, ok := val.(string)
	if !ok {
		return Zero, fmt.Errorf("%w: unexpected numeric value %T", ErrInvalid, val)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return New(d), nil
}

// ScanNumeric lets pgx scan NUMERIC columns straight into an Amount.
func (a *Amount) ScanNumeric(n pgtype.Numeric) error {
	v, err := FromNumeric(n)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// NumericValue lets pgx encode an Amount as a NUMERIC parameter.
func (a Amount) NumericValue() (pgtype.Numeric, error) {
	return a.Numeric(), nil
}
