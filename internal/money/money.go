package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every Money value carries.
const Scale = 2

// ErrInvalidAmount is returned when a raw amount is not a finite, non-negative number.
var ErrInvalidAmount = errors.New("invalid amount")

// Money is a fixed-point amount with exactly two fractional digits.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{d: decimal.Zero}

// New builds a Money from a decimal, rounding half away from zero to two places.
func New(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// FromInt builds a Money holding a whole number of units.
func FromInt(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

// MustParse is Parse for constants and tests. It panics on invalid input.
func MustParse(raw string) Money {
	m, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return m
}

// Parse reads a signed decimal string. Use FromRequest for user supplied amounts.
func Parse(raw string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return New(d), nil
}

// FromRequest parses an amount supplied by a client. Zero is accepted, negatives are not.
func FromRequest(raw string) (Money, error) {
	m, err := Parse(raw)
	if err != nil {
		return Money{}, err
	}
	if m.IsNegative() {
		return Money{}, fmt.Errorf("%w: must be at least 0", ErrInvalidAmount)
	}
	return m, nil
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return New(m.d.Add(o.d)) }
func (m Money) Sub(o Money) Money { return New(m.d.Sub(o.d)) }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) IsZero() bool { return m.d.IsZero() }

// IsWhole reports whether the amount has no fractional part.
func (m Money) IsWhole() bool { return m.d.Equal(m.d.Truncate(0)) }

// MinorUnits returns the amount as a whole number of units, dropping the
// fractional part. Used for gateways that only accept integer amounts.
func (m Money) MinorUnits() int64 { return m.d.IntPart() }

// String renders the plain form, e.g. "1000.00".
func (m Money) String() string { return m.d.StringFixed(Scale) }

// Grouped renders the dotted thousands form, e.g. "1.000,00".
func (m Money) Grouped() string {
	plain := m.String()
	sign := ""
	if strings.HasPrefix(plain, "-") {
		sign, plain = "-", plain[1:]
	}
	whole, frac, _ := strings.Cut(plain, ".")

	var b strings.Builder
	lead := len(whole) % 3
	if lead > 0 {
		b.WriteString(whole[:lead])
	}
	for i := lead; i < len(whole); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(whole[i : i+3])
	}
	return sign + b.String() + "," + frac
}

// MarshalJSON encodes the amount as its plain string form.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		return fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
