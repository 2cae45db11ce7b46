/*
money.go - Fixed-point currency amounts

PURPOSE:
  Balances and charges are dollar amounts with exactly two decimals.
  Arithmetic is done on decimal.Decimal and every value that leaves this
  file is rounded half away from zero at the third decimal, so a charge
  compared against a balance is always the charge that gets stored.

STORAGE:
  Stores persist Money as integer cents (Cents / MoneyFromCents). That is
  what makes the conditional debit in SQL exact.

SEE ALSO:
  - ledger.go: Debit/Credit use Cents()
  - plan.go: Upgrade cost table
*/
package billing

import (
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// DefaultDayRate is the price of one active schedule day.
var DefaultDayRate = MustParseMoney("0.10")

// Money is a non-fractional-cent dollar amount.
type Money struct {
	Value decimal.Decimal
}

// Zero is $0.00.
var Zero = Money{Value: decimal.Zero}

// NewMoney rounds f to cents.
func NewMoney(f float64) Money {
	return Money{Value: Round2(decimal.NewFromFloat(f))}
}

// MoneyFromCents converts a stored cent count.
func MoneyFromCents(cents int64) Money {
	return Money{Value: decimal.New(cents, -2)}
}

// ParseMoney parses a decimal string and rounds it to cents.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, errors.Wrapf(err, "invalid amount %q", s)
	}
	return Money{Value: Round2(d)}, nil
}

// MustParseMoney panics on malformed input. For constants only.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Round2 rounds half away from zero at the third decimal.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// HasAtMostTwoDecimals reports whether d needs no rounding to be stored.
func HasAtMostTwoDecimals(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// ChargeForDays prices n days at rate, rounded to cents.
func ChargeForDays(n int, rate Money) Money {
	return Money{Value: Round2(rate.Value.Mul(decimal.NewFromInt(int64(n))))}
}

func (m Money) Cents() int64               { return m.Value.Shift(2).Round(0).IntPart() }
func (m Money) Add(o Money) Money          { return Money{Value: Round2(m.Value.Add(o.Value))} }
func (m Money) Sub(o Money) Money          { return Money{Value: Round2(m.Value.Sub(o.Value))} }
func (m Money) LessThan(o Money) bool      { return m.Value.LessThan(o.Value) }
func (m Money) GreaterThan(o Money) bool   { return m.Value.GreaterThan(o.Value) }
func (m Money) Equal(o Money) bool         { return m.Value.Equal(o.Value) }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) Float64() float64           { f, _ := m.Value.Float64(); return f }

// String renders "1.00".
func (m Money) String() string {
	return m.Value.StringFixed(2)
}

// Dollars renders "$1.00".
func (m Money) Dollars() string {
	return "$" + m.String()
}

// MarshalJSON emits a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	m.Value = d
	return nil
}
