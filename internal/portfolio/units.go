package portfolio

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Units is the quantity argument of a sell: either a number of units or the
// whole holding. The quantity is kept as a decimal so a holding read back
// from the ledger sells exactly.
type Units struct {
	all     bool
	invalid bool
	value   decimal.Decimal
}

func AllUnits() Units {
	return Units{all: true}
}

// Qty converts a float quantity. NaN and infinities yield Units that every
// sell rejects.
func Qty(value float64) Units {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Units{invalid: true}
	}
	return Units{value: decimal.NewFromFloat(value)}
}

func QtyDecimal(value decimal.Decimal) Units {
	return Units{value: value}
}

func (u Units) All() bool {
	return u.all
}

func (u Units) Value() decimal.Decimal {
	return u.value
}

func (u Units) positive() bool {
	return !u.all && !u.invalid && u.value.IsPositive()
}

func (u Units) String() string {
	switch {
	case u.all:
		return "all"
	case u.invalid:
		return "invalid"
	}
	return u.value.String()
}

// ParseUnits accepts "all" (any case) or a decimal number.
func ParseUnits(s string) (Units, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return AllUnits(), nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return Units{}, fmt.Errorf("%w: %q is neither a number nor \"all\"", ErrInvalidAmount, s)
	}
	return QtyDecimal(v), nil
}
