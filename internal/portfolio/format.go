package portfolio

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatUSD renders an amount like "$1,100.00".
func FormatUSD(amount decimal.Decimal) string {
	return money.NewFromFloat(amount.InexactFloat64(), money.USD).Display()
}
