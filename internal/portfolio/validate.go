package portfolio

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type tradeRequest struct {
	Side   Side
	Symbol string
	Amount float64
	Units  Units
}

type ledgerView struct {
	Active   bool
	Cash     decimal.Decimal
	Held     decimal.Decimal
	Price    decimal.Decimal
	HasPrice bool
}

// evaluate checks a trade against the ledger and resolves its amount: USD for
// a buy, units for a sell. The checks run in a fixed order so the first
// failing precondition is the one reported.
func evaluate(req tradeRequest, view ledgerView) (decimal.Decimal, error) {
	if !view.Active {
		slog.Info("trade rejected", "reason", "inactive_account", "side", req.Side, "symbol", req.Symbol)
		return decimal.Zero, ErrInactiveAccount
	}
	if !view.HasPrice || (req.Side == Buy && !view.Price.IsPositive()) {
		slog.Info("trade rejected", "reason", "price_unavailable", "side", req.Side, "symbol", req.Symbol)
		return decimal.Zero, fmt.Errorf("%w for %s", ErrPriceUnavailable, req.Symbol)
	}

	switch req.Side {
	case Buy:
		if !finitePositive(req.Amount) {
			slog.Info("trade rejected", "reason", "invalid_amount", "side", req.Side, "symbol", req.Symbol, "usd", req.Amount)
			return decimal.Zero, fmt.Errorf("%w: usd amount must be positive", ErrInvalidAmount)
		}
		usd := decimal.NewFromFloat(req.Amount)
		if usd.GreaterThan(view.Cash) {
			slog.Info("trade rejected", "reason", "insufficient_funds", "symbol", req.Symbol, "usd", usd, "cash", view.Cash)
			return decimal.Zero, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, FormatUSD(usd), FormatUSD(view.Cash))
		}
		return usd, nil

	case Sell:
		if !view.Held.IsPositive() {
			slog.Info("trade rejected", "reason", "no_holdings", "symbol", req.Symbol)
			return decimal.Zero, fmt.Errorf("%w in %s", ErrNoHoldings, req.Symbol)
		}
		if req.Units.All() {
			return view.Held, nil
		}
		if !req.Units.positive() {
			slog.Info("trade rejected", "reason", "invalid_amount", "side", req.Side, "symbol", req.Symbol, "units", req.Units)
			return decimal.Zero, fmt.Errorf("%w: units must be positive", ErrInvalidAmount)
		}
		units := req.Units.Value()
		if units.GreaterThan(view.Held) {
			slog.Info("trade rejected", "reason", "exceeds_holding", "symbol", req.Symbol, "units", units, "held", view.Held)
			return decimal.Zero, fmt.Errorf("%w: %s units exceeds holding of %s", ErrInvalidAmount, units, view.Held)
		}
		return units, nil
	}

	return decimal.Zero, fmt.Errorf("unknown trade side %q", req.Side)
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
