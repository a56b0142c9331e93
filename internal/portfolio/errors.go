package portfolio

import "errors"

// Every operation that returns one of these errors leaves the account untouched.
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInactiveAccount   = errors.New("no active demo account")
	ErrAlreadyActive     = errors.New("demo account already active, reset it first")
	ErrPriceUnavailable  = errors.New("waiting for price data")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoHoldings        = errors.New("no holdings to sell")
)

// Code maps an error to a stable identifier for API clients. Unknown errors
// map to "internal".
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInactiveAccount):
		return "inactive_account"
	case errors.Is(err, ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, ErrPriceUnavailable):
		return "price_unavailable"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrNoHoldings):
		return "no_holdings"
	default:
		return "internal"
	}
}
