package portfolio

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// DustThreshold is the quantity below which a holding is left out of the
// valuation breakdown. The holding itself is kept.
var DustThreshold = decimal.New(1, -6)

type PriceSource interface {
	Price(symbol string) (decimal.Decimal, bool)
}

// Engine is a paper trading account valued against live prices. It is not
// safe for concurrent use; the caller serializes access.
//
// Amounts are shopspring decimals. Unit quantities come from a division
// rounded to decimal.DivisionPrecision digits, so long runs of fractional
// trades can drift by a few units in the last place.
type Engine struct {
	prices   PriceSource
	symbols  []string
	active   bool
	cash     decimal.Decimal
	holdings map[string]decimal.Decimal
}

func New(prices PriceSource, symbols []string) *Engine {
	e := &Engine{
		prices:  prices,
		symbols: append([]string(nil), symbols...),
	}
	e.Reset()
	return e
}

type Trade struct {
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	USD       decimal.Decimal `json:"usd"`
	Units     decimal.Decimal `json:"units"`
	Price     decimal.Decimal `json:"price"`
	CashAfter decimal.Decimal `json:"cashAfter"`
	HeldAfter decimal.Decimal `json:"heldAfter"`
}

type Account struct {
	Active   bool                       `json:"active"`
	Cash     decimal.Decimal            `json:"cash"`
	Holdings map[string]decimal.Decimal `json:"holdings"`
}

type Position struct {
	Symbol string          `json:"symbol"`
	Units  decimal.Decimal `json:"units"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
}

type Valuation struct {
	Active       bool            `json:"active"`
	Cash         decimal.Decimal `json:"cash"`
	Positions    []Position      `json:"positions"`
	Total        decimal.Decimal `json:"totalEquity"`
	CashDisplay  string          `json:"cashDisplay"`
	TotalDisplay string          `json:"totalDisplay"`
}

func (e *Engine) Active() bool {
	return e.active
}

// Initialize opens the account with amount of cash. An active account must be
// reset first.
func (e *Engine) Initialize(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		slog.Info("account init rejected", "reason", "invalid_amount", "amount", amount)
		return fmt.Errorf("%w: initial cash must be a positive number", ErrInvalidAmount)
	}
	if e.active {
		slog.Info("account init rejected", "reason", "already_active")
		return ErrAlreadyActive
	}

	e.active = true
	e.cash = decimal.NewFromFloat(amount)
	e.zeroHoldings()
	slog.Info("demo account created", "cash", FormatUSD(e.cash))
	return nil
}

// Reset closes the account. Confirmation is the caller's business.
func (e *Engine) Reset() {
	e.active = false
	e.cash = decimal.Zero
	e.zeroHoldings()
}

func (e *Engine) zeroHoldings() {
	e.holdings = make(map[string]decimal.Decimal, len(e.symbols))
	for _, s := range e.symbols {
		e.holdings[s] = decimal.Zero
	}
}

func (e *Engine) Buy(symbol string, usdAmount float64) (Trade, error) {
	price, hasPrice := e.prices.Price(symbol)
	usd, err := evaluate(tradeRequest{Side: Buy, Symbol: symbol, Amount: usdAmount}, ledgerView{
		Active:   e.active,
		Cash:     e.cash,
		Held:     e.holdings[symbol],
		Price:    price,
		HasPrice: hasPrice,
	})
	if err != nil {
		return Trade{}, err
	}

	units := usd.Div(price)
	e.cash = e.cash.Sub(usd)
	e.holdings[symbol] = e.holdings[symbol].Add(units)

	trade := Trade{
		Symbol:    symbol,
		Side:      Buy,
		USD:       usd,
		Units:     units,
		Price:     price,
		CashAfter: e.cash,
		HeldAfter: e.holdings[symbol],
	}
	slog.Info("trade executed", "side", Buy, "symbol", symbol, "usd", usd, "units", units, "price", price)
	return trade, nil
}

func (e *Engine) Sell(symbol string, units Units) (Trade, error) {
	price, hasPrice := e.prices.Price(symbol)
	qty, err := evaluate(tradeRequest{Side: Sell, Symbol: symbol, Units: units}, ledgerView{
		Active:   e.active,
		Cash:     e.cash,
		Held:     e.holdings[symbol],
		Price:    price,
		HasPrice: hasPrice,
	})
	if err != nil {
		return Trade{}, err
	}

	proceeds := qty.Mul(price)
	if units.All() {
		e.holdings[symbol] = decimal.Zero
	} else {
		e.holdings[symbol] = e.holdings[symbol].Sub(qty)
	}
	e.cash = e.cash.Add(proceeds)

	trade := Trade{
		Symbol:    symbol,
		Side:      Sell,
		USD:       proceeds,
		Units:     qty,
		Price:     price,
		CashAfter: e.cash,
		HeldAfter: e.holdings[symbol],
	}
	slog.Info("trade executed", "side", Sell, "symbol", symbol, "usd", proceeds, "units", qty, "price", price)
	return trade, nil
}

func (e *Engine) Account() Account {
	holdings := make(map[string]decimal.Decimal, len(e.holdings))
	for k, v := range e.holdings {
		holdings[k] = v
	}
	return Account{Active: e.active, Cash: e.cash, Holdings: holdings}
}

// Valuation prices every holding at the cached price, zero when none is known
// yet. Dust positions are left out of the breakdown and of the total.
func (e *Engine) Valuation() Valuation {
	v := Valuation{
		Active:    e.active,
		Cash:      e.cash,
		Positions: []Position{},
		Total:     e.cash,
	}
	for _, symbol := range e.orderedSymbols() {
		units := e.holdings[symbol]
		if !units.GreaterThan(DustThreshold) {
			continue
		}
		price, ok := e.prices.Price(symbol)
		if !ok {
			price = decimal.Zero
		}
		value := units.Mul(price)
		v.Positions = append(v.Positions, Position{
			Symbol: symbol,
			Units:  units,
			Price:  price,
			Value:  value,
		})
		v.Total = v.Total.Add(value)
	}
	v.CashDisplay = FormatUSD(v.Cash)
	v.TotalDisplay = FormatUSD(v.Total)
	return v
}

// orderedSymbols lists tracked symbols first, in configuration order, then any
// other held symbol alphabetically.
func (e *Engine) orderedSymbols() []string {
	out := append([]string(nil), e.symbols...)
	tracked := make(map[string]bool, len(e.symbols))
	for _, s := range e.symbols {
		tracked[s] = true
	}
	var extra []string
	for s := range e.holdings {
		if !tracked[s] {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
