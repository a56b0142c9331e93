package engine

import (
	"fmt"

	"pricedash/internal/metrics"
	"pricedash/internal/portfolio"
)

func (e *Engine) InitPortfolio(cash float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.portfolio.Initialize(cash); err != nil {
		return err
	}
	e.notifyPortfolio(e.now())
	return nil
}

// ResetPortfolio closes the demo account. Asking the user for confirmation
// is the caller's job.
func (e *Engine) ResetPortfolio() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.portfolio.Reset()
	e.journal.Append(TradeRecord{Timestamp: e.now().UTC(), Side: "reset", Result: "executed"})
	e.notifyPortfolio(e.now())
}

func (e *Engine) Buy(symbol string, usd float64) (portfolio.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkTradeSymbol(symbol); err != nil {
		return portfolio.Trade{}, err
	}
	trade, err := e.portfolio.Buy(symbol, usd)
	e.recordTrade(portfolio.Buy, symbol, fmt.Sprint(usd), trade, err)
	return trade, err
}

func (e *Engine) Sell(symbol string, units portfolio.Units) (portfolio.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkTradeSymbol(symbol); err != nil {
		return portfolio.Trade{}, err
	}
	trade, err := e.portfolio.Sell(symbol, units)
	e.recordTrade(portfolio.Sell, symbol, units.String(), trade, err)
	return trade, err
}

// checkTradeSymbol runs after the account check, so an inactive account
// reports ErrInactiveAccount whatever the symbol.
func (e *Engine) checkTradeSymbol(symbol string) error {
	if e.portfolio.Active() && !e.tracked[symbol] {
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return nil
}

func (e *Engine) recordTrade(side portfolio.Side, symbol, requested string, trade portfolio.Trade, err error) {
	now := e.now()
	record := TradeRecord{
		Timestamp: now.UTC(),
		Side:      string(side),
		Symbol:    symbol,
		Requested: requested,
	}
	if err != nil {
		metrics.TradesTotal.WithLabelValues(string(side), portfolio.Code(err)).Inc()
		record.Result = "rejected"
		record.RejectReason = portfolio.Code(err)
		e.journal.Append(record)
		return
	}

	metrics.TradesTotal.WithLabelValues(string(side), "executed").Inc()
	record.Result = "executed"
	record.USD = &trade.USD
	record.Units = &trade.Units
	record.Price = &trade.Price
	record.CashAfter = &trade.CashAfter
	e.journal.Append(record)
	e.notifyPortfolio(now)
}

func (e *Engine) Account() portfolio.Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.portfolio.Account()
}

func (e *Engine) Valuation() portfolio.Valuation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.portfolio.Valuation()
}
