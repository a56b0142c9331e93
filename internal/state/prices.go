package state

import (
	"sync"

	"github.com/shopspring/decimal"
)

// PriceCache holds the last seen price per symbol. Writes come from the
// ingestion path only; everything else reads.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewPriceCache() *PriceCache {
	return &PriceCache{
		prices: map[string]decimal.Decimal{},
	}
}

// Set overwrites the price for symbol and returns the value it replaced.
func (c *PriceCache) Set(symbol string, price decimal.Decimal) (previous decimal.Decimal, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous, existed = c.prices[symbol]
	c.prices[symbol] = price
	return previous, existed
}

func (c *PriceCache) Price(symbol string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.prices[symbol]
	return price, ok
}

func (c *PriceCache) Snapshot() map[string]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	copy := make(map[string]decimal.Decimal, len(c.prices))
	for k, v := range c.prices {
		copy[k] = v
	}
	return copy
}
