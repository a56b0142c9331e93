package md

import (
	"math"
	"sync"
)

const (
	DefaultAverageWindow = 5
	DefaultAnomalyBand   = 0.05
)

// Enricher adds a short rolling average and an anomaly flag to updates from
// sources that only report raw trades. A price further than band away from
// the average of the last window prices, itself included, is an anomaly.
type Enricher struct {
	mu      sync.Mutex
	window  int
	band    float64
	history map[string][]float64
}

func NewEnricher(window int, band float64) *Enricher {
	if window <= 0 {
		window = DefaultAverageWindow
	}
	if band <= 0 {
		band = DefaultAnomalyBand
	}
	return &Enricher{
		window:  window,
		band:    band,
		history: make(map[string][]float64),
	}
}

// Enrich leaves updates that already carry an average untouched.
func (e *Enricher) Enrich(u Update) Update {
	if u.HasAverage || u.Validate() != nil {
		return u
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	prices := append(e.history[u.Symbol], u.Price)
	if len(prices) > e.window {
		prices = prices[len(prices)-e.window:]
	}
	e.history[u.Symbol] = prices

	var sum float64
	for _, p := range prices {
		sum += p
	}
	avg := sum / float64(len(prices))

	u.AveragePrice = avg
	u.HasAverage = true
	if avg > 0 && math.Abs(u.Price-avg)/avg > e.band {
		u.IsAnomaly = true
	}
	return u
}
