package notify

import (
	"time"

	"pricedash/internal/md"
	"pricedash/internal/portfolio"
)

type Kind string

const (
	PriceChanged     Kind = "price_changed"
	BufferChanged    Kind = "buffer_changed"
	AnomalyFlagged   Kind = "anomaly_flagged"
	AnomalyCleared   Kind = "anomaly_cleared"
	PortfolioChanged Kind = "portfolio_changed"
	HistoryFailed    Kind = "history_failed"
)

// Direction compares a price with the one it replaced.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

// Event is a state change the rendering surface may want to draw. Only the
// fields relevant to Kind are set.
type Event struct {
	Kind      Kind                 `json:"kind"`
	Symbol    string               `json:"symbol,omitempty"`
	Price     *float64             `json:"price,omitempty"`
	Direction Direction            `json:"direction,omitempty"`
	Samples   []md.Sample          `json:"samples,omitempty"`
	Valuation *portfolio.Valuation `json:"valuation,omitempty"`
	Error     string               `json:"error,omitempty"`
	At        time.Time            `json:"at"`
}

// PriceOf boxes a price for Event.Price. Zero is a valid price and is still
// sent.
func PriceOf(v float64) *float64 {
	return &v
}

// PriceValue is Price or zero when unset.
func (ev Event) PriceValue() float64 {
	if ev.Price == nil {
		return 0
	}
	return *ev.Price
}

type Notifier interface {
	Notify(Event)
}

// Func adapts a plain function to Notifier.
type Func func(Event)

func (f Func) Notify(ev Event) {
	f(ev)
}

// Multi fans an event out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ev Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ev)
		}
	}
}

// Discard drops every event.
var Discard Notifier = Func(func(Event) {})
