package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pricedash/internal/md"
	"pricedash/internal/metrics"
	"pricedash/internal/notify"
	"pricedash/internal/portfolio"
	"pricedash/internal/state"
)

var (
	ErrUnknownSymbol      = errors.New("unknown symbol")
	ErrHistoryFetchFailed = errors.New("history fetch failed")
)

const (
	DefaultAnomalyWindow  = 2 * time.Second
	DefaultHistoryTimeout = 5 * time.Second
)

type Options struct {
	Symbols        []string
	Symbol         string
	BufferSize     int
	AnomalyWindow  time.Duration
	HistoryTimeout time.Duration
	Clock          func() time.Time
}

// Engine owns the dashboard state: latest prices, the chart series of the
// displayed symbol, anomaly badges and the paper account. All mutation goes
// through the engine mutex, so feed updates and trades never interleave.
//
// Notifiers are called with the mutex held and must not call back into the
// engine.
type Engine struct {
	mu sync.Mutex

	symbols []string
	tracked map[string]bool
	active  string

	prices    *state.PriceCache
	series    *md.Series
	portfolio *portfolio.Engine
	anomalies *anomalyTimers

	history        HistorySource
	historyTimeout time.Duration
	loadSeq        uint64
	cancelLoad     func()
	loading        bool
	pendingLive    []md.Sample

	notifier notify.Notifier
	journal  *Journal
	now      func() time.Time
	closed   bool
}

func New(opts Options, history HistorySource, notifier notify.Notifier, journal *Journal) (*Engine, error) {
	if len(opts.Symbols) == 0 {
		return nil, errors.New("at least one symbol is required")
	}
	if history == nil {
		return nil, errors.New("history source is required")
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	if opts.Symbol == "" {
		opts.Symbol = opts.Symbols[0]
	}
	if opts.AnomalyWindow <= 0 {
		opts.AnomalyWindow = DefaultAnomalyWindow
	}
	if opts.HistoryTimeout <= 0 {
		opts.HistoryTimeout = DefaultHistoryTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	tracked := make(map[string]bool, len(opts.Symbols))
	for _, s := range opts.Symbols {
		tracked[s] = true
	}
	if !tracked[opts.Symbol] {
		return nil, fmt.Errorf("%w: initial symbol %s is not tracked", ErrUnknownSymbol, opts.Symbol)
	}

	prices := state.NewPriceCache()
	e := &Engine{
		symbols:        append([]string(nil), opts.Symbols...),
		tracked:        tracked,
		active:         opts.Symbol,
		prices:         prices,
		series:         md.NewSeries(opts.BufferSize),
		portfolio:      portfolio.New(prices, opts.Symbols),
		history:        history,
		historyTimeout: opts.HistoryTimeout,
		notifier:       notifier,
		journal:        journal,
		now:            opts.Clock,
	}
	e.anomalies = newAnomalyTimers(opts.AnomalyWindow, e.anomalyExpired)
	return e, nil
}

// OnMessage decodes a raw feed message and applies it. Malformed messages
// are logged and dropped; the returned error is informational only.
func (e *Engine) OnMessage(body []byte) error {
	update, err := md.DecodeUpdate(body)
	if err != nil {
		metrics.MalformedMessages.Inc()
		slog.Warn("dropping malformed message", "error", err, "size", len(body))
		return err
	}
	return e.OnUpdate(update)
}

// OnUpdate applies one price update: cache write, chart append for the
// displayed symbol, anomaly badge, then portfolio revaluation.
func (e *Engine) OnUpdate(u md.Update) error {
	if err := u.Validate(); err != nil {
		metrics.MalformedMessages.Inc()
		slog.Warn("dropping malformed update", "error", err)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	price := decimal.NewFromFloat(u.Price)
	previous, existed := e.prices.Set(u.Symbol, price)
	metrics.UpdatesTotal.WithLabelValues(e.metricSymbol(u.Symbol)).Inc()

	now := e.now()
	e.notifier.Notify(notify.Event{
		Kind:      notify.PriceChanged,
		Symbol:    u.Symbol,
		Price:     notify.PriceOf(u.Price),
		Direction: direction(previous, existed, price),
		At:        now,
	})

	if u.Symbol == e.active {
		sample := md.Sample{Timestamp: now, Price: u.Price, MovingAverage: u.Average()}
		e.series.Append(sample)
		if e.loading {
			e.pendingLive = append(e.pendingLive, sample)
		}
		e.notifyBuffer(now)

		if u.IsAnomaly {
			metrics.AnomaliesTotal.WithLabelValues(u.Symbol).Inc()
			e.anomalies.Arm(u.Symbol)
			e.notifier.Notify(notify.Event{Kind: notify.AnomalyFlagged, Symbol: u.Symbol, Price: notify.PriceOf(u.Price), At: now})
		}
	}

	if e.portfolio.Active() {
		e.notifyPortfolio(now)
	}
	return nil
}

// direction compares against the price the update replaced. The first price
// seen for a symbol is flat.
func direction(previous decimal.Decimal, existed bool, price decimal.Decimal) notify.Direction {
	if !existed {
		return notify.Flat
	}
	switch price.Cmp(previous) {
	case 1:
		return notify.Up
	case -1:
		return notify.Down
	}
	return notify.Flat
}

// metricSymbol keeps label cardinality bounded when the feed sends symbols
// outside the tracked set.
func (e *Engine) metricSymbol(symbol string) string {
	if e.tracked[symbol] {
		return symbol
	}
	return "other"
}

func (e *Engine) notifyBuffer(at time.Time) {
	e.notifier.Notify(notify.Event{
		Kind:    notify.BufferChanged,
		Symbol:  e.active,
		Samples: e.series.Samples(),
		At:      at,
	})
}

func (e *Engine) notifyPortfolio(at time.Time) {
	v := e.portfolio.Valuation()
	e.notifier.Notify(notify.Event{Kind: notify.PortfolioChanged, Valuation: &v, At: at})
}

func (e *Engine) Symbols() []string {
	return append([]string(nil), e.symbols...)
}

func (e *Engine) Tracked(symbol string) bool {
	return e.tracked[symbol]
}

func (e *Engine) ActiveSymbol() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) Price(symbol string) (decimal.Decimal, bool) {
	return e.prices.Price(symbol)
}

type Snapshot struct {
	Symbol    string                     `json:"symbol"`
	Symbols   []string                   `json:"symbols"`
	Prices    map[string]decimal.Decimal `json:"prices"`
	Samples   []md.Sample                `json:"samples"`
	Anomalies []string                   `json:"anomalies"`
	Loading   bool                       `json:"loading"`
	Portfolio portfolio.Valuation        `json:"portfolio"`
}

// Snapshot returns a consistent copy of everything the dashboard draws.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Symbol:    e.active,
		Symbols:   e.Symbols(),
		Prices:    e.prices.Snapshot(),
		Samples:   e.series.Samples(),
		Anomalies: e.anomalies.Active(),
		Loading:   e.loading,
		Portfolio: e.portfolio.Valuation(),
	}
}

// Close cancels any history load and pending anomaly timers. Later updates
// are ignored.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	e.anomalies.StopAll()
	return nil
}
