package engine

import (
	"sort"
	"sync"
	"time"

	"pricedash/internal/notify"
)

type anomalyTimer struct {
	timer *time.Timer
	gen   uint64
}

// anomalyTimers keeps one auto-clear timer per symbol. Arming an armed symbol
// replaces its timer, so back to back anomalies extend the badge instead of
// stacking clears.
type anomalyTimers struct {
	mu      sync.Mutex
	window  time.Duration
	timers  map[string]*anomalyTimer
	gen     uint64
	expired func(symbol string)
}

func newAnomalyTimers(window time.Duration, expired func(symbol string)) *anomalyTimers {
	return &anomalyTimers{
		window:  window,
		timers:  make(map[string]*anomalyTimer),
		expired: expired,
	}
}

func (a *anomalyTimers) Arm(symbol string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.timers[symbol]; ok {
		t.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.timers[symbol] = &anomalyTimer{
		gen:   gen,
		timer: time.AfterFunc(a.window, func() { a.fire(symbol, gen) }),
	}
}

// fire runs on the timer goroutine. A timer that lost the race with a newer
// Arm or a Cancel finds a different generation and does nothing.
func (a *anomalyTimers) fire(symbol string, gen uint64) {
	a.mu.Lock()
	t, ok := a.timers[symbol]
	if !ok || t.gen != gen {
		a.mu.Unlock()
		return
	}
	delete(a.timers, symbol)
	a.mu.Unlock()
	a.expired(symbol)
}

// Cancel drops the timer for symbol and reports whether one was armed.
func (a *anomalyTimers) Cancel(symbol string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.timers[symbol]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(a.timers, symbol)
	return true
}

func (a *anomalyTimers) Armed(symbol string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.timers[symbol]
	return ok
}

func (a *anomalyTimers) Active() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.timers))
	for s := range a.timers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (a *anomalyTimers) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for s, t := range a.timers {
		t.timer.Stop()
		delete(a.timers, s)
	}
}

// anomalyExpired is the timer callback. It re-checks under the engine lock
// because a new anomaly may have been armed after the timer fired.
func (e *Engine) anomalyExpired(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.anomalies.Armed(symbol) {
		return
	}
	e.notifier.Notify(notify.Event{Kind: notify.AnomalyCleared, Symbol: symbol, At: e.now()})
}
