package engine

import (
	"context"
	"fmt"
	"log/slog"

	"pricedash/internal/md"
	"pricedash/internal/metrics"
	"pricedash/internal/notify"
)

// HistorySource returns recent samples for a symbol, oldest first.
type HistorySource interface {
	History(ctx context.Context, symbol string) ([]md.Sample, error)
}

// SwitchSymbol makes symbol the displayed one, clears the chart and loads its
// history. Switching to the displayed symbol does nothing. A history failure
// is returned wrapped in ErrHistoryFetchFailed after the switch itself has
// taken effect.
func (e *Engine) SwitchSymbol(ctx context.Context, symbol string) error {
	e.mu.Lock()
	if !e.tracked[symbol] {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if symbol == e.active || e.closed {
		e.mu.Unlock()
		return nil
	}

	previous := e.active
	e.active = symbol
	e.series.Reset()
	now := e.now()
	if e.anomalies.Cancel(previous) {
		e.notifier.Notify(notify.Event{Kind: notify.AnomalyCleared, Symbol: previous, At: now})
	}
	loadCtx, seq := e.beginLoadLocked(ctx)
	e.notifyBuffer(now)
	e.mu.Unlock()

	slog.Info("symbol switched", "from", previous, "to", symbol)
	return e.load(loadCtx, symbol, seq)
}

// Refresh reloads history for the displayed symbol without clearing the
// chart first.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	symbol := e.active
	loadCtx, seq := e.beginLoadLocked(ctx)
	e.mu.Unlock()

	return e.load(loadCtx, symbol, seq)
}

// beginLoadLocked supersedes any in-flight load. Only the load holding the
// latest sequence number may touch the series.
func (e *Engine) beginLoadLocked(ctx context.Context) (context.Context, uint64) {
	if e.cancelLoad != nil {
		e.cancelLoad()
	}
	loadCtx, cancel := context.WithTimeout(ctx, e.historyTimeout)
	e.loadSeq++
	e.cancelLoad = cancel
	e.loading = true
	e.pendingLive = nil
	return loadCtx, e.loadSeq
}

func (e *Engine) load(ctx context.Context, symbol string, seq uint64) error {
	samples, err := e.history.History(ctx, symbol)

	e.mu.Lock()
	defer e.mu.Unlock()
	if seq != e.loadSeq || e.closed {
		metrics.HistoryLoads.WithLabelValues("stale").Inc()
		slog.Debug("discarding stale history response", "symbol", symbol, "active", e.active)
		return nil
	}

	e.cancelLoad()
	e.cancelLoad = nil
	e.loading = false
	live := e.pendingLive
	e.pendingLive = nil
	now := e.now()

	if err != nil {
		metrics.HistoryLoads.WithLabelValues("failed").Inc()
		slog.Error("history load failed", "symbol", symbol, "error", err)
		e.notifier.Notify(notify.Event{Kind: notify.HistoryFailed, Symbol: symbol, Error: err.Error(), At: now})
		return fmt.Errorf("%w: %s: %v", ErrHistoryFetchFailed, symbol, err)
	}

	e.series.ReplaceWith(mergeLive(samples, live))
	metrics.HistoryLoads.WithLabelValues("ok").Inc()
	slog.Info("history loaded", "symbol", symbol, "samples", len(samples), "live", len(live))
	e.notifyBuffer(now)
	return nil
}

// mergeLive appends the live samples that arrived while history was in
// flight and are not older than the newest historical sample.
func mergeLive(history, live []md.Sample) []md.Sample {
	merged := make([]md.Sample, 0, len(history)+len(live))
	merged = append(merged, history...)
	if len(history) == 0 {
		return append(merged, live...)
	}
	newest := history[0].Timestamp
	for _, s := range history[1:] {
		if s.Timestamp.After(newest) {
			newest = s.Timestamp
		}
	}
	for _, s := range live {
		if !s.Timestamp.Before(newest) {
			merged = append(merged, s)
		}
	}
	return merged
}
