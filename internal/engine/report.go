package engine

import (
	"context"
	"log/slog"
	"time"
)

// ReportLoop logs the account valuation every interval while the demo
// account is active.
func (e *Engine) ReportLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reportOnce()
		}
	}
}

func (e *Engine) reportOnce() {
	v := e.Valuation()
	if !v.Active {
		return
	}
	attrs := []any{"equity", v.TotalDisplay, "cash", v.CashDisplay, "positions", len(v.Positions)}
	for _, p := range v.Positions {
		attrs = append(attrs, p.Symbol, p.Units.String())
	}
	slog.Info("account valuation", attrs...)
}
