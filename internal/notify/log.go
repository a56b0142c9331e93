package notify

import "log/slog"

// Log writes events to a slog logger. Price and buffer changes are frequent
// and go to DEBUG.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ev Event) {
	switch ev.Kind {
	case PriceChanged:
		l.logger.Debug("price changed", "symbol", ev.Symbol, "price", ev.PriceValue(), "direction", ev.Direction)
	case BufferChanged:
		l.logger.Debug("buffer changed", "symbol", ev.Symbol, "samples", len(ev.Samples))
	case AnomalyFlagged:
		l.logger.Info("anomaly flagged", "symbol", ev.Symbol, "price", ev.PriceValue())
	case AnomalyCleared:
		l.logger.Info("anomaly cleared", "symbol", ev.Symbol)
	case PortfolioChanged:
		if ev.Valuation != nil {
			l.logger.Debug("portfolio changed", "active", ev.Valuation.Active, "equity", ev.Valuation.TotalDisplay)
		}
	case HistoryFailed:
		l.logger.Warn("history unavailable, keeping previous chart", "symbol", ev.Symbol, "error", ev.Error)
	default:
		l.logger.Debug("event", "kind", ev.Kind, "symbol", ev.Symbol)
	}
}
