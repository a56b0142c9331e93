package md

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// BarHistory serves chart history from Alpaca one-minute crypto bars. The bar
// VWAP stands in for the moving average.
type BarHistory struct {
	client *marketdata.Client
	limit  int
	now    func() time.Time
}

func NewBarHistory(apiKey, apiSecret string, limit int) *BarHistory {
	if limit <= 0 {
		limit = DefaultCapacity
	}
	return &BarHistory{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		limit: limit,
		now:   time.Now,
	}
}

// History returns samples oldest first.
func (b *BarHistory) History(ctx context.Context, symbol string) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := b.now().UTC()
	bars, err := b.client.GetCryptoBars(CryptoPair(symbol), marketdata.GetCryptoBarsRequest{
		TimeFrame:  marketdata.OneMin,
		Start:      end.Add(-time.Duration(b.limit) * time.Minute),
		End:        end,
		TotalLimit: b.limit,
	})
	if err != nil {
		slog.Error("fetch crypto bars failed", "symbol", symbol, "error", err)
		return nil, fmt.Errorf("get crypto bars: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slog.Info("crypto bars fetched", "symbol", symbol, "count", len(bars))
	return barsToSamples(bars), nil
}

func barsToSamples(bars []marketdata.CryptoBar) []Sample {
	samples := make([]Sample, 0, len(bars))
	for _, bar := range bars {
		avg := bar.VWAP
		if avg == 0 {
			avg = bar.Close
		}
		samples = append(samples, Sample{
			Timestamp:     bar.Timestamp,
			Price:         bar.Close,
			MovingAverage: avg,
		})
	}
	return samples
}
