package md

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
)

type UpdateHandler func(Update)

// StartStream feeds live crypto trades from Alpaca to handler until ctx is done.
// Alpaca trades carry no moving average or anomaly flag.
func StartStream(ctx context.Context, apiKey, apiSecret string, symbols []string, handler UpdateHandler) error {
	client := stream.NewCryptoClient(
		marketdata.US,
		stream.WithCredentials(apiKey, apiSecret),
	)

	// Connect must be called before subscribing in this SDK version
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect crypto stream: %w", err)
	}

	pairs := make([]string, 0, len(symbols))
	for _, s := range symbols {
		pairs = append(pairs, CryptoPair(s))
	}

	if err := client.SubscribeToTrades(func(trade stream.CryptoTrade) {
		handler(Update{
			Symbol: DashSymbol(trade.Symbol),
			Price:  trade.Price,
		})
	}, pairs...); err != nil {
		return fmt.Errorf("subscribe to trades: %w", err)
	}

	slog.Info("subscribed to crypto trades", "symbols", pairs)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-client.Terminated():
		return fmt.Errorf("crypto stream terminated: %w", err)
	}
}

// CryptoPair converts a dashboard symbol ("BTC-USD") to Alpaca's pair format ("BTC/USD").
func CryptoPair(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "-", "/")
}

// DashSymbol is the inverse of CryptoPair.
func DashSymbol(pair string) string {
	return strings.ReplaceAll(strings.ToUpper(pair), "/", "-")
}
