package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricedash/internal/api"
	"pricedash/internal/config"
	"pricedash/internal/engine"
	"pricedash/internal/gateway"
	"pricedash/internal/logger"
	"pricedash/internal/md"
	"pricedash/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger.New(cfg.LogLevel, cfg.LogFormat))

	if err := run(cfg); err != nil {
		slog.Error("dashboard stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("dashboard shutdown complete")
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := generateRunID()
	var journal *engine.Journal
	if cfg.JournalPath != "" {
		j, err := engine.NewJournal(cfg.JournalPath, runID)
		if err != nil {
			return err
		}
		journal = j
		defer func() {
			if err := journal.Close(); err != nil {
				slog.Error("failed to close trade journal", "error", err)
			}
		}()
	}

	hub := notify.NewHub()
	defer hub.Close()
	notifiers := notify.Multi{notify.NewLog(slog.Default()), hub}
	if cfg.NATSURL != "" {
		publisher, err := notify.ConnectNATS(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				slog.Warn("failed to drain nats connection", "error", err)
			}
		}()
		notifiers = append(notifiers, publisher)
	}

	gw := gateway.New(cfg.GatewayURL)
	var history engine.HistorySource = gw
	if cfg.Source == config.SourceAlpaca {
		history = md.NewBarHistory(cfg.APIKey, cfg.APISecret, cfg.BufferSize)
	}

	eng, err := engine.New(engine.Options{
		Symbols:        cfg.Symbols,
		Symbol:         cfg.Symbol,
		BufferSize:     cfg.BufferSize,
		AnomalyWindow:  cfg.AnomalyWindow,
		HistoryTimeout: cfg.HistoryTimeout,
	}, history, notifiers, journal)
	if err != nil {
		return err
	}
	defer eng.Close()

	sentimentCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	sentiment := gateway.NewSentimentClient(cfg.SentimentURL).FetchOrNeutral(sentimentCtx)
	cancel()
	slog.Info("market sentiment", "value", sentiment.Value, "classification", sentiment.Classification)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(api.NewHandler(eng, gw, sentiment), hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	go func() {
		if err := eng.Refresh(ctx); err != nil {
			slog.Warn("initial history load failed", "symbol", cfg.Symbol, "error", err)
		}
	}()
	go eng.ReportLoop(ctx, cfg.ReportInterval)
	go runFeed(ctx, cfg, eng)

	slog.Info("dashboard running", "run_id", runID, "source", cfg.Source, "symbols", cfg.Symbols, "symbol", cfg.Symbol)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func runFeed(ctx context.Context, cfg config.Config, eng *engine.Engine) {
	var err error
	switch cfg.Source {
	case config.SourceAlpaca:
		enricher := md.NewEnricher(md.DefaultAverageWindow, md.DefaultAnomalyBand)
		err = md.StartStream(ctx, cfg.APIKey, cfg.APISecret, cfg.Symbols, func(u md.Update) {
			_ = eng.OnUpdate(enricher.Enrich(u))
		})
	default:
		var wsURL string
		wsURL, err = md.FeedURL(cfg.GatewayURL, cfg.FeedPath)
		if err != nil {
			break
		}
		feed := md.NewGatewayFeed(wsURL, cfg.Topic)
		err = feed.Run(ctx, func(body []byte) {
			_ = eng.OnMessage(body)
		})
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("market data stream stopped", "source", cfg.Source, "error", err)
	}
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return timestamp
	}
	return timestamp + "-" + hex.EncodeToString(randomBytes)
}
