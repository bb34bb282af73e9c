package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/markremover/futures-oracle/internal/account"
	"github.com/markremover/futures-oracle/internal/app"
	"github.com/markremover/futures-oracle/internal/domain"
	"github.com/markremover/futures-oracle/internal/engine"
	"github.com/markremover/futures-oracle/internal/execution"
	"github.com/markremover/futures-oracle/internal/feed"
	"github.com/markremover/futures-oracle/internal/infra"
	"github.com/markremover/futures-oracle/internal/infra/coinbase"
	"github.com/markremover/futures-oracle/internal/ledger"
	"github.com/markremover/futures-oracle/internal/notify"
	"github.com/markremover/futures-oracle/internal/risk"
	"github.com/markremover/futures-oracle/internal/server"
	"github.com/markremover/futures-oracle/internal/sizing"
	"github.com/markremover/futures-oracle/internal/trend"
)

func main() {
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()
	cfg := bootstrap.Config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := domain.Mode(strings.ToUpper(cfg.Trading.Mode))
	creds := coinbase.Credentials{
		KeyName:    cfg.API.Coinbase.KeyName,
		PrivatePEM: cfg.API.Coinbase.PrivateKeyPEM,
	}

	// Price state and risk gate, reseeded from the journal so a restart does
	// not reset daily limits or cooldowns.
	priceCache := feed.NewCache(cfg.Window())
	gate := risk.NewGate(risk.Config{
		MaxOpenPositions: cfg.Limits.MaxOpenPositions,
		MaxTradesPerDay:  cfg.Limits.MaxTradesPerDay,
		LossCooldown:     cfg.LossCooldown(),
	}, bootstrap.Store)
	if records, err := bootstrap.Store.LoadSince(ctx, time.Now().Add(-24*time.Hour)); err != nil {
		slog.Warn("Trade window reload failed, starting empty", slog.Any("error", err))
	} else {
		gate.Seed(records)
		slog.Info("Trade window reloaded", slog.Int("records", len(records)))
	}

	venue, err := execution.New(mode, priceCache.Latest, execution.LiveCredentials{
		RestURL:    cfg.API.Coinbase.RestURL,
		KeyName:    creds.KeyName,
		PrivatePEM: creds.PrivatePEM,
	})
	if err != nil {
		slog.Error("❌ Execution venue init failed", slog.Any("error", err))
		os.Exit(1)
	}

	webhook := notify.NewWebhook("")
	if cfg.API.Webhook.Enabled {
		webhook = notify.NewWebhook(cfg.API.Webhook.BaseURL)
	}

	book := ledger.New(ledger.Config{
		Mode:              mode,
		InitialBalanceUSD: cfg.Trading.InitialBalanceUSD,
		ModelTakerFees:    cfg.Trading.ModelTakerFees,
		TakerFeeRate:      cfg.Trading.TakerFeeRate,
	}, venue, gate, webhook)

	sizer := sizing.NewSizer(sizing.Config{
		RiskUSD:        cfg.Trading.RiskUSD,
		StopATRMult:    cfg.Trading.StopATRMult,
		TargetATRMult:  cfg.Trading.TargetATRMult,
		MinNotionalUSD: cfg.Trading.MinNotionalUSD,
		MarginHeadroom: cfg.Trading.MarginHeadroom,
		PairOverrides:  cfg.Trading.PairOverrides,
	})

	candles := coinbase.NewCandleClient("")
	trendFilter := trend.NewFilter(trend.Config{SMAPeriod: cfg.Signals.SMAPeriod}, candles)

	var accountSource account.Source
	if mode == domain.ModeLive {
		accountSource = coinbase.NewAccountSource(cfg.API.Coinbase.RestURL, creds, cfg.Trading.DefaultLeverage)
	} else {
		accountSource = account.Static{
			BalanceUSD: cfg.Trading.InitialBalanceUSD,
			Leverage:   cfg.Trading.DefaultLeverage,
		}
	}
	accountCache := account.NewCache(accountSource, 30*time.Second)

	var sentiment engine.Sentiment
	if cfg.API.MarketContext.Enabled {
		mc := infra.NewMarketContext(cfg.API.MarketContext.URL, cfg.API.MarketContext.PollIntervalSec)
		if err := mc.Start(ctx); err != nil {
			slog.Warn("Market context start failed", slog.Any("error", err))
		}
		defer mc.Stop()
		sentiment = mc
	}
	var advisor engine.Advisor
	if cfg.API.Advisor.Enabled && cfg.API.Advisor.URL != "" {
		advisor = infra.NewAdvisorClient(cfg.API.Advisor.URL)
	}

	monitor := engine.New(engine.Config{
		VelocityThresholdPct: cfg.Signals.VelocityThresholdPct,
		HighVolThresholdPct:  cfg.Signals.HighVolThresholdPct,
		HighVolPairs:         cfg.Trading.HighVolPairs,
		SentimentRelaxPct:    cfg.Signals.SentimentRelaxPct,
		MinThresholdPct:      cfg.Signals.MinThresholdPct,
		AlertCooldown:        cfg.AlertCooldown(),
		SweepInterval:        time.Duration(cfg.Signals.SweepIntervalSec) * time.Second,
		ATRGranularitySec:    cfg.Signals.ATRGranularitySec,
		ATRPeriod:            cfg.Signals.ATRPeriod,
		AdvisorMinConfidence: cfg.API.Advisor.MinConfidence,
	}, priceCache, book, gate, sizer, trendFilter, candles, accountCache, sentiment, advisor, webhook)
	go monitor.Run(ctx)
	slog.Info("✅ Signal monitor started", slog.Any("pairs", cfg.Trading.Pairs))

	ticker := coinbase.NewTickerWorker(cfg.API.Coinbase.WSURL, cfg.Trading.Pairs, monitor.Send)
	if err := ticker.Connect(ctx); err != nil {
		slog.Error("Failed to start ticker worker", slog.Any("error", err))
	}
	defer ticker.Disconnect()

	ops := server.New(cfg.Server.Addr, priceCache, book, bootstrap.Store, monitor.Send)
	go func() {
		if err := ops.Start(); err != nil {
			slog.Error("HTTP server failed", slog.Any("error", err))
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ops.Shutdown(sctx)
	}()

	webhook.Publish(domain.Notification{
		Type: domain.NotifySystem,
		Message: fmt.Sprintf("%s %s started in %s mode (%d pairs)",
			cfg.App.Name, cfg.App.Version, mode, len(cfg.Trading.Pairs)),
		Timestamp: time.Now().UnixMilli(),
	})

	slog.Info("✨ Futures Oracle fully operational. Press Ctrl+C to exit.")
	<-ctx.Done()
	slog.Info("👋 Shutting down gracefully...")
}
