// cmd/pusher pushes a sample signal and reads the table back. Useful for
// checking credentials against a fresh project.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"signalgateway/internal/config"
	"signalgateway/internal/logger"
	"signalgateway/internal/signal"
	"signalgateway/internal/signal/repository"
	"signalgateway/internal/signal/service"
)

func sampleSignal() signal.Signal {
	return signal.Signal{
		Symbol:      signal.Ptr("TSLA"),
		Timeframe:   signal.Ptr("1d"),
		Style:       signal.Ptr(signal.StyleDay),
		Rating:      signal.Ptr(signal.RatingStrongBuy),
		Score:       signal.Ptr(285),
		Entry:       signal.Ptr(312.45),
		TP1:         signal.Ptr(321.95),
		TP2:         signal.Ptr(327.97),
		TP3:         signal.Ptr(337.45),
		StopLoss:    signal.Ptr(305.60),
		RR:          signal.Ptr(2.8),
		Resistance:  signal.Ptr(320.50),
		Support:     signal.Ptr(310.20),
		Setup:       signal.Ptr("ORB5, VWAP, FVG"),
		Wave:        signal.Ptr("Wave 3"),
		Confluence:  signal.Ptr(94),
		Description: signal.Ptr("LEGENDARY signal based on 94% confluence. Breakout confirmed with high volume."),
	}
}

func main() {
	configPath := flag.String("config", os.Getenv("SIGNALGW_CONFIG"), "path to YAML config file")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	repo, closer, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		log.Fatal("store open failed", zap.Error(err))
	}
	defer closer.Close()

	gw := service.NewGateway(repo, log)

	if _, err := gw.PushSignal(ctx, sampleSignal()); err != nil {
		log.Error("sample push failed", zap.Error(err))
	}

	latest, err := gw.GetLatest(ctx, 10)
	if err != nil {
		log.Error("fetch latest failed", zap.Error(err))
	}
	fmt.Printf("\nLatest signals: %d\n", len(latest))
	for _, rec := range latest {
		fmt.Printf("  - %s (%s) @ $%s | %s\n", str(rec.Symbol), str(rec.Style), num(rec.Entry), str(rec.Rating))
	}

	strongBuys, err := gw.GetFiltered(ctx, service.Filter{
		Style:    signal.Ptr(signal.StyleDay),
		Rating:   signal.Ptr(signal.RatingStrongBuy),
		MinScore: 250,
	})
	if err != nil {
		log.Error("filter failed", zap.Error(err))
	}
	fmt.Printf("\nStrong buy signals (day): %d\n", len(strongBuys))
}

func str[T ~string](p *T) string {
	if p == nil {
		return "-"
	}
	return string(*p)
}

func num(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}
