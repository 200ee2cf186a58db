package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"RegimeFlow/internal/di"
	"RegimeFlow/internal/domain/models"
	"RegimeFlow/pkg/config"
	"RegimeFlow/pkg/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	forceRefresh := flag.Bool("force-refresh", false, "ignore cached prices and reload")
	offline := flag.Bool("offline", false, "skip the download loader")
	rows := flag.Int("rows", 0, "keep only the first N dates (0 keeps all)")
	equityOut := flag.String("equity-out", "", "write the equity curve CSV to this path")
	serve := flag.Bool("serve", false, "serve the report API after the run")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *forceRefresh {
		cfg.Data.ForceRefresh = true
	}
	if *offline {
		cfg.Data.PreferDownload = false
	}
	if *rows > 0 {
		cfg.Data.MaxRows = *rows
	}
	if *equityOut != "" {
		cfg.Backtest.EquityCurvePath = *equityOut
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, app, *serve || cfg.Server.Enabled)
	stop()
	if err := app.Close(); err != nil {
		code = 1
	}
	os.Exit(code)
}

func run(ctx context.Context, app *server.App, serve bool) int {
	res, err := app.RunOnce(ctx)
	if err != nil {
		log.Printf("backtest failed: %v", err)
		return 1
	}

	s := res.Report.Summary
	fmt.Printf("CAGR:   %s\n", pct(s.CAGR))
	fmt.Printf("Sharpe: %s\n", ratio(s.Sharpe))
	fmt.Printf("MaxDD:  %s\n", pct(s.MaxDrawdown))

	if !serve {
		return 0
	}
	if err := app.Serve(ctx); err != nil {
		log.Printf("server error: %v", err)
		return 1
	}
	return 0
}

func pct(s models.Stat) string {
	if !s.Defined() {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", 100*float64(s))
}

func ratio(s models.Stat) string {
	if !s.Defined() {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", float64(s))
}
