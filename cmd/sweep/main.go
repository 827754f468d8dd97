package main

import (
	"context"
	"flag"

	"exchange-ledger-go/internal/common"
	"exchange-ledger-go/internal/config"
	"exchange-ledger-go/internal/sweep"

	"go.uber.org/zap"
)

// Runs one order sweep and one signal expiry pass, for use from cron or by hand
func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ordersOnly := flag.Bool("orders-only", false, "Skip the signal expiry pass")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	scheduler, err := sweep.NewScheduler(services.Ledger, cfg.Sweep)
	if err != nil {
		zap.L().Fatal("Failed to create sweep scheduler", zap.Error(err))
	}

	report, err := scheduler.RunOrders(ctx)
	if err != nil {
		zap.L().Fatal("Order sweep failed", zap.Error(err))
	}

	common.PrintHeader("ORDER SWEEP", common.DefaultWidth)
	common.PrintField("Checked", report.Checked)
	common.PrintField("Filled", report.Filled)
	common.PrintField("Skipped", report.Skipped)
	common.PrintField("Failed", report.Failed)

	if !*ordersOnly {
		expired, err := scheduler.RunExpiry(ctx)
		if err != nil {
			zap.L().Fatal("Signal expiry failed", zap.Error(err))
		}
		common.PrintField("Expired signals", expired)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
