package main

import (
	"context"
	"os/signal"
	"syscall"

	"exchange-ledger-go/internal/common"
	"exchange-ledger-go/internal/config"
	"exchange-ledger-go/internal/server"
	"exchange-ledger-go/internal/sweep"

	"go.uber.org/zap"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.HTTP.JWTSecret == "" {
		zap.L().Fatal("JWT_SECRET is required to run the API server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if cfg.Sweep.Enabled {
		scheduler, err := sweep.NewScheduler(services.Ledger, cfg.Sweep)
		if err != nil {
			zap.L().Fatal("Failed to create sweep scheduler", zap.Error(err))
		}
		if err := scheduler.Start(ctx); err != nil {
			zap.L().Fatal("Failed to start sweep scheduler", zap.Error(err))
		}
		defer func() {
			if err := scheduler.Stop(); err != nil {
				zap.L().Warn("Sweep scheduler did not stop cleanly", zap.Error(err))
			}
		}()
	} else {
		zap.L().Info("Order sweep disabled")
	}

	srv := server.New(services.Api, cfg.HTTP)
	if err := srv.ListenAndServe(ctx); err != nil {
		zap.L().Error("HTTP server failed", zap.Error(err))
		return
	}
	zap.L().Info("Server stopped")
}
