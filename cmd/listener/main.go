/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exchange-ledger-go/internal/common"
	"exchange-ledger-go/internal/config"
	"exchange-ledger-go/internal/listener"

	"go.uber.org/zap"
)

func main() {
	allWallets := flag.Bool("all", false, "Monitor every custody trading wallet instead of the listed currencies")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	// The watcher needs custody access regardless of PRIME_ENABLED
	cfg.Prime.Enabled = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting deposit watcher")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	var currencies []string
	if !*allWallets {
		currencies = common.CurrencySymbols(services.Currencies)
		zap.L().Info("Monitoring listed currencies", zap.Strings("currencies", currencies))
	} else {
		zap.L().Info("Monitoring ALL custody wallets")
	}

	watcher := listener.NewDepositWatcher(listener.Config{
		Source:          services.PrimeService,
		Ledger:          services.Api,
		Store:           services.DbService,
		Currencies:      currencies,
		LookbackWindow:  cfg.Listener.LookbackWindow,
		PollingInterval: cfg.Listener.PollingInterval,
		CleanupInterval: cfg.Listener.CleanupInterval,
	})
	if err := watcher.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start deposit watcher", zap.Error(err))
	}

	zap.L().Info("Deposit watcher running")
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping deposit watcher...")
	cancel()

	done := make(chan struct{})
	go func() {
		watcher.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Deposit watcher stopped gracefully")
	case <-time.After(30 * time.Second):
		zap.L().Warn("Forced shutdown after timeout")
	}
}
