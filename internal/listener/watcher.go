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

package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"exchange-ledger-go/internal/models"

	"go.uber.org/zap"
)

// Start loads the wallets, catches up on the lookback window and begins polling
func (d *DepositWatcher) Start(ctx context.Context) error {
	zap.L().Info("Starting deposit watcher")

	if err := d.LoadMonitoredWallets(ctx); err != nil {
		return fmt.Errorf("failed to load monitored wallets: %w", err)
	}
	if len(d.monitoredWallets) == 0 {
		return fmt.Errorf("no wallets to monitor")
	}

	if err := d.performStartupRecovery(ctx); err != nil {
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	go d.pollLoop(ctx)
	go d.cleanupLoop(ctx)

	zap.L().Info("Deposit watcher started",
		zap.Duration("polling_interval", d.pollingInterval),
		zap.Duration("lookback_window", d.lookbackWindow))
	return nil
}

// Stop waits for the running poll to finish
func (d *DepositWatcher) Stop() {
	d.stopOnce.Do(func() {
		zap.L().Info("Stopping deposit watcher")
		close(d.stopChan)
		<-d.doneChan
		zap.L().Info("Deposit watcher stopped")
	})
}

func (d *DepositWatcher) pollLoop(ctx context.Context) {
	defer close(d.doneChan)

	ticker := time.NewTicker(d.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.PollOnce(ctx)
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// PollOnce polls every monitored wallet concurrently and returns the number of
// transactions handled
func (d *DepositWatcher) PollOnce(ctx context.Context) int {
	since := time.Now().UTC().Add(-d.lookbackWindow)

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for _, wallet := range d.monitoredWallets {
		wg.Add(1)
		go func(w models.WalletInfo) {
			defer wg.Done()

			n, err := d.pollWallet(ctx, w, since)
			if err != nil {
				zap.L().Error("Failed to poll wallet",
					zap.String("wallet_id", w.Id),
					zap.String("currency", w.Currency),
					zap.Error(err))
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}(wallet)
	}
	wg.Wait()
	return total
}

func (d *DepositWatcher) pollWallet(ctx context.Context, wallet models.WalletInfo, since time.Time) (int, error) {
	transactions, err := d.source.ListWalletTransactions(ctx, wallet.Id, since)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	handled := 0
	for _, tx := range transactions {
		if d.isTransactionProcessed(tx.Id) {
			continue
		}
		if err := d.processTransaction(ctx, tx, wallet); err != nil {
			zap.L().Error("Failed to process transaction",
				zap.String("transaction_id", tx.Id),
				zap.String("wallet_id", wallet.Id),
				zap.Error(err))
			continue
		}
		if d.isTransactionProcessed(tx.Id) {
			handled++
		}
	}
	return handled, nil
}

func (d *DepositWatcher) processTransaction(ctx context.Context, tx models.PrimeTransaction, wallet models.WalletInfo) error {
	switch tx.Type {
	case "DEPOSIT":
		return d.processDeposit(ctx, tx, wallet)
	case "WITHDRAWAL":
		return d.processWithdrawal(ctx, tx)
	default:
		zap.L().Debug("Ignoring custody transaction",
			zap.String("transaction_id", tx.Id),
			zap.String("type", tx.Type))
		d.markTransactionProcessed(tx.Id)
		return nil
	}
}

// performStartupRecovery replays the lookback window so deposits that landed while the
// watcher was down are still submitted
func (d *DepositWatcher) performStartupRecovery(ctx context.Context) error {
	since := time.Now().UTC().Add(-d.lookbackWindow)

	var failedWallets []string
	recovered := 0
	for _, wallet := range d.monitoredWallets {
		n, err := d.pollWallet(ctx, wallet, since)
		if err != nil {
			zap.L().Error("Failed to recover transactions for wallet",
				zap.String("wallet_id", wallet.Id),
				zap.String("currency", wallet.Currency),
				zap.Error(err))
			failedWallets = append(failedWallets, fmt.Sprintf("%s(%s)", wallet.Currency, wallet.Id))
			continue
		}
		recovered += n
	}

	if len(failedWallets) > len(d.monitoredWallets)/2 {
		return fmt.Errorf("recovery failed for majority of wallets (%d/%d): %v",
			len(failedWallets), len(d.monitoredWallets), failedWallets)
	}
	zap.L().Info("Startup recovery completed",
		zap.Int("transactions", recovered),
		zap.Int("wallets", len(d.monitoredWallets)),
		zap.Int("failed_wallets", len(failedWallets)))
	return nil
}
