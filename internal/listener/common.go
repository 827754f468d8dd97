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
	"sync"
	"time"

	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"go.uber.org/zap"
)

// CustodySource lists custody wallets and their on-chain activity
type CustodySource interface {
	ListWallets(ctx context.Context, symbols []string) ([]models.CustodyWallet, error)
	ListWalletTransactions(ctx context.Context, walletId string, since time.Time) ([]models.PrimeTransaction, error)
}

// DepositSubmitter records a detected deposit for admin review
type DepositSubmitter interface {
	SubmitDeposit(ctx context.Context, req ledger.DepositRequest) (*models.OperationResult, error)
}

// Config contains configuration for DepositWatcher
type Config struct {
	Source          CustodySource
	Ledger          DepositSubmitter
	Store           store.LedgerStore
	Currencies      []string // symbols to watch; empty watches every trading wallet
	LookbackWindow  time.Duration
	PollingInterval time.Duration
	CleanupInterval time.Duration
}

// DepositWatcher polls custody wallets, turns incoming transfers to user deposit addresses
// into pending deposits and tracks the on-chain state of paid out withdrawals
type DepositWatcher struct {
	source     CustodySource
	ledger     DepositSubmitter
	store      store.LedgerStore
	currencies []string

	processedTxIds  map[string]time.Time
	mutex           sync.RWMutex
	lookbackWindow  time.Duration
	pollingInterval time.Duration
	cleanupInterval time.Duration

	monitoredWallets []models.WalletInfo

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func NewDepositWatcher(cfg Config) *DepositWatcher {
	if cfg.LookbackWindow <= 0 {
		cfg.LookbackWindow = 6 * time.Hour
	}
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = 30 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 15 * time.Minute
	}
	return &DepositWatcher{
		source:          cfg.Source,
		ledger:          cfg.Ledger,
		store:           cfg.Store,
		currencies:      cfg.Currencies,
		processedTxIds:  make(map[string]time.Time),
		lookbackWindow:  cfg.LookbackWindow,
		pollingInterval: cfg.PollingInterval,
		cleanupInterval: cfg.CleanupInterval,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// LoadMonitoredWallets discovers the custody wallets to poll
func (d *DepositWatcher) LoadMonitoredWallets(ctx context.Context) error {
	wallets, err := d.source.ListWallets(ctx, d.currencies)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	d.monitoredWallets = make([]models.WalletInfo, 0, len(wallets))
	for _, w := range wallets {
		if seen[w.Id] {
			continue
		}
		seen[w.Id] = true
		d.monitoredWallets = append(d.monitoredWallets, models.WalletInfo{Id: w.Id, Currency: w.Symbol})
	}

	zap.L().Info("Loaded monitored wallets",
		zap.Int("count", len(d.monitoredWallets)),
		zap.Strings("currencies", d.currencies))
	return nil
}

func (d *DepositWatcher) isTransactionProcessed(txId string) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	_, exists := d.processedTxIds[txId]
	return exists
}

func (d *DepositWatcher) markTransactionProcessed(txId string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.processedTxIds[txId] = time.Now()
}

func (d *DepositWatcher) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.cleanupProcessedTransactions()
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanupProcessedTransactions forgets ids older than the lookback window. They can no
// longer be returned by a poll, and the store rejects a repeated txid anyway.
func (d *DepositWatcher) cleanupProcessedTransactions() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	cutoff := time.Now().UTC().Add(-d.lookbackWindow)
	cleaned := 0

	for txId, processedTime := range d.processedTxIds {
		if processedTime.Before(cutoff) {
			delete(d.processedTxIds, txId)
			cleaned++
		}
	}

	if cleaned > 0 {
		zap.L().Debug("Cleaned up old processed transactions",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(d.processedTxIds)))
	}
}
