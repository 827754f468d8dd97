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
	"testing"
	"time"

	"exchange-ledger-go/internal/api"
	"exchange-ledger-go/internal/database"
	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/oracle"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

type fakeCustody struct {
	mu      sync.Mutex
	wallets []models.CustodyWallet
	txs     map[string][]models.PrimeTransaction
}

func (f *fakeCustody) ListWallets(ctx context.Context, symbols []string) ([]models.CustodyWallet, error) {
	return f.wallets, nil
}

func (f *fakeCustody) ListWalletTransactions(ctx context.Context, walletId string, since time.Time) ([]models.PrimeTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PrimeTransaction(nil), f.txs[walletId]...), nil
}

func (f *fakeCustody) add(walletId string, tx models.PrimeTransaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[walletId] = append(f.txs[walletId], tx)
}

func setupWatcher(t *testing.T) (*DepositWatcher, *fakeCustody, *ledger.Service, func()) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	l := ledger.NewService(db, oracle.NewStatic(nil, "USDT"), ledger.DefaultConfig())
	custody := &fakeCustody{
		wallets: []models.CustodyWallet{{Id: "wallet-usdt", Symbol: "USDT", Type: "TRADING"}},
		txs:     make(map[string][]models.PrimeTransaction),
	}
	w := NewDepositWatcher(Config{
		Source: custody,
		Ledger: api.NewLedgerService(l),
		Store:  db,
	})
	if err := w.LoadMonitoredWallets(context.Background()); err != nil {
		t.Fatalf("LoadMonitoredWallets failed: %v", err)
	}
	return w, custody, l, func() { db.Close() }
}

func TestPollOnce_SubmitsDepositsToKnownAddresses(t *testing.T) {
	w, custody, l, cleanup := setupWatcher(t)
	defer cleanup()
	ctx := context.Background()

	u, err := l.RegisterUser(ctx, ledger.RegisterRequest{Username: "alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}
	addr, err := l.GetDepositAddress(ctx, u.Id, "USDT", "TRC20")
	if err != nil {
		t.Fatalf("GetDepositAddress failed: %v", err)
	}

	deposit := func(id, status, amount, to string) models.PrimeTransaction {
		return models.PrimeTransaction{
			Id: id, WalletId: "wallet-usdt", Type: "DEPOSIT", Status: status,
			Symbol: "USDT", Amount: amount, TransactionId: "chain-" + id, Address: to,
		}
	}
	custody.add("wallet-usdt", deposit("p1", "TRANSACTION_IMPORTED", "150", addr.Address))
	custody.add("wallet-usdt", deposit("p2", "TRANSACTION_IMPORTED", "75", "TUnknownAddress"))
	custody.add("wallet-usdt", deposit("p3", "TRANSACTION_IMPORT_PENDING", "60", addr.Address))
	custody.add("wallet-usdt", deposit("p4", "TRANSACTION_IMPORTED", "5", addr.Address))
	custody.add("wallet-usdt", models.PrimeTransaction{Id: "p5", Type: "REWARD", Status: "TRANSACTION_DONE", Amount: "1"})

	if got := w.PollOnce(ctx); got != 4 {
		t.Errorf("Expected 4 handled transactions, got %d", got)
	}
	if got := w.PollOnce(ctx); got != 0 {
		t.Errorf("Expected nothing new on the second poll, got %d", got)
	}

	pending, err := l.ListPendingTransactions(ctx, models.TransactionDeposit)
	if err != nil {
		t.Fatalf("ListPendingTransactions failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending deposit, got %d", len(pending))
	}
	if pending[0].BlockchainTxid != "chain-p1" || !pending[0].Amount.Equal(decimal.NewFromInt(150)) || pending[0].UserId != u.Id {
		t.Errorf("Unexpected pending deposit %+v", pending[0])
	}

	// p3 finishes importing
	custody.add("wallet-usdt", deposit("p3", "TRANSACTION_IMPORTED", "60", addr.Address))
	if got := w.PollOnce(ctx); got != 1 {
		t.Errorf("Expected the imported deposit to be handled, got %d", got)
	}

	// a restarted watcher replays the window without duplicating deposits
	restarted := NewDepositWatcher(Config{Source: custody, Ledger: api.NewLedgerService(l), Store: l.Store()})
	if err := restarted.LoadMonitoredWallets(ctx); err != nil {
		t.Fatalf("LoadMonitoredWallets failed: %v", err)
	}
	restarted.PollOnce(ctx)

	pending, err = l.ListPendingTransactions(ctx, models.TransactionDeposit)
	if err != nil {
		t.Fatalf("ListPendingTransactions failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("Expected 2 pending deposits after replay, got %d", len(pending))
	}
}

func TestPollOnce_TracksPayoutStatus(t *testing.T) {
	w, custody, l, cleanup := setupWatcher(t)
	defer cleanup()
	ctx := context.Background()

	u, err := l.RegisterUser(ctx, ledger.RegisterRequest{Username: "alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("RegisterUser failed: %v", err)
	}

	insert := func(status models.TransactionStatus, chainStatus string) *models.Transaction {
		txn := &models.Transaction{
			UserId: u.Id, Type: models.TransactionWithdrawal, Status: status, ChainStatus: chainStatus,
			Currency: "USDT", Amount: decimal.NewFromInt(20), Fee: decimal.RequireFromString("1.4"),
			FromWallet: string(models.BucketSpot), ToWallet: models.WalletExternal, Chain: "TRC20",
		}
		err := l.Store().WithinTx(ctx, func(tx store.Tx) error { return tx.InsertTransaction(ctx, txn) })
		if err != nil {
			t.Fatalf("InsertTransaction failed: %v", err)
		}
		return txn
	}
	done := insert(models.StatusCompleted, models.ChainSubmitted)
	failed := insert(models.StatusCompleted, models.ChainSubmitted)
	waiting := insert(models.StatusCompleted, models.ChainSubmitted)
	inFlight := insert(models.StatusPending, models.ChainSubmitting)

	payout := func(id, key, status string) models.PrimeTransaction {
		return models.PrimeTransaction{Id: id, Type: "WITHDRAWAL", Status: status, Amount: "-20", IdempotencyKey: key}
	}
	custody.add("wallet-usdt", payout("w1", done.TransactionId, "TRANSACTION_DONE"))
	custody.add("wallet-usdt", payout("w2", failed.TransactionId, "TRANSACTION_FAILED"))
	custody.add("wallet-usdt", payout("w3", waiting.TransactionId, "TRANSACTION_BROADCASTING"))
	custody.add("wallet-usdt", payout("w4", "not-ours", "TRANSACTION_DONE"))
	custody.add("wallet-usdt", payout("w5", inFlight.TransactionId, "TRANSACTION_DONE"))

	if got := w.PollOnce(ctx); got != 3 {
		t.Errorf("Expected 3 handled payouts, got %d", got)
	}

	for _, tc := range []struct {
		id   string
		want string
	}{
		{done.TransactionId, ChainStatusConfirmed},
		{failed.TransactionId, ChainStatusFailed},
		{waiting.TransactionId, models.ChainSubmitted},
		{inFlight.TransactionId, models.ChainSubmitting},
	} {
		txn, err := l.Store().GetTransaction(ctx, tc.id)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if txn.ChainStatus != tc.want {
			t.Errorf("Expected chain status %q, got %q", tc.want, txn.ChainStatus)
		}
	}
}

func TestCleanupProcessedTransactions(t *testing.T) {
	w := NewDepositWatcher(Config{LookbackWindow: time.Hour})
	w.processedTxIds["old"] = time.Now().Add(-2 * time.Hour)
	w.processedTxIds["new"] = time.Now()

	w.cleanupProcessedTransactions()

	if w.isTransactionProcessed("old") {
		t.Error("Expected old id to be forgotten")
	}
	if !w.isTransactionProcessed("new") {
		t.Error("Expected recent id to be kept")
	}
}
