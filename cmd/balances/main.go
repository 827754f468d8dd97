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
	"fmt"

	"exchange-ledger-go/internal/common"
	"exchange-ledger-go/internal/config"
	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers        int
	totalWallets      int
	usersWithBalances int
	driftedWallets    int
}

func printWallet(w models.Wallet, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	fmt.Printf("%s %-6s spot: %18s  funding: %18s  futures: %18s (v%d, updated: %s)\n",
		symbol,
		w.Currency,
		w.Spot.String(),
		w.Funding.String(),
		w.Futures.String(),
		w.Version,
		w.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printUserHeader(user common.UserInfo, walletCount int) {
	fmt.Printf("\n┌─ User: %s (%s) %s\n", user.Username, user.Email, user.UniqueId)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Currencies: %d\n", walletCount)
	common.PrintBoxSeparator(98)
}

// processUser prints the user's wallets and, with reconcile set, checks each one against the
// transaction log. It returns the number of wallets and how many failed reconciliation.
func processUser(ctx context.Context, user common.UserInfo, ledgerStore store.LedgerStore, reconcile bool) (int, int, error) {
	wallets, err := ledgerStore.GetWallets(ctx, user.Id)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get wallets: %w", err)
	}
	if len(wallets) == 0 {
		return 0, 0, nil
	}

	printUserHeader(user, len(wallets))
	drifted := 0
	for i, w := range wallets {
		isLast := i == len(wallets)-1
		printWallet(w, isLast)
		if !reconcile {
			continue
		}
		if err := ledgerStore.ReconcileWallet(ctx, user.Id, w.Currency); err != nil {
			drifted++
			fmt.Printf("%s   ✗ reconciliation failed: %v\n", common.BoxDetailPrefix(isLast), err)
		}
	}
	return len(wallets), drifted, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Check every wallet against the transaction log")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only: no oracle or custody needed
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.InitializeUsers(ctx, dbService, common.UserFilter{Email: *emailFlag}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("USER BALANCE REPORT", common.WideWidth)

	stats := balanceStats{}
	for _, user := range users {
		stats.totalUsers++
		count, drifted, err := processUser(ctx, user, dbService, *reconcileFlag)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("username", user.Username),
				zap.Error(err))
			continue
		}
		if count > 0 {
			stats.usersWithBalances++
			stats.totalWallets += count
		}
		stats.driftedWallets += drifted
	}

	summary := fmt.Sprintf("SUMMARY: %d users with balances (%d wallets across %d users queried)",
		stats.usersWithBalances, stats.totalWallets, stats.totalUsers)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d wallets failed reconciliation", stats.driftedWallets)
	}
	common.PrintFooter(summary, common.WideWidth)

	logger.Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_balances", stats.usersWithBalances),
		zap.Int("total_wallets", stats.totalWallets),
		zap.Int("drifted_wallets", stats.driftedWallets))
}
