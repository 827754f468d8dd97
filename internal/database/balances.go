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

package database

import (
	"context"
	"fmt"

	"exchange-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetWallet returns the wallet for user/currency (O(1) lookup)
func (s *Service) GetWallet(ctx context.Context, userId, currency string) (*models.Wallet, error) {
	zap.L().Debug("Getting wallet", zap.String("user_id", userId), zap.String("currency", currency))
	return getWallet(ctx, s.db, userId, currency)
}

// GetWallets returns every wallet a user holds
func (s *Service) GetWallets(ctx context.Context, userId string) ([]models.Wallet, error) {
	zap.L().Debug("Getting all wallets", zap.String("user_id", userId))

	rows, err := s.db.QueryContext(ctx, queryGetWallets, userId)
	if err != nil {
		zap.L().Error("Failed to get wallets", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get wallets: %w", err)
	}
	defer closeRows(rows)

	var wallets []models.Wallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, *wallet)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during wallet row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}

	zap.L().Debug("Retrieved all wallets", zap.String("user_id", userId), zap.Int("count", len(wallets)))
	return wallets, nil
}

// ReconcileWallet verifies that every bucket matches the sum of its journal entries
func (s *Service) ReconcileWallet(ctx context.Context, userId, currency string) error {
	zap.L().Info("Reconciling wallet", zap.String("user_id", userId), zap.String("currency", currency))

	wallet, err := s.GetWallet(ctx, userId, currency)
	if err != nil {
		return fmt.Errorf("failed to get current wallet: %w", err)
	}

	for _, bucket := range models.Buckets {
		calculated, err := s.journalBalance(ctx, walletAccountId(userId, currency, bucket))
		if err != nil {
			return fmt.Errorf("failed to calculate %s balance from journal: %w", bucket, err)
		}

		// Check if balances match (exact decimal comparison)
		current := wallet.Balance(bucket)
		if !current.Equal(calculated) {
			zap.L().Error("Wallet reconciliation failed",
				zap.String("user_id", userId),
				zap.String("currency", currency),
				zap.String("bucket", string(bucket)),
				zap.String("current_balance", current.String()),
				zap.String("calculated_balance", calculated.String()),
				zap.String("difference", current.Sub(calculated).String()))
			return fmt.Errorf("balance mismatch in %s: current=%s, calculated=%s",
				bucket, current.String(), calculated.String())
		}
	}

	zap.L().Info("Wallet reconciliation successful",
		zap.String("user_id", userId),
		zap.String("currency", currency),
		zap.String("total", wallet.Total().String()))
	return nil
}

func (s *Service) journalBalance(ctx context.Context, accountId string) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, queryGetJournalForAccount, accountTypeUserWallet, accountId)
	if err != nil {
		return decimal.Zero, err
	}
	defer closeRows(rows)

	total := decimal.Zero
	for rows.Next() {
		var debit, credit decimal.Decimal
		if err := rows.Scan(&debit, &credit); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(credit).Sub(debit)
	}
	return total, rows.Err()
}
