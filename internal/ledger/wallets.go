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

package ledger

import (
	"context"
	"errors"
	"fmt"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns one bucket of a wallet; a wallet never credited reads as zero
func (s *Service) GetBalance(ctx context.Context, userId, currency string, bucket models.Bucket) (decimal.Decimal, error) {
	currency, err := s.currency(currency)
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := models.ParseBucket(string(bucket)); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	wallet, err := s.store.GetWallet(ctx, userId, currency)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance(bucket), nil
}

// GetBalances returns every wallet the user holds
func (s *Service) GetBalances(ctx context.Context, userId string) ([]models.WalletBalance, error) {
	wallets, err := s.store.GetWallets(ctx, userId)
	if err != nil {
		return nil, err
	}
	balances := make([]models.WalletBalance, 0, len(wallets))
	for _, w := range wallets {
		balances = append(balances, models.WalletBalance{
			Currency: w.Currency,
			Spot:     w.Spot,
			Funding:  w.Funding,
			Futures:  w.Futures,
			Total:    w.Total(),
		})
	}
	return balances, nil
}

// Transfer moves funds between two buckets of the same wallet
func (s *Service) Transfer(ctx context.Context, userId, currency string, amount decimal.Decimal, from, to models.Bucket) (*models.Transaction, error) {
	currency, err := s.currency(currency)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("amount", amount); err != nil {
		return nil, err
	}
	if from, err = models.ParseBucket(string(from)); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	if to, err = models.ParseBucket(string(to)); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	if from == to {
		return nil, fmt.Errorf("%w: source and destination wallets must differ", store.ErrInvalidInput)
	}

	zap.L().Info("Transferring between wallets",
		zap.String("user_id", userId),
		zap.String("currency", currency),
		zap.String("amount", amount.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	var txn *models.Transaction
	var deltas []models.BalanceDelta
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Debit(ctx, userId, currency, amount, from); err != nil {
			return err
		}
		if _, err := tx.Credit(ctx, userId, currency, amount, to); err != nil {
			return err
		}
		txn = &models.Transaction{
			UserId:     userId,
			Type:       models.TransactionTransfer,
			Status:     models.StatusCompleted,
			Currency:   currency,
			Amount:     amount,
			Fee:        decimal.Zero,
			FromWallet: string(from),
			ToWallet:   string(to),
			Notes:      fmt.Sprintf("Transfer from %s to %s", from, to),
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventTransfer, txn.TransactionId, userId, deltas, nil)
	return txn, nil
}
