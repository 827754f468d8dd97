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
	"database/sql"
	"errors"
	"fmt"
	"time"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const accountTypeUserWallet = "user_wallet"

// sqlTx implements store.Tx over one *sql.Tx
type sqlTx struct {
	tx     *sql.Tx
	opId   string
	now    func() time.Time
	deltas []models.BalanceDelta
}

var _ store.Tx = (*sqlTx)(nil)

func walletAccountId(userId, currency string, bucket models.Bucket) string {
	return fmt.Sprintf("%s:%s:%s", userId, currency, bucket)
}

func (t *sqlTx) GetWallet(ctx context.Context, userId, currency string) (*models.Wallet, error) {
	return getWallet(ctx, t.tx, userId, currency)
}

// Credit adds amount to a bucket, creating the wallet on first credit
func (t *sqlTx) Credit(ctx context.Context, userId, currency string, amount decimal.Decimal, bucket models.Bucket) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: credit amount must be positive, got %s", store.ErrInvalidInput, amount.String())
	}
	return t.adjust(ctx, userId, currency, bucket, amount)
}

// Debit subtracts amount from a bucket, failing with ErrInsufficientFunds instead of going negative
func (t *sqlTx) Debit(ctx context.Context, userId, currency string, amount decimal.Decimal, bucket models.Bucket) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: debit amount must be positive, got %s", store.ErrInvalidInput, amount.String())
	}
	return t.adjust(ctx, userId, currency, bucket, amount.Neg())
}

// Deltas returns the bucket movements made so far in this unit of work
func (t *sqlTx) Deltas() []models.BalanceDelta {
	out := make([]models.BalanceDelta, len(t.deltas))
	copy(out, t.deltas)
	return out
}

func (t *sqlTx) adjust(ctx context.Context, userId, currency string, bucket models.Bucket, delta decimal.Decimal) (*models.Wallet, error) {
	if _, err := models.ParseBucket(string(bucket)); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	wallet, err := getWallet(ctx, t.tx, userId, currency)
	if errors.Is(err, store.ErrNotFound) {
		if delta.IsNegative() {
			return nil, fmt.Errorf("%w: no %s wallet", store.ErrInsufficientFunds, currency)
		}
		wallet, err = t.createWallet(ctx, userId, currency)
	}
	if err != nil {
		return nil, err
	}

	current := wallet.Balance(bucket)
	newBalance := current.Add(delta)
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("%w: %s %s balance %s is below %s",
			store.ErrInsufficientFunds, bucket, currency, current.String(), delta.Neg().String())
	}
	wallet.SetBalance(bucket, newBalance)

	now := t.now()
	// Update wallet (with optimistic locking)
	result, err := t.tx.ExecContext(ctx, queryUpdateWallet,
		wallet.Spot, wallet.Funding, wallet.Futures, now, wallet.Id, wallet.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}
	if err := checkAffected(result, fmt.Errorf("wallet update failed - %w", store.ErrConcurrentModification)); err != nil {
		return nil, err
	}
	wallet.Version++
	wallet.UpdatedAt = now

	if err := t.addJournalEntry(ctx, userId, currency, bucket, delta); err != nil {
		return nil, fmt.Errorf("failed to add journal entry: %w", err)
	}
	t.deltas = append(t.deltas, models.BalanceDelta{UserId: userId, Currency: currency, Bucket: bucket, Amount: delta})

	zap.L().Debug("Wallet bucket adjusted",
		zap.String("user_id", userId),
		zap.String("currency", currency),
		zap.String("bucket", string(bucket)),
		zap.String("old_balance", current.String()),
		zap.String("new_balance", newBalance.String()))

	return wallet, nil
}

func (t *sqlTx) createWallet(ctx context.Context, userId, currency string) (*models.Wallet, error) {
	now := t.now()
	wallet := &models.Wallet{
		Id:        uuid.New().String(),
		UserId:    userId,
		Currency:  currency,
		Spot:      decimal.Zero,
		Funding:   decimal.Zero,
		Futures:   decimal.Zero,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := t.tx.ExecContext(ctx, queryInsertWallet, wallet.Id, userId, currency, now, now); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	zap.L().Info("Wallet created", zap.String("user_id", userId), zap.String("currency", currency))
	return wallet, nil
}

// addJournalEntry records a bucket movement. A credit increases what the platform owes the user.
func (t *sqlTx) addJournalEntry(ctx context.Context, userId, currency string, bucket models.Bucket, delta decimal.Decimal) error {
	debit, credit := decimal.Zero, decimal.Zero
	if delta.IsNegative() {
		debit = delta.Neg()
	} else {
		credit = delta
	}
	_, err := t.tx.ExecContext(ctx, queryInsertJournalEntry,
		uuid.New().String(), t.opId, accountTypeUserWallet, walletAccountId(userId, currency, bucket),
		debit, credit, t.now())
	return err
}

func getWallet(ctx context.Context, q querier, userId, currency string) (*models.Wallet, error) {
	wallet, err := scanWallet(q.QueryRowContext(ctx, queryGetWallet, userId, currency))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no %s wallet for user %s", store.ErrNotFound, currency, userId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.Id, &w.UserId, &w.Currency, &w.Spot, &w.Funding, &w.Futures,
		&w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
