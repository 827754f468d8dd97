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
	"errors"
	"fmt"

	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/metrics"
	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// processDeposit submits an imported custody deposit as a pending deposit for the user who
// owns the receiving address. Transfers that are still importing are left for a later poll.
func (d *DepositWatcher) processDeposit(ctx context.Context, tx models.PrimeTransaction, wallet models.WalletInfo) error {
	if tx.Status != "TRANSACTION_IMPORTED" && tx.Status != "TRANSACTION_DONE" {
		zap.L().Debug("Skipping deposit with unhandled status",
			zap.String("transaction_id", tx.Id),
			zap.String("status", tx.Status))
		return nil
	}

	amount, err := decimal.NewFromString(tx.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsPositive() {
		d.markTransactionProcessed(tx.Id)
		return nil
	}

	user, addr, err := d.resolveOwner(ctx, tx)
	if err != nil {
		return err
	}
	if user == nil {
		zap.L().Warn("Deposit to unrecognized address - marking as processed to avoid repeated errors",
			zap.String("transaction_id", tx.Id),
			zap.String("address", tx.Address),
			zap.String("account_identifier", tx.AccountIdentifier),
			zap.String("amount", amount.String()))
		metrics.DepositsDetected.WithLabelValues("unknown_address").Inc()
		d.markTransactionProcessed(tx.Id)
		return nil
	}

	txid := tx.TransactionId
	if txid == "" {
		txid = tx.Id
	}
	if _, err := d.store.GetTransactionByBlockchainTxid(ctx, txid); err == nil {
		metrics.DepositsDetected.WithLabelValues("duplicate").Inc()
		d.markTransactionProcessed(tx.Id)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check for recorded deposit: %w", err)
	}

	if wallet.Currency != "" && wallet.Currency != addr.Currency {
		zap.L().Debug("Custody symbol differs from address currency",
			zap.String("wallet_currency", wallet.Currency),
			zap.String("address_currency", addr.Currency))
	}

	ctx = models.WithOrigin(ctx, &models.Origin{RequestId: tx.Id, ActorId: user.Id, Source: "listener"})
	result, err := d.ledger.SubmitDeposit(ctx, ledger.DepositRequest{
		UserId:         user.Id,
		Currency:       addr.Currency,
		Amount:         amount,
		Chain:          addr.Chain,
		BlockchainTxid: txid,
		Address:        addr.Address,
		Notes:          fmt.Sprintf("Custody deposit %s", tx.Id),
	})
	if err != nil {
		return fmt.Errorf("failed to submit deposit: %w", err)
	}

	switch {
	case result.Success:
		metrics.DepositsDetected.WithLabelValues("submitted").Inc()
		zap.L().Info("Deposit submitted for review",
			zap.String("transaction_id", result.Reference),
			zap.String("custody_id", tx.Id),
			zap.String("user_id", user.Id),
			zap.String("currency", addr.Currency),
			zap.String("amount", amount.String()))
	case result.Code == models.CodeDuplicate:
		metrics.DepositsDetected.WithLabelValues("duplicate").Inc()
	case result.Code == models.CodeInvalidInput:
		metrics.DepositsDetected.WithLabelValues("rejected").Inc()
		zap.L().Warn("Custody deposit not accepted",
			zap.String("custody_id", tx.Id),
			zap.String("user_id", user.Id),
			zap.String("reason", result.Message))
	default:
		return fmt.Errorf("deposit submission failed: %s", result.Message)
	}

	d.markTransactionProcessed(tx.Id)
	return nil
}

// resolveOwner finds the user behind the receiving address. Networks with memos identify
// the user by account identifier, so that is tried first.
func (d *DepositWatcher) resolveOwner(ctx context.Context, tx models.PrimeTransaction) (*models.User, *models.Address, error) {
	for _, candidate := range []string{tx.AccountIdentifier, tx.Address} {
		if candidate == "" {
			continue
		}
		user, addr, err := d.store.FindUserByAddress(ctx, candidate)
		if err != nil {
			return nil, nil, fmt.Errorf("address lookup failed: %w", err)
		}
		if user != nil {
			return user, addr, nil
		}
	}
	return nil, nil, nil
}
