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

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"go.uber.org/zap"
)

const (
	ChainStatusConfirmed = models.ChainConfirmed
	ChainStatusFailed    = models.ChainFailed
)

var terminalFailures = map[string]bool{
	"TRANSACTION_CANCELLED": true,
	"TRANSACTION_REJECTED":  true,
	"TRANSACTION_FAILED":    true,
	"TRANSACTION_EXPIRED":   true,
}

// processWithdrawal records the on-chain outcome of a payout. Payouts carry the ledger
// transaction id as their idempotency key.
func (d *DepositWatcher) processWithdrawal(ctx context.Context, tx models.PrimeTransaction) error {
	if tx.IdempotencyKey == "" {
		d.markTransactionProcessed(tx.Id)
		return nil
	}

	var status string
	switch {
	case tx.Status == "TRANSACTION_DONE":
		status = ChainStatusConfirmed
	case terminalFailures[tx.Status]:
		status = ChainStatusFailed
	default:
		zap.L().Debug("Skipping non-completed withdrawal - waiting for completion",
			zap.String("transaction_id", tx.Id),
			zap.String("status", tx.Status))
		return nil
	}

	txn, err := d.store.GetTransaction(ctx, tx.IdempotencyKey)
	if errors.Is(err, store.ErrNotFound) {
		zap.L().Debug("Withdrawal was not initiated by the ledger",
			zap.String("transaction_id", tx.Id),
			zap.String("idempotency_key", tx.IdempotencyKey))
		d.markTransactionProcessed(tx.Id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load withdrawal: %w", err)
	}
	if txn.Type != models.TransactionWithdrawal || txn.ChainStatus == status {
		d.markTransactionProcessed(tx.Id)
		return nil
	}
	if txn.Status == models.StatusPending {
		// approval has not committed yet; the payout claim must stay in place until it does
		zap.L().Debug("Payout seen before its withdrawal completed - retrying next poll",
			zap.String("transaction_id", txn.TransactionId),
			zap.String("chain_status", txn.ChainStatus))
		return nil
	}

	if err := d.store.SetChainStatus(ctx, txn.TransactionId, status); err != nil {
		return fmt.Errorf("failed to record chain status: %w", err)
	}

	if status == ChainStatusFailed {
		zap.L().Error("Payout failed on chain - withdrawal needs manual review",
			zap.String("transaction_id", txn.TransactionId),
			zap.String("user_id", txn.UserId),
			zap.String("custody_status", tx.Status),
			zap.String("amount", txn.Amount.String()),
			zap.String("currency", txn.Currency))
	} else {
		zap.L().Info("Payout confirmed on chain",
			zap.String("transaction_id", txn.TransactionId),
			zap.String("custody_id", tx.Id))
	}

	d.markTransactionProcessed(tx.Id)
	return nil
}
