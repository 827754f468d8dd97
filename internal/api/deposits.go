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

package api

import (
	"context"
	"fmt"
	"time"

	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/models"

	"go.uber.org/zap"
)

// SubmitDeposit records a user-declared deposit for admin review
func (s *LedgerService) SubmitDeposit(ctx context.Context, req ledger.DepositRequest) (*models.OperationResult, error) {
	start := time.Now()
	txn, err := s.ledger.SubmitDeposit(ctx, req)
	if err != nil {
		return failure("submit_deposit", start, err,
			zap.String("user_id", req.UserId),
			zap.String("currency", req.Currency),
			zap.String("amount", req.Amount.String()),
			zap.String("blockchain_txid", req.BlockchainTxid)), nil
	}

	return success("submit_deposit", start, &models.OperationResult{
		Message:   "Deposit submitted and awaiting review",
		Reference: txn.TransactionId,
		Currency:  txn.Currency,
		Amount:    txn.Amount,
		Data:      toRecord(txn),
	}), nil
}

func (s *LedgerService) ApproveDeposit(ctx context.Context, adminId, transactionId, notes string) (*models.OperationResult, error) {
	start := time.Now()
	txn, err := s.ledger.ApproveDeposit(ctx, adminId, transactionId, notes)
	if err != nil {
		return failure("approve_deposit", start, err,
			zap.String("admin_id", adminId),
			zap.String("transaction_id", transactionId)), nil
	}

	return success("approve_deposit", start, &models.OperationResult{
		Message:    fmt.Sprintf("Deposit of %s %s approved", txn.Amount.String(), txn.Currency),
		Reference:  txn.TransactionId,
		Currency:   txn.Currency,
		Amount:     txn.Amount,
		NewBalance: s.balanceAfter(ctx, txn.UserId, txn.Currency, models.BucketSpot),
	}), nil
}

func (s *LedgerService) RejectDeposit(ctx context.Context, adminId, transactionId, notes string) (*models.OperationResult, error) {
	start := time.Now()
	txn, err := s.ledger.RejectDeposit(ctx, adminId, transactionId, notes)
	if err != nil {
		return failure("reject_deposit", start, err,
			zap.String("admin_id", adminId),
			zap.String("transaction_id", transactionId)), nil
	}

	return success("reject_deposit", start, &models.OperationResult{
		Message:   "Deposit rejected",
		Reference: txn.TransactionId,
		Currency:  txn.Currency,
		Amount:    txn.Amount,
	}), nil
}

// GetDepositAddress returns (creating on first use) the user's address for a currency and chain
func (s *LedgerService) GetDepositAddress(ctx context.Context, userId, currency, chain string) (*models.OperationResult, error) {
	start := time.Now()
	addr, err := s.ledger.GetDepositAddress(ctx, userId, currency, chain)
	if err != nil {
		return failure("deposit_address", start, err,
			zap.String("user_id", userId),
			zap.String("currency", currency),
			zap.String("chain", chain)), nil
	}

	return success("deposit_address", start, &models.OperationResult{
		Message:  addr.Address,
		Currency: addr.Currency,
		Data:     addr,
	}), nil
}
