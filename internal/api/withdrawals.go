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

// RequestWithdrawal reserves amount plus fee and queues the withdrawal for review
func (s *LedgerService) RequestWithdrawal(ctx context.Context, req ledger.WithdrawalRequest) (*models.OperationResult, error) {
	start := time.Now()
	txn, err := s.ledger.RequestWithdrawal(ctx, req)
	if err != nil {
		return failure("request_withdrawal", start, err,
			zap.String("user_id", req.UserId),
			zap.String("currency", req.Currency),
			zap.String("amount", req.Amount.String()),
			zap.String("chain", req.Chain)), nil
	}

	return success("request_withdrawal", start, &models.OperationResult{
		Message: fmt.Sprintf("Withdrawal of %s %s requested, fee %s %s",
			txn.Amount.String(), txn.Currency, txn.Fee.String(), txn.Currency),
		Reference:  txn.TransactionId,
		Currency:   txn.Currency,
		Amount:     txn.Amount,
		NewBalance: s.balanceAfter(ctx, req.UserId, txn.Currency, models.BucketSpot),
		Data:       toRecord(txn),
	}), nil
}

func (s *LedgerService) ApproveWithdrawal(ctx context.Context, adminId, transactionId, blockchainTxid, notes string) (*models.OperationResult, error) {
	start := time.Now()
	txn, err := s.ledger.ApproveWithdrawal(ctx, adminId, transactionId, blockchainTxid, notes)
	if err != nil {
		return failure("approve_withdrawal", start, err,
			zap.String("admin_id", adminId),
			zap.String("transaction_id", transactionId)), nil
	}

	return success("approve_withdrawal", start, &models.OperationResult{
		Message:   fmt.Sprintf("Withdrawal of %s %s approved", txn.Amount.String(), txn.Currency),
		Reference: txn.TransactionId,
		Currency:  txn.Currency,
		Amount:    txn.Amount,
		Data:      toRecord(txn),
	}), nil
}

// RejectWithdrawal fails the withdrawal and returns amount plus fee to the user
func (s *LedgerService) RejectWithdrawal(ctx context.Context, adminId, transactionId, notes string) (*models.OperationResult, error) {
	start := time.Now()
	txn, err := s.ledger.RejectWithdrawal(ctx, adminId, transactionId, notes)
	if err != nil {
		return failure("reject_withdrawal", start, err,
			zap.String("admin_id", adminId),
			zap.String("transaction_id", transactionId)), nil
	}

	refund := txn.Amount.Add(txn.Fee)
	return success("reject_withdrawal", start, &models.OperationResult{
		Message:    fmt.Sprintf("Withdrawal rejected, %s %s returned", refund.String(), txn.Currency),
		Reference:  txn.TransactionId,
		Currency:   txn.Currency,
		Amount:     refund,
		NewBalance: s.balanceAfter(ctx, txn.UserId, txn.Currency, models.BucketSpot),
	}), nil
}

// ListPending returns the review queue for one transaction type
func (s *LedgerService) ListPending(ctx context.Context, txType models.TransactionType) ([]models.TransactionRecord, error) {
	pending, err := s.ledger.ListPendingTransactions(ctx, txType)
	if err != nil {
		zap.L().Error("Failed to list pending transactions", zap.String("type", string(txType)), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending transactions")
	}
	return toRecords(pending), nil
}
