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

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

// InsertTransaction records an audit row. Missing ids and timestamps are filled in.
func (t *sqlTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.Id == "" {
		txn.Id = uuid.New().String()
	}
	if txn.TransactionId == "" {
		txn.TransactionId = uuid.New().String()
	}
	now := t.now()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now

	_, err := t.tx.ExecContext(ctx, queryInsertTransaction,
		txn.Id, txn.TransactionId, txn.UserId, txn.Type, txn.Status, txn.Currency, txn.Amount, txn.Fee,
		txn.FromWallet, txn.ToWallet, txn.Address, txn.BlockchainTxid, txn.Chain, txn.ChainStatus,
		txn.Notes, txn.AdminNotes, txn.CreatedAt, txn.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			zap.L().Warn("Duplicate transaction detected",
				zap.String("transaction_id", txn.TransactionId),
				zap.String("blockchain_txid", txn.BlockchainTxid))
			return fmt.Errorf("%w: blockchain txid %s already recorded", store.ErrDuplicateTransaction, txn.BlockchainTxid)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	zap.L().Debug("Transaction recorded",
		zap.String("transaction_id", txn.TransactionId),
		zap.String("user_id", txn.UserId),
		zap.String("type", string(txn.Type)),
		zap.String("status", string(txn.Status)),
		zap.String("currency", txn.Currency),
		zap.String("amount", txn.Amount.String()))
	return nil
}

func (t *sqlTx) GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error) {
	return getTransaction(ctx, t.tx, queryGetTransaction, transactionId)
}

// ReviewTransaction moves a pending deposit or withdrawal to its final status exactly once
func (t *sqlTx) ReviewTransaction(ctx context.Context, params store.ReviewParams) (*models.Transaction, error) {
	txn, err := getTransaction(ctx, t.tx, queryGetTransaction, params.TransactionId)
	if err != nil {
		return nil, err
	}
	if params.Type != "" && txn.Type != params.Type {
		return nil, fmt.Errorf("%w: transaction %s is a %s, not a %s", store.ErrInvalidState, params.TransactionId, txn.Type, params.Type)
	}
	if txn.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: %s %s is already %s", store.ErrInvalidState, txn.Type, txn.TransactionId, txn.Status)
	}
	if params.NewStatus == models.StatusFailed && txn.ChainStatus == models.ChainSubmitting {
		return nil, fmt.Errorf("%w: %s %s has a payout in flight", store.ErrInvalidState, txn.Type, txn.TransactionId)
	}

	now := t.now()
	result, err := t.tx.ExecContext(ctx, queryReviewTransaction,
		params.NewStatus, params.BlockchainTxid, params.BlockchainTxid, params.AdminNotes, now, params.TransactionId,
		params.NewStatus)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: blockchain txid %s already recorded", store.ErrDuplicateTransaction, params.BlockchainTxid)
		}
		return nil, fmt.Errorf("failed to review transaction: %w", err)
	}
	if err := checkAffected(result, fmt.Errorf("%w: %s %s is no longer pending", store.ErrInvalidState, txn.Type, txn.TransactionId)); err != nil {
		return nil, err
	}

	txn.Status = params.NewStatus
	if params.BlockchainTxid != "" {
		txn.BlockchainTxid = params.BlockchainTxid
	}
	txn.AdminNotes = params.AdminNotes
	txn.UpdatedAt = now

	zap.L().Info("Transaction reviewed",
		zap.String("transaction_id", txn.TransactionId),
		zap.String("type", string(txn.Type)),
		zap.String("status", string(txn.Status)))
	return txn, nil
}

// ClaimPayout marks a pending withdrawal as having a payout in flight. Only one claim can be held.
func (t *sqlTx) ClaimPayout(ctx context.Context, transactionId string) error {
	result, err := t.tx.ExecContext(ctx, queryClaimPayout, t.now(), transactionId)
	if err != nil {
		return fmt.Errorf("failed to claim payout: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: withdrawal %s is not pending or already has a payout", store.ErrInvalidState, transactionId))
}

// ReleasePayout drops the claim after a payout that never left
func (t *sqlTx) ReleasePayout(ctx context.Context, transactionId string) error {
	result, err := t.tx.ExecContext(ctx, queryReleasePayout, t.now(), transactionId)
	if err != nil {
		return fmt.Errorf("failed to release payout: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: withdrawal %s holds no payout claim", store.ErrInvalidState, transactionId))
}

func (t *sqlTx) SetChainStatus(ctx context.Context, transactionId, status string) error {
	result, err := t.tx.ExecContext(ctx, querySetChainStatus, status, t.now(), transactionId)
	if err != nil {
		return fmt.Errorf("failed to set chain status: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: transaction %s", store.ErrNotFound, transactionId))
}

func (t *sqlTx) SumCompletedDeposits(ctx context.Context, userId, currency string) (decimal.Decimal, error) {
	rows, err := t.tx.QueryContext(ctx, querySumCompletedDeposits, userId, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum deposits: %w", err)
	}
	defer closeRows(rows)

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan deposit amount: %w", err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

func (s *Service) GetTransaction(ctx context.Context, transactionId string) (*models.Transaction, error) {
	return getTransaction(ctx, s.db, queryGetTransaction, transactionId)
}

func (s *Service) GetTransactionByBlockchainTxid(ctx context.Context, txid string) (*models.Transaction, error) {
	if txid == "" {
		return nil, fmt.Errorf("%w: empty blockchain txid", store.ErrInvalidInput)
	}
	return getTransaction(ctx, s.db, queryGetTransactionByBlockchainTxid, txid)
}

// GetTransactionHistory returns a user's transactions, newest first
func (s *Service) GetTransactionHistory(ctx context.Context, filter store.TransactionFilter) ([]models.Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	zap.L().Debug("Getting transaction history",
		zap.String("user_id", filter.UserId),
		zap.String("currency", filter.Currency),
		zap.String("type", string(filter.Type)),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory,
		filter.UserId, filter.Currency, filter.Currency, filter.Type, filter.Type, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history", zap.String("user_id", filter.UserId), zap.Error(err))
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer closeRows(rows)

	return collectTransactions(rows)
}

func (s *Service) ListPendingTransactions(ctx context.Context, txType models.TransactionType) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, queryListPendingTransactions, txType, txType)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	defer closeRows(rows)

	return collectTransactions(rows)
}

// SetChainStatus records the custody provider's view of a withdrawal
func (s *Service) SetChainStatus(ctx context.Context, transactionId, status string) error {
	result, err := s.db.ExecContext(ctx, querySetChainStatus, status, s.now(), transactionId)
	if err != nil {
		return fmt.Errorf("failed to set chain status: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: transaction %s", store.ErrNotFound, transactionId))
}

func getTransaction(ctx context.Context, q querier, query, key string) (*models.Transaction, error) {
	txn, err := scanTransaction(q.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", store.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	var transactions []models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return transactions, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.Id, &t.TransactionId, &t.UserId, &t.Type, &t.Status, &t.Currency, &t.Amount, &t.Fee,
		&t.FromWallet, &t.ToWallet, &t.Address, &t.BlockchainTxid, &t.Chain, &t.ChainStatus,
		&t.Notes, &t.AdminNotes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
