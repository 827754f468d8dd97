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
	"strings"

	"exchange-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns one bucket of a user's wallet
func (s *LedgerService) GetBalance(ctx context.Context, userId, currency string, bucket models.Bucket) (decimal.Decimal, error) {
	if userId == "" || currency == "" {
		return decimal.Zero, fmt.Errorf("user_id and currency are required")
	}

	balance, err := s.ledger.GetBalance(ctx, userId, currency, bucket)
	if err != nil {
		zap.L().Error("Failed to get balance",
			zap.String("user_id", userId),
			zap.String("currency", currency),
			zap.String("bucket", string(bucket)),
			zap.Error(err))
		return decimal.Zero, err
	}

	return balance, nil
}

// GetBalances returns all wallets of a user
func (s *LedgerService) GetBalances(ctx context.Context, userId string) ([]models.WalletBalance, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	balances, err := s.ledger.GetBalances(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to get balances", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balances")
	}
	return balances, nil
}

func (s *LedgerService) GetPortfolio(ctx context.Context, userId string) (*models.Portfolio, error) {
	portfolio, err := s.ledger.GetPortfolio(ctx, userId)
	if err != nil {
		zap.L().Error("Failed to value portfolio", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve portfolio")
	}
	return portfolio, nil
}

// GetTransactionHistory returns paginated transaction history for a user
func (s *LedgerService) GetTransactionHistory(ctx context.Context, userId, txType string, limit, offset int) ([]models.TransactionRecord, error) {
	if userId == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	transactions, err := s.ledger.GetTransactionHistory(ctx, userId, models.TransactionType(strings.ToLower(txType)), limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("user_id", userId),
			zap.String("type", txType),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history")
	}

	return toRecords(transactions), nil
}

func toRecords(transactions []models.Transaction) []models.TransactionRecord {
	result := make([]models.TransactionRecord, len(transactions))
	for i, tx := range transactions {
		result[i] = toRecord(&tx)
	}
	return result
}

func toRecord(tx *models.Transaction) models.TransactionRecord {
	return models.TransactionRecord{
		TransactionId:  tx.TransactionId,
		Type:           string(tx.Type),
		Status:         string(tx.Status),
		Currency:       tx.Currency,
		Amount:         tx.Amount,
		Fee:            tx.Fee,
		FromWallet:     tx.FromWallet,
		ToWallet:       tx.ToWallet,
		Address:        tx.Address,
		BlockchainTxid: tx.BlockchainTxid,
		Chain:          tx.Chain,
		Notes:          tx.Notes,
		CreatedAt:      tx.CreatedAt,
	}
}
