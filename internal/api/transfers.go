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
	"time"

	"exchange-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Transfer moves funds between two buckets of the same wallet
func (s *LedgerService) Transfer(ctx context.Context, userId, currency string, amount decimal.Decimal, from, to models.Bucket) (*models.OperationResult, error) {
	start := time.Now()
	txn, err := s.ledger.Transfer(ctx, userId, currency, amount, from, to)
	if err != nil {
		return failure("transfer", start, err,
			zap.String("user_id", userId),
			zap.String("currency", currency),
			zap.String("amount", amount.String())), nil
	}

	return success("transfer", start, &models.OperationResult{
		Message:    fmt.Sprintf("Transferred %s %s from %s to %s", amount.String(), txn.Currency, from, to),
		Reference:  txn.TransactionId,
		Currency:   txn.Currency,
		Amount:     amount,
		NewBalance: s.balanceAfter(ctx, userId, txn.Currency, models.Bucket(txn.FromWallet)),
		Data:       toRecord(txn),
	}), nil
}

// Convert exchanges one currency for another at the oracle rate
func (s *LedgerService) Convert(ctx context.Context, userId, from, to string, amount decimal.Decimal, bucket models.Bucket) (*models.OperationResult, error) {
	start := time.Now()
	result, err := s.ledger.Convert(ctx, userId, from, to, amount, bucket)
	if err != nil {
		return failure("convert", start, err,
			zap.String("user_id", userId),
			zap.String("from", from),
			zap.String("to", to),
			zap.String("amount", amount.String())), nil
	}

	target := strings.ToUpper(strings.TrimSpace(to))
	return success("convert", start, &models.OperationResult{
		Message:    result.Transaction.Notes,
		Reference:  result.Transaction.TransactionId,
		Currency:   target,
		Amount:     result.Converted,
		NewBalance: s.balanceAfter(ctx, userId, target, models.Bucket(result.Transaction.ToWallet)),
		Data: map[string]any{
			"rate":      result.Rate,
			"converted": result.Converted,
		},
	}), nil
}

// Pay sends spot funds to another user by their unique id
func (s *LedgerService) Pay(ctx context.Context, senderId, recipientUniqueId, currency string, amount decimal.Decimal) (*models.OperationResult, error) {
	start := time.Now()
	result, err := s.ledger.Pay(ctx, senderId, recipientUniqueId, currency, amount)
	if err != nil {
		return failure("pay", start, err,
			zap.String("sender_id", senderId),
			zap.String("recipient", recipientUniqueId),
			zap.String("amount", amount.String())), nil
	}

	return success("pay", start, &models.OperationResult{
		Message:    fmt.Sprintf("Sent %s %s to %s", amount.String(), result.Sent.Currency, result.Recipient.Username),
		Reference:  result.Sent.TransactionId,
		Currency:   result.Sent.Currency,
		Amount:     amount,
		NewBalance: s.balanceAfter(ctx, senderId, result.Sent.Currency, models.BucketSpot),
	}), nil
}
