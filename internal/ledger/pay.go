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
	"fmt"
	"strings"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PayResult struct {
	Sent      *models.Transaction
	Received  *models.Transaction
	Recipient *models.User
}

// Pay moves spot funds from the sender to the user identified by recipientUniqueId and
// records one row for each side.
func (s *Service) Pay(ctx context.Context, senderId, recipientUniqueId, currency string, amount decimal.Decimal) (*PayResult, error) {
	currency, err := s.currency(currency)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("amount", amount); err != nil {
		return nil, err
	}
	recipientUniqueId = strings.ToUpper(strings.TrimSpace(recipientUniqueId))
	if recipientUniqueId == "" {
		return nil, fmt.Errorf("%w: recipient id is required", store.ErrInvalidInput)
	}

	result := &PayResult{}
	var deltas []models.BalanceDelta
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		recipient, err := tx.GetUserByUniqueId(ctx, recipientUniqueId)
		if err != nil {
			return err
		}
		if recipient.Id == senderId {
			return fmt.Errorf("%w: cannot pay yourself", store.ErrInvalidInput)
		}
		sender, err := tx.GetUserById(ctx, senderId)
		if err != nil {
			return err
		}

		if _, err := tx.Debit(ctx, sender.Id, currency, amount, models.BucketSpot); err != nil {
			return err
		}
		if _, err := tx.Credit(ctx, recipient.Id, currency, amount, models.BucketSpot); err != nil {
			return err
		}

		sent := &models.Transaction{
			UserId:     sender.Id,
			Type:       models.TransactionPay,
			Status:     models.StatusCompleted,
			Currency:   currency,
			Amount:     amount.Neg(),
			Fee:        decimal.Zero,
			FromWallet: string(models.BucketSpot),
			ToWallet:   models.WalletExternal,
			Address:    recipient.UniqueId,
			Notes:      fmt.Sprintf("Payment to %s (%s)", recipient.Username, recipient.UniqueId),
		}
		if err := tx.InsertTransaction(ctx, sent); err != nil {
			return err
		}
		received := &models.Transaction{
			UserId:     recipient.Id,
			Type:       models.TransactionPay,
			Status:     models.StatusCompleted,
			Currency:   currency,
			Amount:     amount,
			Fee:        decimal.Zero,
			FromWallet: models.WalletExternal,
			ToWallet:   string(models.BucketSpot),
			Address:    sender.UniqueId,
			Notes:      fmt.Sprintf("Payment from %s (%s)", sender.Username, sender.UniqueId),
		}
		if err := tx.InsertTransaction(ctx, received); err != nil {
			return err
		}

		result.Sent, result.Received, result.Recipient = sent, received, recipient
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Payment completed",
		zap.String("sender_id", senderId),
		zap.String("recipient_id", result.Recipient.Id),
		zap.String("currency", currency),
		zap.String("amount", amount.String()))

	s.publish(ctx, EventPay, result.Sent.TransactionId, senderId, deltas, map[string]string{
		"recipient_transaction_id": result.Received.TransactionId,
	})
	return result, nil
}
