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

// applyReferralReward pays the referrer of referredId once the referred user is verified and has
// completed enough stable-currency deposits. It returns nil when the user is not (or no longer) eligible.
func (s *Service) applyReferralReward(ctx context.Context, tx store.Tx, referredId string) (*models.Transaction, error) {
	if !s.cfg.ReferralRewardAmount.IsPositive() {
		return nil, nil
	}

	user, err := tx.GetUserById(ctx, referredId)
	if err != nil {
		return nil, err
	}
	if user.ReferredBy == "" || !user.IsVerified {
		return nil, nil
	}

	paid, err := tx.HasReferralReward(ctx, user.Id)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, nil
	}

	deposited, err := tx.SumCompletedDeposits(ctx, user.Id, s.cfg.StableCurrency)
	if err != nil {
		return nil, err
	}
	if deposited.LessThan(s.cfg.ReferralDepositThreshold) {
		zap.L().Debug("Referral threshold not reached",
			zap.String("user_id", user.Id),
			zap.String("deposited", deposited.String()),
			zap.String("threshold", s.cfg.ReferralDepositThreshold.String()))
		return nil, nil
	}

	referrer, err := tx.GetUserById(ctx, user.ReferredBy)
	if errors.Is(err, store.ErrNotFound) {
		zap.L().Warn("Referrer no longer exists", zap.String("user_id", user.Id), zap.String("referrer_id", user.ReferredBy))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	amount := s.cfg.ReferralRewardAmount
	if _, err := tx.Credit(ctx, referrer.Id, s.cfg.StableCurrency, amount, models.BucketSpot); err != nil {
		return nil, err
	}
	txn := &models.Transaction{
		UserId:     referrer.Id,
		Type:       models.TransactionReferral,
		Status:     models.StatusCompleted,
		Currency:   s.cfg.StableCurrency,
		Amount:     amount,
		Fee:        decimal.Zero,
		FromWallet: models.WalletSystem,
		ToWallet:   string(models.BucketSpot),
		Notes:      fmt.Sprintf("Referral reward for %s", user.Username),
	}
	if err := tx.InsertTransaction(ctx, txn); err != nil {
		return nil, err
	}
	if err := tx.InsertReferralReward(ctx, &models.ReferralReward{
		ReferrerId:    referrer.Id,
		ReferredId:    user.Id,
		Currency:      s.cfg.StableCurrency,
		Amount:        amount,
		TransactionId: txn.TransactionId,
	}); err != nil {
		return nil, err
	}

	zap.L().Info("Referral reward paid",
		zap.String("referrer_id", referrer.Id),
		zap.String("referred_id", user.Id),
		zap.String("amount", amount.String()))
	return txn, nil
}
