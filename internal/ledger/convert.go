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

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// rateScale is the working precision of a cross rate before the converted amount is rounded
const rateScale = 18

type ConvertResult struct {
	Transaction *models.Transaction
	Rate        decimal.Decimal
	Converted   decimal.Decimal
}

// ConversionRate returns how many units of `to` one unit of `from` buys. Pairs that do not
// involve the stable currency are priced through it.
func (s *Service) ConversionRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	stable := s.cfg.StableCurrency
	switch {
	case from == to:
		return decimal.NewFromInt(1), nil
	case to == stable:
		return s.price(ctx, from+"/"+stable)
	case from == stable:
		p, err := s.price(ctx, to+"/"+stable)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(1).DivRound(p, rateScale), nil
	default:
		fromPrice, err := s.price(ctx, from+"/"+stable)
		if err != nil {
			return decimal.Zero, err
		}
		toPrice, err := s.price(ctx, to+"/"+stable)
		if err != nil {
			return decimal.Zero, err
		}
		return fromPrice.DivRound(toPrice, rateScale), nil
	}
}

// Convert exchanges amount of one currency for another inside the same bucket. The rate is
// fetched and validated before any balance is touched.
func (s *Service) Convert(ctx context.Context, userId, from, to string, amount decimal.Decimal, bucket models.Bucket) (*ConvertResult, error) {
	from, err := s.currency(from)
	if err != nil {
		return nil, err
	}
	to, err = s.currency(to)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, fmt.Errorf("%w: cannot convert %s to itself", store.ErrInvalidInput, from)
	}
	if err := requirePositive("amount", amount); err != nil {
		return nil, err
	}
	if bucket, err = models.ParseBucket(string(bucket)); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	rate, err := s.ConversionRate(ctx, from, to)
	if err != nil {
		return nil, err
	}
	converted := amount.Mul(rate).Round(s.cfg.ConversionPrecision)
	if !converted.IsPositive() {
		return nil, fmt.Errorf("%w: %s %s converts to zero %s", store.ErrInvalidInput, amount.String(), from, to)
	}
	displayRate := rate.Round(s.cfg.ConversionPrecision)

	zap.L().Info("Converting currency",
		zap.String("user_id", userId),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("amount", amount.String()),
		zap.String("rate", displayRate.String()),
		zap.String("converted", converted.String()))

	var txn *models.Transaction
	var deltas []models.BalanceDelta
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Debit(ctx, userId, from, amount, bucket); err != nil {
			return err
		}
		if _, err := tx.Credit(ctx, userId, to, converted, bucket); err != nil {
			return err
		}
		txn = &models.Transaction{
			UserId:     userId,
			Type:       models.TransactionConvert,
			Status:     models.StatusCompleted,
			Currency:   from,
			Amount:     amount,
			Fee:        decimal.Zero,
			FromWallet: string(bucket),
			ToWallet:   string(bucket),
			Notes: fmt.Sprintf("Converted %s %s to %s %s at rate %s",
				amount.String(), from, converted.String(), to, displayRate.String()),
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventConvert, txn.TransactionId, userId, deltas, map[string]string{
		"rate": displayRate.String(),
	})
	return &ConvertResult{Transaction: txn, Rate: rate, Converted: converted}, nil
}
