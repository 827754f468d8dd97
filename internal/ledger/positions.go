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

// FollowSignal stakes amount of the signal's quote currency on it, opening a position at the
// current oracle price
func (s *Service) FollowSignal(ctx context.Context, userId, signalId string, amount decimal.Decimal) (*models.TradePosition, error) {
	if err := requirePositive("amount", amount); err != nil {
		return nil, err
	}
	signal, err := s.store.GetSignal(ctx, signalId)
	if err != nil {
		return nil, err
	}
	_, quote, err := models.SplitPair(signal.CurrencyPair)
	if err != nil {
		return nil, err
	}
	// price first: the oracle is never called with the write lock held
	entry, err := s.price(ctx, signal.CurrencyPair)
	if err != nil {
		return nil, err
	}

	position := &models.TradePosition{
		UserId:     userId,
		SignalId:   signalId,
		Amount:     amount,
		EntryPrice: entry,
		Status:     models.PositionOpen,
	}
	var deltas []models.BalanceDelta
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		signal, err := tx.GetSignal(ctx, signalId)
		if err != nil {
			return err
		}
		if !signal.IsActive || signal.Resolved() || !s.now().UTC().Before(signal.ExpiryTime) {
			return fmt.Errorf("%w: signal %s is not active", store.ErrInvalidState, signalId)
		}
		open, err := tx.HasOpenPosition(ctx, userId, signalId)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w: user already follows signal %s", store.ErrDuplicatePosition, signalId)
		}

		if _, err := tx.Debit(ctx, userId, quote, amount, models.BucketSpot); err != nil {
			return err
		}
		if err := tx.InsertPosition(ctx, position); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &models.Transaction{
			UserId:     userId,
			Type:       models.TransactionTrade,
			Status:     models.StatusCompleted,
			Currency:   quote,
			Amount:     amount,
			Fee:        decimal.Zero,
			FromWallet: string(models.BucketSpot),
			ToWallet:   models.WalletSystem,
			Notes: fmt.Sprintf("Follow %s %s signal with %s %s at %s",
				signal.SignalType, signal.CurrencyPair, amount.String(), quote, entry.String()),
		}); err != nil {
			return err
		}
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Position opened",
		zap.String("position_id", position.Id),
		zap.String("user_id", userId),
		zap.String("signal_id", signalId),
		zap.String("amount", amount.String()),
		zap.String("entry_price", entry.String()))

	s.publish(ctx, EventPositionOpened, position.Id, userId, deltas, map[string]string{"signal_id": signalId})
	return position, nil
}

// PositionPnlPercentage returns the leveraged percentage move from entry to current, inverted for
// a sell signal
func PositionPnlPercentage(side models.OrderSide, entry, current decimal.Decimal, leverage int) decimal.Decimal {
	if leverage < 1 {
		leverage = 1
	}
	pct := current.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(int64(leverage)))
	if side == models.SideSell {
		pct = pct.Neg()
	}
	return pct
}

// ClosePosition settles a user's open position at the current oracle price
func (s *Service) ClosePosition(ctx context.Context, userId, positionId string) (*models.TradePosition, error) {
	position, err := s.store.GetPosition(ctx, positionId)
	if err != nil {
		return nil, err
	}
	if position.UserId != userId {
		return nil, fmt.Errorf("%w: position %s", store.ErrNotFound, positionId)
	}
	signal, err := s.store.GetSignal(ctx, position.SignalId)
	if err != nil {
		return nil, err
	}
	_, quote, err := models.SplitPair(signal.CurrencyPair)
	if err != nil {
		return nil, err
	}
	current, err := s.price(ctx, signal.CurrencyPair)
	if err != nil {
		return nil, err
	}

	var settled decimal.Decimal
	var deltas []models.BalanceDelta
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetPosition(ctx, positionId)
		if err != nil {
			return err
		}
		if p.Status != models.PositionOpen {
			return fmt.Errorf("%w: position %s is %s", store.ErrInvalidState, positionId, p.Status)
		}
		pct := PositionPnlPercentage(signal.SignalType, p.EntryPrice, current, signal.Leverage)
		settled, err = s.settlePosition(ctx, tx, p, quote, decimal.NewNullDecimal(current), pct, s.now().UTC(),
			fmt.Sprintf("Close %s position at %s (%s%%)", signal.CurrencyPair, current.String(), pct.StringFixed(2)))
		if err != nil {
			return err
		}
		position = p
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Position closed",
		zap.String("position_id", positionId),
		zap.String("user_id", userId),
		zap.String("close_price", current.String()),
		zap.String("settled", settled.String()))

	s.publish(ctx, EventPositionClosed, positionId, userId, deltas, map[string]string{"signal_id": position.SignalId})
	return position, nil
}

func (s *Service) ListPositions(ctx context.Context, userId string, status models.PositionStatus) ([]models.TradePosition, error) {
	return s.store.ListUserPositions(ctx, userId, status)
}
