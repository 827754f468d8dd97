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
	"time"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CreateSignalRequest struct {
	Pair        string
	SignalType  models.OrderSide
	EntryPrice  decimal.Decimal
	TargetPrice decimal.Decimal
	StopLoss    decimal.Decimal
	Leverage    int
	Description string
	ExpiryHours int // zero uses the configured default window
}

// CreateSignal publishes a new active signal authored by adminId
func (s *Service) CreateSignal(ctx context.Context, adminId string, req CreateSignalRequest) (*models.TradeSignal, error) {
	base, quote, err := models.SplitPair(req.Pair)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	side := models.OrderSide(strings.ToLower(string(req.SignalType)))
	if side != models.SideBuy && side != models.SideSell {
		return nil, fmt.Errorf("%w: unknown signal type %q", store.ErrInvalidInput, req.SignalType)
	}
	if err := requirePositive("entry price", req.EntryPrice); err != nil {
		return nil, err
	}
	if req.TargetPrice.IsNegative() || req.StopLoss.IsNegative() {
		return nil, fmt.Errorf("%w: target and stop loss cannot be negative", store.ErrInvalidInput)
	}
	if req.Leverage < 0 || req.ExpiryHours < 0 {
		return nil, fmt.Errorf("%w: leverage and expiry must not be negative", store.ErrInvalidInput)
	}
	leverage := req.Leverage
	if leverage == 0 {
		leverage = 1
	}
	window := s.cfg.DefaultSignalExpiryWindow
	if req.ExpiryHours > 0 {
		window = time.Duration(req.ExpiryHours) * time.Hour
	}

	signal := &models.TradeSignal{
		AdminId:      adminId,
		CurrencyPair: base + "/" + quote,
		SignalType:   side,
		EntryPrice:   req.EntryPrice,
		TargetPrice:  req.TargetPrice,
		StopLoss:     req.StopLoss,
		Leverage:     leverage,
		Description:  req.Description,
		ExpiryTime:   s.now().UTC().Add(window),
		IsActive:     true,
	}
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := requireAdmin(ctx, tx, adminId); err != nil {
			return err
		}
		return tx.InsertSignal(ctx, signal)
	})
	if err != nil {
		return nil, err
	}
	return signal, nil
}

// DeactivateSignal stops new follows. Open positions are unaffected.
func (s *Service) DeactivateSignal(ctx context.Context, adminId, signalId string) error {
	return s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := requireAdmin(ctx, tx, adminId); err != nil {
			return err
		}
		if _, err := tx.GetSignal(ctx, signalId); err != nil {
			return err
		}
		return tx.DeactivateSignal(ctx, signalId)
	})
}

// ExpireSignals deactivates every active signal whose expiry time has passed and returns how
// many were deactivated
func (s *Service) ExpireSignals(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpiredSignals(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired signals: %w", err)
	}

	count := 0
	for _, sig := range expired {
		err := s.store.WithinTx(ctx, func(tx store.Tx) error {
			return tx.DeactivateSignal(ctx, sig.Id)
		})
		if err != nil {
			zap.L().Warn("Failed to expire signal", zap.String("signal_id", sig.Id), zap.Error(err))
			continue
		}
		count++
	}
	if count > 0 {
		zap.L().Info("Expired signals", zap.Int("count", count))
	}
	return count, nil
}

type ResolveResult struct {
	Signal          *models.TradeSignal
	ClosedPositions int
	TotalPaid       decimal.Decimal
}

// ResolveSignal declares the outcome of a signal and settles every open position on it with the
// declared percentage. profitPct is a magnitude: a loss result applies it negatively.
func (s *Service) ResolveSignal(ctx context.Context, adminId, signalId string, result models.SignalResult, profitPct decimal.Decimal) (*ResolveResult, error) {
	result = models.SignalResult(strings.ToLower(string(result)))
	if result != models.ResultProfit && result != models.ResultLoss {
		return nil, fmt.Errorf("%w: result must be profit or loss", store.ErrInvalidInput)
	}
	if profitPct.IsNegative() {
		return nil, fmt.Errorf("%w: profit percentage is a magnitude", store.ErrInvalidInput)
	}
	pct := profitPct
	if result == models.ResultLoss {
		pct = pct.Neg()
	}

	out := &ResolveResult{TotalPaid: decimal.Zero}
	var deltas []models.BalanceDelta
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := requireAdmin(ctx, tx, adminId); err != nil {
			return err
		}
		signal, err := tx.GetSignal(ctx, signalId)
		if err != nil {
			return err
		}
		if signal.Resolved() {
			return fmt.Errorf("%w: signal %s is already resolved", store.ErrInvalidState, signalId)
		}
		_, quote, err := models.SplitPair(signal.CurrencyPair)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := tx.ResolveSignal(ctx, signalId, result, pct, now); err != nil {
			return err
		}

		positions, err := tx.ListOpenPositionsForSignal(ctx, signalId)
		if err != nil {
			return err
		}
		for i := range positions {
			p := &positions[i]
			paid, err := s.settlePosition(ctx, tx, p, quote, decimal.NullDecimal{}, pct, now,
				fmt.Sprintf("Signal %s resolved as %s (%s%%)", signal.CurrencyPair, result, pct.String()))
			if err != nil {
				return err
			}
			out.TotalPaid = out.TotalPaid.Add(paid)
			out.ClosedPositions++
		}

		signal.IsActive = false
		signal.Result = result
		signal.ProfitPercentage = decimal.NewNullDecimal(pct)
		signal.ResolvedAt = &now
		out.Signal = signal
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Signal resolved",
		zap.String("signal_id", signalId),
		zap.String("result", string(result)),
		zap.String("pct", pct.String()),
		zap.Int("closed_positions", out.ClosedPositions),
		zap.String("total_paid", out.TotalPaid.String()))

	s.publish(ctx, EventSignalResolved, signalId, adminId, deltas, map[string]string{
		"result": string(result),
	})
	return out, nil
}

// settlePosition closes p with pnlPct applied to its stake, credits the settlement to quote spot
// and writes the trade row. The settlement never goes below zero. It returns the amount credited.
func (s *Service) settlePosition(ctx context.Context, tx store.Tx, p *models.TradePosition, quote string,
	closePrice decimal.NullDecimal, pnlPct decimal.Decimal, at time.Time, notes string) (decimal.Decimal, error) {

	pnl := p.Amount.Mul(pnlPct).Div(decimal.NewFromInt(100))
	settled := p.Amount.Add(pnl)
	if settled.IsNegative() {
		settled = decimal.Zero
	}
	realised := settled.Sub(p.Amount)

	if err := tx.ClosePosition(ctx, store.ClosePositionParams{
		PositionId:           p.Id,
		ClosePrice:           closePrice,
		ProfitLoss:           realised,
		ProfitLossPercentage: pnlPct,
		ClosedAt:             at,
	}); err != nil {
		return decimal.Zero, err
	}

	if settled.IsPositive() {
		if _, err := tx.Credit(ctx, p.UserId, quote, settled, models.BucketSpot); err != nil {
			return decimal.Zero, err
		}
	}
	if err := tx.InsertTransaction(ctx, &models.Transaction{
		UserId:     p.UserId,
		Type:       models.TransactionTrade,
		Status:     models.StatusCompleted,
		Currency:   quote,
		Amount:     settled,
		Fee:        decimal.Zero,
		FromWallet: models.WalletSystem,
		ToWallet:   string(models.BucketSpot),
		Notes:      notes,
	}); err != nil {
		return decimal.Zero, err
	}

	p.Status = models.PositionClosed
	p.ClosePrice = closePrice
	p.ProfitLoss = decimal.NewNullDecimal(realised)
	p.ProfitLossPercentage = decimal.NewNullDecimal(pnlPct)
	p.ClosedAt = &at
	return settled, nil
}

func (s *Service) GetSignal(ctx context.Context, signalId string) (*models.TradeSignal, error) {
	return s.store.GetSignal(ctx, signalId)
}

func (s *Service) ListSignals(ctx context.Context, activeOnly bool) ([]models.TradeSignal, error) {
	return s.store.ListSignals(ctx, activeOnly)
}
