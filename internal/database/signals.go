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
	"time"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (t *sqlTx) InsertSignal(ctx context.Context, sig *models.TradeSignal) error {
	if sig.Id == "" {
		sig.Id = uuid.New().String()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = t.now()
	}
	_, err := t.tx.ExecContext(ctx, queryInsertSignal, sig.Id, sig.AdminId, sig.CurrencyPair, sig.SignalType,
		sig.EntryPrice, sig.TargetPrice, sig.StopLoss, sig.Leverage, sig.Description, sig.ExpiryTime,
		sig.IsActive, sig.Result, sig.ProfitPercentage, sig.CreatedAt, sig.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	zap.L().Info("Signal created",
		zap.String("signal_id", sig.Id),
		zap.String("pair", sig.CurrencyPair),
		zap.String("type", string(sig.SignalType)),
		zap.Time("expiry", sig.ExpiryTime))
	return nil
}

func (t *sqlTx) GetSignal(ctx context.Context, signalId string) (*models.TradeSignal, error) {
	return getSignal(ctx, t.tx, signalId)
}

// DeactivateSignal stops new positions on an active, unresolved signal
func (t *sqlTx) DeactivateSignal(ctx context.Context, signalId string) error {
	result, err := t.tx.ExecContext(ctx, queryDeactivateSignal, signalId)
	if err != nil {
		return fmt.Errorf("failed to deactivate signal: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: signal %s is not active", store.ErrInvalidState, signalId))
}

// ResolveSignal sets the terminal result once; a second resolve yields ErrInvalidState
func (t *sqlTx) ResolveSignal(ctx context.Context, signalId string, result models.SignalResult, pct decimal.Decimal, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, queryResolveSignal, result, pct, at, signalId)
	if err != nil {
		return fmt.Errorf("failed to resolve signal: %w", err)
	}
	return checkAffected(res, fmt.Errorf("%w: signal %s is already resolved", store.ErrInvalidState, signalId))
}

func (t *sqlTx) InsertPosition(ctx context.Context, p *models.TradePosition) error {
	if p.Id == "" {
		p.Id = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now()
	}
	if p.Status == "" {
		p.Status = models.PositionOpen
	}
	_, err := t.tx.ExecContext(ctx, queryInsertPosition, p.Id, p.UserId, p.SignalId, p.Amount, p.EntryPrice,
		p.Status, p.ClosePrice, p.ProfitLoss, p.ProfitLossPercentage, p.CreatedAt, p.ClosedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s already has an open position on signal %s",
				store.ErrDuplicatePosition, p.UserId, p.SignalId)
		}
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

func (t *sqlTx) GetPosition(ctx context.Context, positionId string) (*models.TradePosition, error) {
	return getPosition(ctx, t.tx, positionId)
}

func (t *sqlTx) HasOpenPosition(ctx context.Context, userId, signalId string) (bool, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, queryHasOpenPosition, userId, signalId).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check open position: %w", err)
	}
	return n > 0, nil
}

func (t *sqlTx) ListOpenPositionsForSignal(ctx context.Context, signalId string) ([]models.TradePosition, error) {
	rows, err := t.tx.QueryContext(ctx, queryListOpenPositionsForSignal, signalId)
	if err != nil {
		return nil, fmt.Errorf("failed to list open positions: %w", err)
	}
	defer closeRows(rows)
	return collectPositions(rows)
}

// ClosePosition writes settlement values to an open position; a closed position yields ErrInvalidState
func (t *sqlTx) ClosePosition(ctx context.Context, params store.ClosePositionParams) error {
	result, err := t.tx.ExecContext(ctx, queryClosePosition, params.ClosePrice, params.ProfitLoss,
		params.ProfitLossPercentage, params.ClosedAt, params.PositionId)
	if err != nil {
		return fmt.Errorf("failed to close position: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: position %s is not open", store.ErrInvalidState, params.PositionId))
}

func (t *sqlTx) HasReferralReward(ctx context.Context, referredId string) (bool, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, queryHasReferralReward, referredId).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check referral reward: %w", err)
	}
	return n > 0, nil
}

func (t *sqlTx) InsertReferralReward(ctx context.Context, r *models.ReferralReward) error {
	if r.Id == "" {
		r.Id = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t.now()
	}
	_, err := t.tx.ExecContext(ctx, queryInsertReferralReward, r.Id, r.ReferrerId, r.ReferredId, r.Currency,
		r.Amount, r.TransactionId, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: referral reward for %s already paid", store.ErrDuplicateTransaction, r.ReferredId)
		}
		return fmt.Errorf("failed to insert referral reward: %w", err)
	}
	return nil
}

func (s *Service) GetSignal(ctx context.Context, signalId string) (*models.TradeSignal, error) {
	return getSignal(ctx, s.db, signalId)
}

func (s *Service) ListSignals(ctx context.Context, activeOnly bool) ([]models.TradeSignal, error) {
	rows, err := s.db.QueryContext(ctx, queryListSignals, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer closeRows(rows)
	return collectSignals(rows)
}

// ListExpiredSignals returns active, unresolved signals whose expiry is at or before now
func (s *Service) ListExpiredSignals(ctx context.Context, now time.Time) ([]models.TradeSignal, error) {
	rows, err := s.db.QueryContext(ctx, queryListExpiredSignals, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired signals: %w", err)
	}
	defer closeRows(rows)
	return collectSignals(rows)
}

func (s *Service) GetPosition(ctx context.Context, positionId string) (*models.TradePosition, error) {
	return getPosition(ctx, s.db, positionId)
}

func (s *Service) ListUserPositions(ctx context.Context, userId string, status models.PositionStatus) ([]models.TradePosition, error) {
	rows, err := s.db.QueryContext(ctx, queryListUserPositions, userId, status, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list user positions: %w", err)
	}
	defer closeRows(rows)
	return collectPositions(rows)
}

func getSignal(ctx context.Context, q querier, signalId string) (*models.TradeSignal, error) {
	sig, err := scanSignal(q.QueryRowContext(ctx, queryGetSignal, signalId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: signal %s", store.ErrNotFound, signalId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}
	return sig, nil
}

func getPosition(ctx context.Context, q querier, positionId string) (*models.TradePosition, error) {
	p, err := scanPosition(q.QueryRowContext(ctx, queryGetPosition, positionId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: position %s", store.ErrNotFound, positionId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return p, nil
}

func collectSignals(rows *sql.Rows) ([]models.TradeSignal, error) {
	var signals []models.TradeSignal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, *sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signal rows: %w", err)
	}
	return signals, nil
}

func collectPositions(rows *sql.Rows) ([]models.TradePosition, error) {
	var positions []models.TradePosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

func scanSignal(row rowScanner) (*models.TradeSignal, error) {
	var s models.TradeSignal
	err := row.Scan(&s.Id, &s.AdminId, &s.CurrencyPair, &s.SignalType, &s.EntryPrice, &s.TargetPrice,
		&s.StopLoss, &s.Leverage, &s.Description, &s.ExpiryTime, &s.IsActive, &s.Result,
		&s.ProfitPercentage, &s.CreatedAt, &s.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanPosition(row rowScanner) (*models.TradePosition, error) {
	var p models.TradePosition
	err := row.Scan(&p.Id, &p.UserId, &p.SignalId, &p.Amount, &p.EntryPrice, &p.Status, &p.ClosePrice,
		&p.ProfitLoss, &p.ProfitLossPercentage, &p.CreatedAt, &p.ClosedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
