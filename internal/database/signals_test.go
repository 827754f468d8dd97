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
	"errors"
	"testing"
	"time"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func insertSignal(t *testing.T, s *Service, expiry time.Time) *models.TradeSignal {
	t.Helper()
	sig := &models.TradeSignal{
		AdminId:      "admin",
		CurrencyPair: "BTC/USDT",
		SignalType:   models.SideBuy,
		EntryPrice:   decimal.NewFromInt(27000),
		TargetPrice:  decimal.NewFromInt(28000),
		StopLoss:     decimal.NewFromInt(26000),
		Leverage:     1,
		ExpiryTime:   expiry.UTC(),
		IsActive:     true,
	}
	err := s.WithinTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertSignal(context.Background(), sig)
	})
	if err != nil {
		t.Fatalf("InsertSignal failed: %v", err)
	}
	return sig
}

func TestSignalLifecycle(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	sig := insertSignal(t, service, time.Now().Add(time.Hour))

	stored, err := service.GetSignal(ctx, sig.Id)
	if err != nil {
		t.Fatalf("GetSignal failed: %v", err)
	}
	if stored.Resolved() || !stored.IsActive || stored.ProfitPercentage.Valid || stored.ResolvedAt != nil {
		t.Errorf("Unexpected fresh signal: %+v", stored)
	}

	resolve := func() error {
		return service.WithinTx(ctx, func(tx store.Tx) error {
			return tx.ResolveSignal(ctx, sig.Id, models.ResultProfit, decimal.NewFromInt(10), time.Now().UTC())
		})
	}
	if err := resolve(); err != nil {
		t.Fatalf("ResolveSignal failed: %v", err)
	}
	if err := resolve(); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState on second resolve, got %v", err)
	}

	resolved, _ := service.GetSignal(ctx, sig.Id)
	if resolved.Result != models.ResultProfit || resolved.IsActive || resolved.ResolvedAt == nil {
		t.Errorf("Unexpected resolved signal: %+v", resolved)
	}
	if !resolved.ProfitPercentage.Valid || !resolved.ProfitPercentage.Decimal.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected profit percentage 10, got %+v", resolved.ProfitPercentage)
	}

	err = service.WithinTx(ctx, func(tx store.Tx) error { return tx.DeactivateSignal(ctx, sig.Id) })
	if !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState deactivating a resolved signal, got %v", err)
	}
}

func TestListExpiredSignals(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	expired := insertSignal(t, service, time.Now().Add(-time.Minute))
	insertSignal(t, service, time.Now().Add(time.Hour))

	signals, err := service.ListExpiredSignals(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("ListExpiredSignals failed: %v", err)
	}
	if len(signals) != 1 || signals[0].Id != expired.Id {
		t.Fatalf("Expected only %s to be expired, got %+v", expired.Id, signals)
	}

	active, err := service.ListSignals(ctx, true)
	if err != nil || len(active) != 2 {
		t.Errorf("Expected 2 active signals, got %d (%v)", len(active), err)
	}
}

func TestPositions_OneOpenPerSignal(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	sig := insertSignal(t, service, time.Now().Add(time.Hour))
	open := func() (*models.TradePosition, error) {
		p := &models.TradePosition{UserId: "user1", SignalId: sig.Id, Amount: decimal.NewFromInt(100), EntryPrice: sig.EntryPrice}
		err := service.WithinTx(ctx, func(tx store.Tx) error { return tx.InsertPosition(ctx, p) })
		return p, err
	}

	first, err := open()
	if err != nil {
		t.Fatalf("InsertPosition failed: %v", err)
	}
	if _, err := open(); !errors.Is(err, store.ErrDuplicatePosition) {
		t.Fatalf("Expected ErrDuplicatePosition, got %v", err)
	}

	closePosition := func() error {
		return service.WithinTx(ctx, func(tx store.Tx) error {
			return tx.ClosePosition(ctx, store.ClosePositionParams{
				PositionId:           first.Id,
				ClosePrice:           decimal.NewNullDecimal(decimal.NewFromInt(28000)),
				ProfitLoss:           decimal.NewFromInt(10),
				ProfitLossPercentage: decimal.NewFromInt(10),
				ClosedAt:             time.Now().UTC(),
			})
		})
	}
	if err := closePosition(); err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	if err := closePosition(); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState closing twice, got %v", err)
	}

	// A closed position frees the slot
	if _, err := open(); err != nil {
		t.Errorf("Expected reopen after close to succeed, got %v", err)
	}

	positions, err := service.ListUserPositions(ctx, "user1", models.PositionClosed)
	if err != nil || len(positions) != 1 {
		t.Fatalf("Expected 1 closed position, got %d (%v)", len(positions), err)
	}
	if !positions[0].ClosePrice.Valid || positions[0].ClosedAt == nil {
		t.Errorf("Expected settlement values on closed position: %+v", positions[0])
	}
}

func TestOrders_StatusTransitions(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()
	ctx := context.Background()

	order := &models.Order{UserId: "user1", CurrencyPair: "BTC/USDT", Type: models.OrderLimit, Side: models.SideBuy,
		Price: decimal.NewFromInt(27000), Amount: decimal.RequireFromString("0.5"), FilledAmount: decimal.Zero}
	err := service.WithinTx(ctx, func(tx store.Tx) error { return tx.InsertOrder(ctx, order) })
	if err != nil {
		t.Fatalf("InsertOrder failed: %v", err)
	}

	open, err := service.ListOpenOrders(ctx)
	if err != nil || len(open) != 1 {
		t.Fatalf("Expected 1 open order, got %d (%v)", len(open), err)
	}

	setStatus := func(status models.OrderStatus) error {
		return service.WithinTx(ctx, func(tx store.Tx) error {
			return tx.SetOrderStatus(ctx, order.Id, status, order.Amount)
		})
	}
	if err := setStatus(models.OrderFilled); err != nil {
		t.Fatalf("SetOrderStatus failed: %v", err)
	}
	if err := setStatus(models.OrderCanceled); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}

	filled, _ := service.GetOrder(ctx, order.Id)
	if filled.Status != models.OrderFilled || !filled.Unfilled().IsZero() {
		t.Errorf("Unexpected filled order: %+v", filled)
	}
}
