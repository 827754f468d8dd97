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
	"testing"
	"time"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func createSignal(t *testing.T, env *testEnv, adminId string, side models.OrderSide, leverage int) *models.TradeSignal {
	t.Helper()
	signal, err := env.ledger.CreateSignal(context.Background(), adminId, CreateSignalRequest{
		Pair:        "BTC/USDT",
		SignalType:  side,
		EntryPrice:  decimal.NewFromInt(27000),
		TargetPrice: decimal.NewFromInt(29700),
		StopLoss:    decimal.NewFromInt(26000),
		Leverage:    leverage,
		ExpiryHours: 4,
	})
	if err != nil {
		t.Fatalf("CreateSignal failed: %v", err)
	}
	return signal
}

func TestFollowAndClosePosition_Profit(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	admin := env.admin(t)
	u := env.user(t, "alice")
	env.fund(t, u.Id, "USDT", "1000", models.BucketSpot)
	signal := createSignal(t, env, admin.Id, models.SideBuy, 0)
	if signal.Leverage != 1 {
		t.Errorf("Expected default leverage 1, got %d", signal.Leverage)
	}
	if !signal.ExpiryTime.Equal(env.now.Add(4 * time.Hour)) {
		t.Errorf("Expected expiry %v, got %v", env.now.Add(4*time.Hour), signal.ExpiryTime)
	}

	position, err := env.ledger.FollowSignal(ctx, u.Id, signal.Id, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("FollowSignal failed: %v", err)
	}
	if !position.EntryPrice.Equal(decimal.NewFromInt(27000)) {
		t.Errorf("Expected entry 27000, got %s", position.EntryPrice)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "900")

	_, err = env.ledger.FollowSignal(ctx, u.Id, signal.Id, decimal.NewFromInt(100))
	if !errors.Is(err, store.ErrDuplicatePosition) {
		t.Fatalf("Expected ErrDuplicatePosition, got %v", err)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "900")

	env.oracle.set("BTC/USDT", "29700")
	closed, err := env.ledger.ClosePosition(ctx, u.Id, position.Id)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "1010")
	if !closed.ProfitLoss.Decimal.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected profit 10, got %s", closed.ProfitLoss.Decimal)
	}
	if !closed.ClosePrice.Valid || !closed.ClosePrice.Decimal.Equal(decimal.NewFromInt(29700)) {
		t.Errorf("Expected close price 29700, got %v", closed.ClosePrice)
	}

	if _, err := env.ledger.ClosePosition(ctx, u.Id, position.Id); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState on second close, got %v", err)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "1010")

	// the closed position no longer blocks a new follow
	if _, err := env.ledger.FollowSignal(ctx, u.Id, signal.Id, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("Expected follow after close to succeed, got %v", err)
	}
}

func TestClosePosition_SellLeverageAndClamp(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	admin := env.admin(t)
	u := env.user(t, "alice")
	bob := env.user(t, "bob")
	env.fund(t, u.Id, "USDT", "200", models.BucketSpot)
	env.fund(t, bob.Id, "USDT", "200", models.BucketSpot)
	signal := createSignal(t, env, admin.Id, models.SideSell, 5)

	position, err := env.ledger.FollowSignal(ctx, u.Id, signal.Id, decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("FollowSignal failed: %v", err)
	}

	if _, err := env.ledger.ClosePosition(ctx, bob.Id, position.Id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound closing someone else's position, got %v", err)
	}

	// +30% move on a 5x short is -150%
	env.oracle.set("BTC/USDT", "35100")
	closed, err := env.ledger.ClosePosition(ctx, u.Id, position.Id)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "100")
	if !closed.ProfitLoss.Decimal.Equal(decimal.NewFromInt(-100)) {
		t.Errorf("Expected realised loss -100, got %s", closed.ProfitLoss.Decimal)
	}
	if !closed.ProfitLossPercentage.Decimal.Equal(decimal.NewFromInt(-150)) {
		t.Errorf("Expected -150%%, got %s", closed.ProfitLossPercentage.Decimal)
	}
}

func TestPositionPnlPercentage(t *testing.T) {
	tests := []struct {
		side     models.OrderSide
		entry    string
		current  string
		leverage int
		want     string
	}{
		{models.SideBuy, "100", "110", 1, "10"},
		{models.SideBuy, "100", "90", 2, "-20"},
		{models.SideSell, "100", "90", 1, "10"},
		{models.SideSell, "100", "110", 3, "-30"},
		{models.SideBuy, "200", "200", 10, "0"},
	}

	for _, tt := range tests {
		got := PositionPnlPercentage(tt.side, decimal.RequireFromString(tt.entry), decimal.RequireFromString(tt.current), tt.leverage)
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("%s %s->%s x%d: expected %s, got %s", tt.side, tt.entry, tt.current, tt.leverage, tt.want, got)
		}
	}
}

func TestResolveSignal_SettlesOpenPositions(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	admin := env.admin(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	env.fund(t, alice.Id, "USDT", "500", models.BucketSpot)
	env.fund(t, bob.Id, "USDT", "500", models.BucketSpot)
	signal := createSignal(t, env, admin.Id, models.SideBuy, 1)

	if _, err := env.ledger.FollowSignal(ctx, alice.Id, signal.Id, decimal.NewFromInt(200)); err != nil {
		t.Fatalf("FollowSignal failed: %v", err)
	}
	if _, err := env.ledger.FollowSignal(ctx, bob.Id, signal.Id, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("FollowSignal failed: %v", err)
	}

	if _, err := env.ledger.ResolveSignal(ctx, alice.Id, signal.Id, models.ResultProfit, decimal.NewFromInt(5)); !errors.Is(err, store.ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized for non-admin, got %v", err)
	}

	result, err := env.ledger.ResolveSignal(ctx, admin.Id, signal.Id, models.ResultLoss, decimal.NewFromInt(25))
	if err != nil {
		t.Fatalf("ResolveSignal failed: %v", err)
	}
	if result.ClosedPositions != 2 {
		t.Errorf("Expected 2 closed positions, got %d", result.ClosedPositions)
	}
	if !result.TotalPaid.Equal(decimal.NewFromInt(225)) {
		t.Errorf("Expected total paid 225, got %s", result.TotalPaid)
	}
	env.expectBalance(t, alice.Id, "USDT", models.BucketSpot, "450")
	env.expectBalance(t, bob.Id, "USDT", models.BucketSpot, "475")

	positions, err := env.ledger.ListPositions(ctx, alice.Id, models.PositionClosed)
	if err != nil {
		t.Fatalf("ListPositions failed: %v", err)
	}
	if len(positions) != 1 || positions[0].ClosePrice.Valid {
		t.Errorf("Expected one closed position without a close price, got %+v", positions)
	}

	if _, err := env.ledger.ResolveSignal(ctx, admin.Id, signal.Id, models.ResultProfit, decimal.NewFromInt(5)); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState on second resolve, got %v", err)
	}
	if _, err := env.ledger.FollowSignal(ctx, alice.Id, signal.Id, decimal.NewFromInt(10)); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState following a resolved signal, got %v", err)
	}
	env.expectBalance(t, alice.Id, "USDT", models.BucketSpot, "450")
}

func TestExpireSignals_DeactivatesButKeepsPositions(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	admin := env.admin(t)
	u := env.user(t, "alice")
	env.fund(t, u.Id, "USDT", "100", models.BucketSpot)
	signal := createSignal(t, env, admin.Id, models.SideBuy, 1)

	position, err := env.ledger.FollowSignal(ctx, u.Id, signal.Id, decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("FollowSignal failed: %v", err)
	}

	count, err := env.ledger.ExpireSignals(ctx)
	if err != nil {
		t.Fatalf("ExpireSignals failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected nothing to expire yet, got %d", count)
	}

	env.now = env.now.Add(5 * time.Hour)
	count, err = env.ledger.ExpireSignals(ctx)
	if err != nil {
		t.Fatalf("ExpireSignals failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 expired signal, got %d", count)
	}

	expired, err := env.ledger.GetSignal(ctx, signal.Id)
	if err != nil {
		t.Fatalf("GetSignal failed: %v", err)
	}
	if expired.IsActive {
		t.Error("Expected signal to be inactive after expiry")
	}

	if _, err := env.ledger.FollowSignal(ctx, u.Id, signal.Id, decimal.NewFromInt(10)); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState following an expired signal, got %v", err)
	}

	open, err := env.ledger.ListPositions(ctx, u.Id, models.PositionOpen)
	if err != nil {
		t.Fatalf("ListPositions failed: %v", err)
	}
	if len(open) != 1 || open[0].Id != position.Id {
		t.Errorf("Expected the position to stay open, got %+v", open)
	}
}

func TestCreateSignal_Validation(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	admin := env.admin(t)
	u := env.user(t, "alice")

	valid := CreateSignalRequest{Pair: "ETH/USDT", SignalType: models.SideBuy, EntryPrice: decimal.NewFromInt(2000)}
	tests := []struct {
		name    string
		actor   string
		mutate  func(r *CreateSignalRequest)
		wantErr error
	}{
		{"non admin", u.Id, func(r *CreateSignalRequest) {}, store.ErrUnauthorized},
		{"bad pair", admin.Id, func(r *CreateSignalRequest) { r.Pair = "ETH" }, store.ErrInvalidInput},
		{"bad type", admin.Id, func(r *CreateSignalRequest) { r.SignalType = "long" }, store.ErrInvalidInput},
		{"zero entry", admin.Id, func(r *CreateSignalRequest) { r.EntryPrice = decimal.Zero }, store.ErrInvalidInput},
		{"negative leverage", admin.Id, func(r *CreateSignalRequest) { r.Leverage = -2 }, store.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := env.ledger.CreateSignal(ctx, tt.actor, req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	signals, err := env.ledger.ListSignals(ctx, false)
	if err != nil {
		t.Fatalf("ListSignals failed: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("Expected no signals, got %d", len(signals))
	}
}
