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

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func placeOrder(t *testing.T, env *testEnv, userId string, orderType models.OrderType, side models.OrderSide, price, amount string) *models.Order {
	t.Helper()
	order, err := env.ledger.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserId: userId,
		Pair:   "BTC/USDT",
		Type:   orderType,
		Side:   side,
		Price:  decimal.RequireFromString(price),
		Amount: decimal.RequireFromString(amount),
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	return order
}

func TestPlaceAndCancelOrder_ReservationRoundTrip(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	env.fund(t, alice.Id, "USDT", "15000", models.BucketSpot)
	env.fund(t, alice.Id, "BTC", "2", models.BucketSpot)

	buy := placeOrder(t, env, alice.Id, models.OrderLimit, models.SideBuy, "20000", "0.5")
	env.expectBalance(t, alice.Id, "USDT", models.BucketSpot, "5000")

	sell := placeOrder(t, env, alice.Id, models.OrderStop, models.SideSell, "25000", "1.5")
	env.expectBalance(t, alice.Id, "BTC", models.BucketSpot, "0.5")

	if _, _, err := env.ledger.CancelOrder(ctx, bob.Id, buy.Id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound when canceling another user's order, got %v", err)
	}

	_, refund, err := env.ledger.CancelOrder(ctx, alice.Id, buy.Id)
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if !refund.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Expected refund 10000, got %s", refund)
	}
	if _, _, err := env.ledger.CancelOrder(ctx, alice.Id, sell.Id); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}

	env.expectBalance(t, alice.Id, "USDT", models.BucketSpot, "15000")
	env.expectBalance(t, alice.Id, "BTC", models.BucketSpot, "2")

	if _, _, err := env.ledger.CancelOrder(ctx, alice.Id, buy.Id); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState on second cancel, got %v", err)
	}
	env.expectBalance(t, alice.Id, "USDT", models.BucketSpot, "15000")
}

func TestPlaceOrder_Validation(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	u := env.user(t, "alice")
	env.fund(t, u.Id, "USDT", "100", models.BucketSpot)

	valid := PlaceOrderRequest{UserId: u.Id, Pair: "BTC/USDT", Type: models.OrderLimit, Side: models.SideBuy, Price: decimal.NewFromInt(10), Amount: decimal.NewFromInt(1)}
	tests := []struct {
		name    string
		mutate  func(r *PlaceOrderRequest)
		wantErr error
	}{
		{"bad pair", func(r *PlaceOrderRequest) { r.Pair = "BTCUSDT" }, store.ErrInvalidInput},
		{"unlisted base", func(r *PlaceOrderRequest) { r.Pair = "DOGE/USDT" }, store.ErrInvalidInput},
		{"market type", func(r *PlaceOrderRequest) { r.Type = "market" }, store.ErrInvalidInput},
		{"bad side", func(r *PlaceOrderRequest) { r.Side = "hold" }, store.ErrInvalidInput},
		{"zero price", func(r *PlaceOrderRequest) { r.Price = decimal.Zero }, store.ErrInvalidInput},
		{"negative amount", func(r *PlaceOrderRequest) { r.Amount = decimal.NewFromInt(-1) }, store.ErrInvalidInput},
		{"insufficient quote", func(r *PlaceOrderRequest) { r.Amount = decimal.NewFromInt(11) }, store.ErrInsufficientFunds},
		{"no base to sell", func(r *PlaceOrderRequest) { r.Side = models.SideSell }, store.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := env.ledger.PlaceOrder(ctx, req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	orders, err := env.ledger.ListOrders(ctx, u.Id, "")
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("Expected no orders after failed placements, got %d", len(orders))
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "100")
}

func TestShouldFill(t *testing.T) {
	price := decimal.NewFromInt(100)
	tests := []struct {
		name      string
		orderType models.OrderType
		side      models.OrderSide
		at        int64
		want      bool
	}{
		{"limit buy below", models.OrderLimit, models.SideBuy, 99, true},
		{"limit buy at", models.OrderLimit, models.SideBuy, 100, true},
		{"limit buy above", models.OrderLimit, models.SideBuy, 101, false},
		{"limit sell above", models.OrderLimit, models.SideSell, 101, true},
		{"limit sell below", models.OrderLimit, models.SideSell, 99, false},
		{"stop buy above", models.OrderStop, models.SideBuy, 101, true},
		{"stop buy below", models.OrderStop, models.SideBuy, 99, false},
		{"stop sell below", models.OrderStop, models.SideSell, 99, true},
		{"stop sell above", models.OrderStop, models.SideSell, 101, false},
		{"stop-limit sell at", models.OrderStopLimit, models.SideSell, 100, true},
		{"stop-limit buy below", models.OrderStopLimit, models.SideBuy, 99, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &models.Order{Type: tt.orderType, Side: tt.side, Price: price}
			if got := ShouldFill(o, decimal.NewFromInt(tt.at)); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSweepOrders_FillsTriggeredOrders(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	u := env.user(t, "alice")
	env.fund(t, u.Id, "USDT", "20000", models.BucketSpot)
	env.fund(t, u.Id, "BTC", "1", models.BucketSpot)
	env.fund(t, u.Id, "XRP", "100", models.BucketSpot)

	// BTC/USDT trades at 27000
	buy := placeOrder(t, env, u.Id, models.OrderLimit, models.SideBuy, "28000", "0.5")
	restingSell := placeOrder(t, env, u.Id, models.OrderLimit, models.SideSell, "30000", "0.25")
	stopSell := placeOrder(t, env, u.Id, models.OrderStopLimit, models.SideSell, "27500", "0.5")
	unpriced, err := env.ledger.PlaceOrder(ctx, PlaceOrderRequest{
		UserId: u.Id, Pair: "XRP/USDT", Type: models.OrderLimit, Side: models.SideSell,
		Price: decimal.RequireFromString("0.4"), Amount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "6000")
	env.expectBalance(t, u.Id, "BTC", models.BucketSpot, "0.25")

	report, err := env.ledger.SweepOrders(ctx)
	if err != nil {
		t.Fatalf("SweepOrders failed: %v", err)
	}
	if report.Checked != 4 || report.Filled != 2 || report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("Unexpected sweep report %+v", report)
	}

	// buy refund (28000-27000)*0.5 = 500, stop sell proceeds 27000*0.5 = 13500
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "20000")
	env.expectBalance(t, u.Id, "BTC", models.BucketSpot, "0.75")
	env.expectBalance(t, u.Id, "XRP", models.BucketSpot, "0")

	for _, tc := range []struct {
		id   string
		want models.OrderStatus
	}{
		{buy.Id, models.OrderFilled},
		{stopSell.Id, models.OrderFilled},
		{restingSell.Id, models.OrderOpen},
		{unpriced.Id, models.OrderOpen},
	} {
		o, err := env.ledger.Store().GetOrder(ctx, tc.id)
		if err != nil {
			t.Fatalf("GetOrder failed: %v", err)
		}
		if o.Status != tc.want {
			t.Errorf("Expected order %s %s, got %s", tc.id, tc.want, o.Status)
		}
	}

	filled, err := env.ledger.Store().GetOrder(ctx, buy.Id)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if !filled.FilledAmount.Equal(filled.Amount) {
		t.Errorf("Expected filled amount %s, got %s", filled.Amount, filled.FilledAmount)
	}

	// a filled order cannot be filled or canceled again
	if _, err := env.ledger.FillOrder(ctx, buy.Id, decimal.NewFromInt(1)); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState on refill, got %v", err)
	}
	if _, _, err := env.ledger.CancelOrder(ctx, u.Id, stopSell.Id); !errors.Is(err, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState on cancel after fill, got %v", err)
	}

	history, err := env.ledger.GetTransactionHistory(ctx, u.Id, models.TransactionTrade, 0, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("Expected 2 trade rows, got %d", len(history))
	}

	for _, c := range []string{"USDT", "BTC", "XRP"} {
		if err := env.ledger.ReconcileWallet(ctx, u.Id, c); err != nil {
			t.Errorf("Expected %s wallet to reconcile, got %v", c, err)
		}
	}
}

func TestSweepOrders_PricesOncePerPair(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	u := env.user(t, "alice")
	env.fund(t, u.Id, "USDT", "1000", models.BucketSpot)
	for i := 0; i < 3; i++ {
		placeOrder(t, env, u.Id, models.OrderLimit, models.SideBuy, "100", "1")
	}

	before := env.oracle.calls
	if _, err := env.ledger.SweepOrders(ctx); err != nil {
		t.Fatalf("SweepOrders failed: %v", err)
	}
	if got := env.oracle.calls - before; got != 1 {
		t.Errorf("Expected 1 oracle call for one pair, got %d", got)
	}
}
