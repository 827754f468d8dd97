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
	"strings"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PlaceOrderRequest struct {
	UserId string
	Pair   string
	Type   models.OrderType
	Side   models.OrderSide
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// reservation returns the currency and amount held while an order is open:
// quote price*amount for a buy, base amount for a sell
func reservation(o *models.Order, base, quote string, amount decimal.Decimal) (string, decimal.Decimal) {
	if o.Side == models.SideBuy {
		return quote, o.Price.Mul(amount)
	}
	return base, amount
}

// PlaceOrder validates an order and reserves its funds from spot
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	base, quote, err := models.SplitPair(req.Pair)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	if _, err := s.currency(base); err != nil {
		return nil, err
	}
	if _, err := s.currency(quote); err != nil {
		return nil, err
	}
	orderType := models.OrderType(strings.ToLower(string(req.Type)))
	switch orderType {
	case models.OrderLimit, models.OrderStop, models.OrderStopLimit:
	default:
		return nil, fmt.Errorf("%w: unknown order type %q", store.ErrInvalidInput, req.Type)
	}
	side := models.OrderSide(strings.ToLower(string(req.Side)))
	if side != models.SideBuy && side != models.SideSell {
		return nil, fmt.Errorf("%w: unknown order side %q", store.ErrInvalidInput, req.Side)
	}
	if err := requirePositive("price", req.Price); err != nil {
		return nil, err
	}
	if err := requirePositive("amount", req.Amount); err != nil {
		return nil, err
	}

	order := &models.Order{
		UserId:       req.UserId,
		CurrencyPair: base + "/" + quote,
		Type:         orderType,
		Side:         side,
		Price:        req.Price,
		Amount:       req.Amount,
		FilledAmount: decimal.Zero,
		Status:       models.OrderOpen,
	}
	reserveCurrency, reserveAmount := reservation(order, base, quote, order.Amount)

	var deltas []models.BalanceDelta
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Debit(ctx, req.UserId, reserveCurrency, reserveAmount, models.BucketSpot); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, EventOrderPlaced, order.Id, order.UserId, deltas, map[string]string{
		"pair": order.CurrencyPair,
		"side": string(order.Side),
		"type": string(order.Type),
	})
	return order, nil
}

// CancelOrder cancels an open order owned by userId and returns the unfilled reservation
func (s *Service) CancelOrder(ctx context.Context, userId, orderId string) (*models.Order, decimal.Decimal, error) {
	var order *models.Order
	var refund decimal.Decimal
	var deltas []models.BalanceDelta
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, orderId)
		if err != nil {
			return err
		}
		if order.UserId != userId {
			return fmt.Errorf("%w: order %s", store.ErrNotFound, orderId)
		}
		if order.Status != models.OrderOpen {
			return fmt.Errorf("%w: order %s is %s", store.ErrInvalidState, orderId, order.Status)
		}
		base, quote, err := models.SplitPair(order.CurrencyPair)
		if err != nil {
			return err
		}

		if err := tx.SetOrderStatus(ctx, order.Id, models.OrderCanceled, order.FilledAmount); err != nil {
			return err
		}
		var currency string
		currency, refund = reservation(order, base, quote, order.Unfilled())
		if refund.IsPositive() {
			if _, err := tx.Credit(ctx, userId, currency, refund, models.BucketSpot); err != nil {
				return err
			}
		}
		order.Status = models.OrderCanceled
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}

	zap.L().Info("Order canceled",
		zap.String("order_id", order.Id),
		zap.String("user_id", userId),
		zap.String("refund", refund.String()))

	s.publish(ctx, EventOrderCanceled, order.Id, userId, deltas, nil)
	return order, refund, nil
}

// ShouldFill reports whether an order triggers at price. Stop-limit orders trigger like stops.
func ShouldFill(o *models.Order, price decimal.Decimal) bool {
	switch o.Type {
	case models.OrderLimit:
		if o.Side == models.SideBuy {
			return price.LessThanOrEqual(o.Price)
		}
		return price.GreaterThanOrEqual(o.Price)
	case models.OrderStop, models.OrderStopLimit:
		if o.Side == models.SideBuy {
			return price.GreaterThanOrEqual(o.Price)
		}
		return price.LessThanOrEqual(o.Price)
	}
	return false
}

// FillOrder fills the unfilled remainder of an open order at execPrice. A buy pays at most its
// reserved price: a fill below it refunds the difference in quote.
func (s *Service) FillOrder(ctx context.Context, orderId string, execPrice decimal.Decimal) (*models.Order, error) {
	if err := requirePositive("execution price", execPrice); err != nil {
		return nil, err
	}

	var order *models.Order
	var txn *models.Transaction
	var deltas []models.BalanceDelta
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, orderId)
		if err != nil {
			return err
		}
		if order.Status != models.OrderOpen {
			return fmt.Errorf("%w: order %s is %s", store.ErrInvalidState, orderId, order.Status)
		}
		base, quote, err := models.SplitPair(order.CurrencyPair)
		if err != nil {
			return err
		}
		qty := order.Unfilled()

		if err := tx.SetOrderStatus(ctx, order.Id, models.OrderFilled, order.Amount); err != nil {
			return err
		}

		if order.Side == models.SideBuy {
			if _, err := tx.Credit(ctx, order.UserId, base, qty, models.BucketSpot); err != nil {
				return err
			}
			if execPrice.LessThan(order.Price) {
				refund := order.Price.Sub(execPrice).Mul(qty)
				if _, err := tx.Credit(ctx, order.UserId, quote, refund, models.BucketSpot); err != nil {
					return err
				}
			}
			txn = &models.Transaction{
				UserId:     order.UserId,
				Type:       models.TransactionTrade,
				Status:     models.StatusCompleted,
				Currency:   base,
				Amount:     qty,
				Fee:        decimal.Zero,
				FromWallet: string(models.BucketSpot),
				ToWallet:   string(models.BucketSpot),
				Notes: fmt.Sprintf("Buy %s %s at %s %s per %s",
					qty.String(), base, decimal.Min(execPrice, order.Price).String(), quote, base),
			}
		} else {
			proceeds := execPrice.Mul(qty)
			if _, err := tx.Credit(ctx, order.UserId, quote, proceeds, models.BucketSpot); err != nil {
				return err
			}
			txn = &models.Transaction{
				UserId:     order.UserId,
				Type:       models.TransactionTrade,
				Status:     models.StatusCompleted,
				Currency:   quote,
				Amount:     proceeds,
				Fee:        decimal.Zero,
				FromWallet: string(models.BucketSpot),
				ToWallet:   string(models.BucketSpot),
				Notes: fmt.Sprintf("Sell %s %s at %s %s per %s",
					qty.String(), base, execPrice.String(), quote, base),
			}
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}

		order.Status = models.OrderFilled
		order.FilledAmount = order.Amount
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Order filled",
		zap.String("order_id", order.Id),
		zap.String("user_id", order.UserId),
		zap.String("pair", order.CurrencyPair),
		zap.String("side", string(order.Side)),
		zap.String("exec_price", execPrice.String()))

	s.publish(ctx, EventOrderFilled, order.Id, order.UserId, deltas, map[string]string{
		"transaction_id": txn.TransactionId,
		"exec_price":     execPrice.String(),
	})
	return order, nil
}

// SweepOrders checks every open order against the current price of its pair and fills the ones
// that trigger. Prices are fetched once per pair per pass. A failure on one order never stops the pass.
func (s *Service) SweepOrders(ctx context.Context) (*models.SweepReport, error) {
	orders, err := s.store.ListOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open orders: %w", err)
	}

	report := &models.SweepReport{}
	prices := make(map[string]decimal.Decimal)
	unavailable := make(map[string]bool)

	for i := range orders {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		order := &orders[i]
		report.Checked++

		if !order.Price.IsPositive() {
			report.Skipped++
			continue
		}

		pair := order.CurrencyPair
		if unavailable[pair] {
			report.Skipped++
			continue
		}
		price, ok := prices[pair]
		if !ok {
			price, err = s.price(ctx, pair)
			if err != nil {
				unavailable[pair] = true
				report.Skipped++
				continue
			}
			prices[pair] = price
		}

		if !ShouldFill(order, price) {
			continue
		}

		if _, err := s.FillOrder(ctx, order.Id, price); err != nil {
			if errors.Is(err, store.ErrInvalidState) {
				// canceled between listing and filling
				report.Skipped++
				continue
			}
			zap.L().Error("Failed to fill order", zap.String("order_id", order.Id), zap.Error(err))
			report.Failed++
			continue
		}
		report.Filled++
	}

	zap.L().Info("Order sweep completed",
		zap.Int("checked", report.Checked),
		zap.Int("filled", report.Filled),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (s *Service) ListOrders(ctx context.Context, userId string, status models.OrderStatus) ([]models.Order, error) {
	return s.store.ListUserOrders(ctx, userId, status)
}
