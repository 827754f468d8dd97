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

package api

import (
	"context"
	"fmt"
	"time"

	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *LedgerService) PlaceOrder(ctx context.Context, req ledger.PlaceOrderRequest) (*models.OperationResult, error) {
	start := time.Now()
	order, err := s.ledger.PlaceOrder(ctx, req)
	if err != nil {
		return failure("place_order", start, err,
			zap.String("user_id", req.UserId),
			zap.String("pair", req.Pair),
			zap.String("side", string(req.Side)),
			zap.String("price", req.Price.String()),
			zap.String("amount", req.Amount.String())), nil
	}

	return success("place_order", start, &models.OperationResult{
		Message: fmt.Sprintf("%s %s order for %s %s at %s placed",
			order.Type, order.Side, order.Amount.String(), order.CurrencyPair, order.Price.String()),
		Reference: order.Id,
		Amount:    order.Amount,
		Data:      order,
	}), nil
}

func (s *LedgerService) CancelOrder(ctx context.Context, userId, orderId string) (*models.OperationResult, error) {
	start := time.Now()
	order, refund, err := s.ledger.CancelOrder(ctx, userId, orderId)
	if err != nil {
		return failure("cancel_order", start, err,
			zap.String("user_id", userId),
			zap.String("order_id", orderId)), nil
	}

	return success("cancel_order", start, &models.OperationResult{
		Message:   fmt.Sprintf("Order canceled, %s returned", refund.String()),
		Reference: order.Id,
		Amount:    refund,
		Data:      order,
	}), nil
}

func (s *LedgerService) CreateSignal(ctx context.Context, adminId string, req ledger.CreateSignalRequest) (*models.OperationResult, error) {
	start := time.Now()
	signal, err := s.ledger.CreateSignal(ctx, adminId, req)
	if err != nil {
		return failure("create_signal", start, err,
			zap.String("admin_id", adminId),
			zap.String("pair", req.Pair)), nil
	}

	return success("create_signal", start, &models.OperationResult{
		Message:   fmt.Sprintf("%s signal on %s created", signal.SignalType, signal.CurrencyPair),
		Reference: signal.Id,
		Data:      signal,
	}), nil
}

func (s *LedgerService) DeactivateSignal(ctx context.Context, adminId, signalId string) (*models.OperationResult, error) {
	start := time.Now()
	if err := s.ledger.DeactivateSignal(ctx, adminId, signalId); err != nil {
		return failure("deactivate_signal", start, err,
			zap.String("admin_id", adminId),
			zap.String("signal_id", signalId)), nil
	}

	return success("deactivate_signal", start, &models.OperationResult{
		Message:   "Signal deactivated",
		Reference: signalId,
	}), nil
}

func (s *LedgerService) ResolveSignal(ctx context.Context, adminId, signalId string, result models.SignalResult, profitPct decimal.Decimal) (*models.OperationResult, error) {
	start := time.Now()
	resolved, err := s.ledger.ResolveSignal(ctx, adminId, signalId, result, profitPct)
	if err != nil {
		return failure("resolve_signal", start, err,
			zap.String("admin_id", adminId),
			zap.String("signal_id", signalId),
			zap.String("result", string(result))), nil
	}

	return success("resolve_signal", start, &models.OperationResult{
		Message:   fmt.Sprintf("Signal resolved as %s, %d positions settled", result, resolved.ClosedPositions),
		Reference: signalId,
		Amount:    resolved.TotalPaid,
		Data:      resolved.Signal,
	}), nil
}

func (s *LedgerService) FollowSignal(ctx context.Context, userId, signalId string, amount decimal.Decimal) (*models.OperationResult, error) {
	start := time.Now()
	position, err := s.ledger.FollowSignal(ctx, userId, signalId, amount)
	if err != nil {
		return failure("follow_signal", start, err,
			zap.String("user_id", userId),
			zap.String("signal_id", signalId),
			zap.String("amount", amount.String())), nil
	}

	return success("follow_signal", start, &models.OperationResult{
		Message:   fmt.Sprintf("Following signal with %s at entry %s", amount.String(), position.EntryPrice.String()),
		Reference: position.Id,
		Amount:    amount,
		Data:      position,
	}), nil
}

func (s *LedgerService) ClosePosition(ctx context.Context, userId, positionId string) (*models.OperationResult, error) {
	start := time.Now()
	position, err := s.ledger.ClosePosition(ctx, userId, positionId)
	if err != nil {
		return failure("close_position", start, err,
			zap.String("user_id", userId),
			zap.String("position_id", positionId)), nil
	}

	return success("close_position", start, &models.OperationResult{
		Message:   fmt.Sprintf("Position closed with P/L %s", position.ProfitLoss.Decimal.String()),
		Reference: position.Id,
		Amount:    position.Amount.Add(position.ProfitLoss.Decimal),
		Data:      position,
	}), nil
}
