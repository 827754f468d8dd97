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

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (t *sqlTx) InsertOrder(ctx context.Context, o *models.Order) error {
	if o.Id == "" {
		o.Id = uuid.New().String()
	}
	now := t.now()
	o.CreatedAt, o.UpdatedAt = now, now
	if o.Status == "" {
		o.Status = models.OrderOpen
	}

	_, err := t.tx.ExecContext(ctx, queryInsertOrder, o.Id, o.UserId, o.CurrencyPair, o.Type, o.Side,
		o.Price, o.Amount, o.FilledAmount, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	zap.L().Info("Order placed",
		zap.String("order_id", o.Id),
		zap.String("user_id", o.UserId),
		zap.String("pair", o.CurrencyPair),
		zap.String("type", string(o.Type)),
		zap.String("side", string(o.Side)),
		zap.String("price", o.Price.String()),
		zap.String("amount", o.Amount.String()))
	return nil
}

func (t *sqlTx) GetOrder(ctx context.Context, orderId string) (*models.Order, error) {
	return getOrder(ctx, t.tx, orderId)
}

// SetOrderStatus moves an open order to a terminal status; a non-open order yields ErrInvalidState
func (t *sqlTx) SetOrderStatus(ctx context.Context, orderId string, status models.OrderStatus, filledAmount decimal.Decimal) error {
	result, err := t.tx.ExecContext(ctx, querySetOrderStatus, status, filledAmount, t.now(), orderId)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: order %s is not open", store.ErrInvalidState, orderId))
}

func (s *Service) GetOrder(ctx context.Context, orderId string) (*models.Order, error) {
	return getOrder(ctx, s.db, orderId)
}

func (s *Service) ListOpenOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, queryListOpenOrders)
	if err != nil {
		return nil, fmt.Errorf("failed to list open orders: %w", err)
	}
	defer closeRows(rows)
	return collectOrders(rows)
}

func (s *Service) ListUserOrders(ctx context.Context, userId string, status models.OrderStatus) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, queryListUserOrders, userId, status, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list user orders: %w", err)
	}
	defer closeRows(rows)
	return collectOrders(rows)
}

func getOrder(ctx context.Context, q querier, orderId string) (*models.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, queryGetOrder, orderId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, orderId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func collectOrders(rows *sql.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.Id, &o.UserId, &o.CurrencyPair, &o.Type, &o.Side, &o.Price, &o.Amount,
		&o.FilledAmount, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
