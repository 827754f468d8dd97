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
	"errors"
	"fmt"
	"time"

	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/metrics"
	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const internalErrorMessage = "internal error, please try again later"

// LedgerService is the operation boundary: every money-moving call returns an OperationResult
// and never an error for a business failure
type LedgerService struct {
	ledger *ledger.Service
}

func NewLedgerService(l *ledger.Service) *LedgerService {
	return &LedgerService{
		ledger: l,
	}
}

func (s *LedgerService) Ledger() *ledger.Service {
	return s.ledger
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if err := s.ledger.Store().Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// ErrorCode maps a ledger error to its result code
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrInsufficientFunds):
		return models.CodeInsufficientFunds
	case errors.Is(err, store.ErrRateUnavailable):
		return models.CodeRateUnavailable
	case errors.Is(err, store.ErrNotFound):
		return models.CodeNotFound
	case errors.Is(err, store.ErrInvalidState):
		return models.CodeInvalidState
	case errors.Is(err, store.ErrDuplicatePosition):
		return models.CodeDuplicatePosition
	case errors.Is(err, store.ErrDuplicateTransaction):
		return models.CodeDuplicate
	case errors.Is(err, store.ErrConcurrentModification):
		return models.CodeConflict
	case errors.Is(err, store.ErrInvalidInput):
		return models.CodeInvalidInput
	case errors.Is(err, store.ErrUnauthorized):
		return models.CodeUnauthorized
	default:
		return models.CodeInternal
	}
}

// failure builds the result for a failed operation. Known ledger errors carry their own message;
// anything else is logged and hidden behind a generic one.
func failure(operation string, start time.Time, err error, fields ...zap.Field) *models.OperationResult {
	code := ErrorCode(err)
	metrics.ObserveOperation(operation, code, start)

	message := err.Error()
	if code == models.CodeInternal {
		zap.L().Error("Ledger operation failed",
			append(fields, zap.String("operation", operation), zap.Error(err))...)
		message = internalErrorMessage
	} else {
		zap.L().Info("Ledger operation rejected",
			append(fields, zap.String("operation", operation), zap.String("code", code), zap.Error(err))...)
	}

	return &models.OperationResult{
		Success: false,
		Message: message,
		Code:    code,
	}
}

func success(operation string, start time.Time, result *models.OperationResult) *models.OperationResult {
	metrics.ObserveOperation(operation, "", start)
	result.Success = true
	return result
}

// balanceAfter reads a bucket balance for the result of a committed operation. A lookup failure
// is logged and reported as zero since the operation itself already succeeded.
func (s *LedgerService) balanceAfter(ctx context.Context, userId, currency string, bucket models.Bucket) decimal.Decimal {
	balance, err := s.ledger.GetBalance(ctx, userId, currency, bucket)
	if err != nil {
		zap.L().Warn("Balance lookup failed after operation",
			zap.String("user_id", userId),
			zap.String("currency", currency),
			zap.Error(err))
		return decimal.Zero
	}
	return balance
}
