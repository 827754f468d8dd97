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
	"time"

	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/models"

	"go.uber.org/zap"
)

func (s *LedgerService) RegisterUser(ctx context.Context, req ledger.RegisterRequest) (*models.OperationResult, error) {
	start := time.Now()
	user, err := s.ledger.RegisterUser(ctx, req)
	if err != nil {
		return failure("register_user", start, err, zap.String("email", req.Email)), nil
	}

	return success("register_user", start, &models.OperationResult{
		Message:   "User created",
		Reference: user.Id,
		Data:      user,
	}), nil
}

func (s *LedgerService) SetWithdrawalPin(ctx context.Context, userId, pin string) (*models.OperationResult, error) {
	start := time.Now()
	if err := s.ledger.SetWithdrawalPin(ctx, userId, pin); err != nil {
		return failure("set_pin", start, err, zap.String("user_id", userId)), nil
	}
	return success("set_pin", start, &models.OperationResult{Message: "Withdrawal PIN updated", Reference: userId}), nil
}

func (s *LedgerService) VerifyUser(ctx context.Context, adminId, userId string) (*models.OperationResult, error) {
	start := time.Now()
	user, err := s.ledger.VerifyUser(ctx, adminId, userId)
	if err != nil {
		return failure("verify_user", start, err,
			zap.String("admin_id", adminId),
			zap.String("user_id", userId)), nil
	}
	return success("verify_user", start, &models.OperationResult{
		Message:   "User verified",
		Reference: user.Id,
		Data:      user,
	}), nil
}
