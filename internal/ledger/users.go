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
	"regexp"
	"strings"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

type RegisterRequest struct {
	Username     string
	Email        string
	ReferralCode string
	IsAdmin      bool
	IsVerified   bool
}

// RegisterUser creates a user, resolving an optional referral code to the referrer
func (s *Service) RegisterUser(ctx context.Context, req RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a username and a valid email are required", store.ErrInvalidInput)
	}

	params := store.CreateUserParams{
		Username:   username,
		Email:      email,
		IsAdmin:    req.IsAdmin,
		IsVerified: req.IsVerified,
	}
	if code := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); code != "" {
		referrer, err := s.store.GetUserByReferralCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown referral code %s", store.ErrInvalidInput, code)
		}
		if err != nil {
			return nil, err
		}
		params.ReferredBy = referrer.Id
	}

	return s.store.CreateUser(ctx, params)
}

// SetWithdrawalPin stores a bcrypt hash of a 4 to 6 digit PIN
func (s *Service) SetWithdrawalPin(ctx context.Context, userId, pin string) error {
	if !pinPattern.MatchString(pin) {
		return fmt.Errorf("%w: PIN must be 4 to 6 digits", store.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}
	if err := s.store.SetWithdrawalPin(ctx, userId, string(hash)); err != nil {
		return err
	}
	zap.L().Info("Withdrawal PIN updated", zap.String("user_id", userId))
	return nil
}

// VerifyUser marks a user verified, which can make their referrer eligible for a reward. The flag
// and any reward commit together.
func (s *Service) VerifyUser(ctx context.Context, adminId, userId string) (*models.User, error) {
	var reward *models.Transaction
	var deltas []models.BalanceDelta
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := requireAdmin(ctx, tx, adminId); err != nil {
			return err
		}
		if err := tx.SetUserVerified(ctx, userId, true); err != nil {
			return err
		}
		var err error
		if reward, err = s.applyReferralReward(ctx, tx, userId); err != nil {
			return err
		}
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("User verified", zap.String("user_id", userId), zap.String("admin_id", adminId))
	if reward != nil {
		s.publish(ctx, EventReferralReward, reward.TransactionId, reward.UserId, deltas, nil)
	}

	return s.store.GetUserById(ctx, userId)
}

func checkPin(user *models.User, pin string) error {
	if user.WithdrawalPinHash == "" {
		return fmt.Errorf("%w: withdrawal PIN has not been set", store.ErrInvalidState)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.WithdrawalPinHash), []byte(pin)); err != nil {
		return fmt.Errorf("%w: incorrect withdrawal PIN", store.ErrUnauthorized)
	}
	return nil
}
