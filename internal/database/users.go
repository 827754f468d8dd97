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
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	codeAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength         = 8
	createUserAttempts = 5
)

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying users")

	rows, err := s.db.QueryContext(ctx, queryGetUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			zap.L().Error("Failed to scan user row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, *user)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during user row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return getUser(ctx, s.db, queryGetUserById, userId)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return getUser(ctx, s.db, queryGetUserByEmail, email)
}

func (s *Service) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return getUser(ctx, s.db, queryGetUserByReferralCode, code)
}

func (t *sqlTx) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return getUser(ctx, t.tx, queryGetUserById, userId)
}

func (t *sqlTx) GetUserByUniqueId(ctx context.Context, uniqueId string) (*models.User, error) {
	return getUser(ctx, t.tx, queryGetUserByUniqueId, uniqueId)
}

// CreateUser inserts a user with freshly generated unique id and referral code
func (s *Service) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	if params.Username == "" || params.Email == "" {
		return nil, fmt.Errorf("%w: username and email are required", store.ErrInvalidInput)
	}
	zap.L().Info("Creating user", zap.String("username", params.Username), zap.String("email", params.Email))

	for attempt := 1; attempt <= createUserAttempts; attempt++ {
		now := s.now()
		user := &models.User{
			Id:                uuid.New().String(),
			Username:          params.Username,
			Email:             params.Email,
			UniqueId:          "U" + randomCode(codeLength),
			ReferralCode:      randomCode(codeLength),
			ReferredBy:        params.ReferredBy,
			IsAdmin:           params.IsAdmin,
			IsVerified:        params.IsVerified,
			WithdrawalPinHash: params.WithdrawalPinHash,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		_, err := s.db.ExecContext(ctx, queryInsertUser,
			user.Id, user.Username, user.Email, user.UniqueId, user.ReferralCode, user.ReferredBy,
			user.IsAdmin, user.IsVerified, user.WithdrawalPinHash, user.CreatedAt, user.UpdatedAt)
		if err == nil {
			zap.L().Info("User created successfully",
				zap.String("id", user.Id),
				zap.String("username", user.Username),
				zap.String("unique_id", user.UniqueId))
			return user, nil
		}
		if !isUniqueViolation(err) {
			zap.L().Error("Failed to insert user", zap.String("email", params.Email), zap.Error(err))
			return nil, fmt.Errorf("unable to insert user: %w", err)
		}

		// Username or email clash is final; a generated code clash is retried
		if existing, _ := s.GetUserByEmail(ctx, params.Email); existing != nil {
			return nil, fmt.Errorf("%w: user with email %s already exists", store.ErrDuplicateTransaction, params.Email)
		}
		if s.usernameTaken(ctx, params.Username) {
			return nil, fmt.Errorf("%w: username %s already exists", store.ErrDuplicateTransaction, params.Username)
		}
		zap.L().Warn("Generated user code collided, retrying", zap.Int("attempt", attempt))
	}

	return nil, fmt.Errorf("unable to allocate unique user codes after %d attempts", createUserAttempts)
}

func (s *Service) SetWithdrawalPin(ctx context.Context, userId, pinHash string) error {
	result, err := s.db.ExecContext(ctx, queryUpdateWithdrawalPin, pinHash, s.now(), userId)
	if err != nil {
		return fmt.Errorf("unable to update withdrawal pin: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: user %s", store.ErrNotFound, userId))
}

func (s *Service) SetUserVerified(ctx context.Context, userId string, verified bool) error {
	result, err := s.db.ExecContext(ctx, queryUpdateUserVerified, verified, s.now(), userId)
	if err != nil {
		return fmt.Errorf("unable to update user verification: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: user %s", store.ErrNotFound, userId))
}

func (t *sqlTx) SetUserVerified(ctx context.Context, userId string, verified bool) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateUserVerified, verified, t.now(), userId)
	if err != nil {
		return fmt.Errorf("unable to update user verification: %w", err)
	}
	return checkAffected(result, fmt.Errorf("%w: user %s", store.ErrNotFound, userId))
}

func (s *Service) usernameTaken(ctx context.Context, username string) bool {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE username = ?`, username).Scan(&n)
	return err == nil && n > 0
}

func getUser(ctx context.Context, q querier, query, key string) (*models.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, key)
		}
		zap.L().Error("Failed to query user", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("unable to query user: %w", err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.Id, &u.Username, &u.Email, &u.UniqueId, &u.ReferralCode, &u.ReferredBy,
		&u.IsAdmin, &u.IsVerified, &u.WithdrawalPinHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func randomCode(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		out[i] = codeAlphabet[idx.Int64()]
	}
	return string(out)
}
