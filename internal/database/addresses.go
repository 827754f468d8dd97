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
	"strings"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StoreAddress saves a deposit address. Storing a second address for the same
// user, currency and chain returns the one already on file.
func (s *Service) StoreAddress(ctx context.Context, params store.StoreAddressParams) (*models.Address, error) {
	if params.UserId == "" || params.Currency == "" || params.Address == "" {
		return nil, fmt.Errorf("%w: user, currency and address are required", store.ErrInvalidInput)
	}

	zap.L().Info("Storing address",
		zap.String("user_id", params.UserId),
		zap.String("currency", params.Currency),
		zap.String("chain", params.Chain),
		zap.String("address", params.Address))

	addr := &models.Address{
		Id:                uuid.New().String(),
		UserId:            params.UserId,
		Currency:          strings.ToUpper(params.Currency),
		Chain:             params.Chain,
		Address:           params.Address,
		WalletId:          params.WalletId,
		AccountIdentifier: params.AccountIdentifier,
		CreatedAt:         s.now(),
	}

	_, err := s.db.ExecContext(ctx, queryInsertAddress, addr.Id, addr.UserId, addr.Currency, addr.Chain,
		addr.Address, addr.WalletId, addr.AccountIdentifier, addr.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			zap.L().Info("Address already stored, returning existing",
				zap.String("user_id", params.UserId),
				zap.String("currency", addr.Currency),
				zap.String("chain", params.Chain))
			return s.GetAddress(ctx, params.UserId, addr.Currency, params.Chain)
		}
		zap.L().Error("Failed to insert address",
			zap.String("user_id", params.UserId),
			zap.String("currency", params.Currency),
			zap.Error(err))
		return nil, fmt.Errorf("unable to insert address: %w", err)
	}

	zap.L().Info("Address stored successfully", zap.String("id", addr.Id))
	return addr, nil
}

func (s *Service) GetAddress(ctx context.Context, userId, currency, chain string) (*models.Address, error) {
	addr, err := scanAddress(s.db.QueryRowContext(ctx, queryGetAddress, userId, strings.ToUpper(currency), chain))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s/%s address for user %s", store.ErrNotFound, currency, chain, userId)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query address: %w", err)
	}
	return addr, nil
}

func (s *Service) GetAllUserAddresses(ctx context.Context, userId string) ([]models.Address, error) {
	zap.L().Debug("Querying all addresses for user", zap.String("user_id", userId))

	rows, err := s.db.QueryContext(ctx, queryGetAllUserAddresses, userId)
	if err != nil {
		zap.L().Error("Failed to query all addresses",
			zap.String("user_id", userId),
			zap.Error(err))
		return nil, fmt.Errorf("unable to query all addresses: %w", err)
	}
	defer closeRows(rows)

	var addresses []models.Address
	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			zap.L().Error("Failed to scan address row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan address row: %w", err)
		}
		addresses = append(addresses, *addr)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during address row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating address rows: %w", err)
	}

	zap.L().Debug("Retrieved all addresses",
		zap.String("user_id", userId),
		zap.Int("count", len(addresses)))
	return addresses, nil
}

// FindUserByAddress returns nil, nil, nil when no user owns the address
func (s *Service) FindUserByAddress(ctx context.Context, address string) (*models.User, *models.Address, error) {
	zap.L().Debug("Finding user by address", zap.String("address", address))

	var user models.User
	var addr models.Address
	err := s.db.QueryRowContext(ctx, queryFindUserByAddress, address).Scan(
		&user.Id, &user.Username, &user.Email, &user.UniqueId, &user.ReferralCode, &user.ReferredBy,
		&user.IsAdmin, &user.IsVerified, &user.WithdrawalPinHash, &user.CreatedAt, &user.UpdatedAt,
		&addr.Id, &addr.UserId, &addr.Currency, &addr.Chain, &addr.Address, &addr.WalletId,
		&addr.AccountIdentifier, &addr.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		zap.L().Debug("No user found for address", zap.String("address", address))
		return nil, nil, nil
	}

	if err != nil {
		zap.L().Error("Failed to query user by address", zap.String("address", address), zap.Error(err))
		return nil, nil, fmt.Errorf("unable to query user by address: %w", err)
	}

	zap.L().Debug("Found user by address",
		zap.String("address", address),
		zap.String("user_id", user.Id),
		zap.String("username", user.Username))
	return &user, &addr, nil
}

func scanAddress(row rowScanner) (*models.Address, error) {
	var a models.Address
	if err := row.Scan(&a.Id, &a.UserId, &a.Currency, &a.Chain, &a.Address, &a.WalletId,
		&a.AccountIdentifier, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
