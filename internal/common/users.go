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

package common

import (
	"context"
	"fmt"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"go.uber.org/zap"
)

// UserInfo is the subset of a user shown by the command-line reports
type UserInfo struct {
	Id         string
	Username   string
	Email      string
	UniqueId   string
	IsAdmin    bool
	IsVerified bool
}

// UserFilter narrows the users a report covers. The zero value selects everyone.
type UserFilter struct {
	Email      string
	AdminsOnly bool
}

// InitializeUsers resolves the filter to a list of users. An email filter that matches no user
// is an error.
func InitializeUsers(ctx context.Context, ledgerStore store.LedgerStore, filter UserFilter, logger *zap.Logger) ([]UserInfo, error) {
	var candidates []models.User

	if filter.Email != "" {
		logger.Info("Looking up user by email", zap.String("email", filter.Email))
		user, err := ledgerStore.GetUserByEmail(ctx, filter.Email)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		candidates = append(candidates, *user)
	} else {
		all, err := ledgerStore.GetUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		candidates = all
	}

	users := make([]UserInfo, 0, len(candidates))
	for i := range candidates {
		if filter.AdminsOnly && !candidates[i].IsAdmin {
			continue
		}
		users = append(users, userInfo(&candidates[i]))
	}

	logger.Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func userInfo(u *models.User) UserInfo {
	return UserInfo{
		Id:         u.Id,
		Username:   u.Username,
		Email:      u.Email,
		UniqueId:   u.UniqueId,
		IsAdmin:    u.IsAdmin,
		IsVerified: u.IsVerified,
	}
}
