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
	"testing"
	"time"

	"exchange-ledger-go/internal/database"
	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"go.uber.org/zap"
)

func TestInitializeUsers_Filters(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	for _, p := range []store.CreateUserParams{
		{Username: "alice", Email: "alice@example.com"},
		{Username: "bob", Email: "bob@example.com"},
		{Username: "root", Email: "root@example.com", IsAdmin: true},
	} {
		if _, err := db.CreateUser(ctx, p); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}
	logger := zap.NewNop()

	tests := []struct {
		name   string
		filter UserFilter
		want   int
	}{
		{"everyone", UserFilter{}, 3},
		{"by email", UserFilter{Email: "bob@example.com"}, 1},
		{"admins", UserFilter{AdminsOnly: true}, 1},
		{"admin by email", UserFilter{Email: "alice@example.com", AdminsOnly: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := InitializeUsers(ctx, db, tt.filter, logger)
			if err != nil {
				t.Fatalf("InitializeUsers failed: %v", err)
			}
			if len(users) != tt.want {
				t.Errorf("Expected %d users, got %d", tt.want, len(users))
			}
		})
	}

	if _, err := InitializeUsers(ctx, db, UserFilter{Email: "ghost@example.com"}, logger); err == nil {
		t.Error("Expected an error for an unknown email")
	}
}
