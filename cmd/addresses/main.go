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

package main

import (
	"context"
	"flag"
	"fmt"

	"exchange-ledger-go/internal/api"
	"exchange-ledger-go/internal/common"
	"exchange-ledger-go/internal/config"
	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"go.uber.org/zap"
)

type reportStats struct {
	totalUsers         int
	totalAddresses     int
	usersWithAddresses int
	provisioned        int
}

func printUserHeader(user common.UserInfo, addressCount int) {
	fmt.Printf("\n┌─ User: %s (%s) %s\n", user.Username, user.Email, user.UniqueId)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Addresses: %d\n", addressCount)
	common.PrintBoxSeparator(98)
}

func printAddress(addr models.Address, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	label := fmt.Sprintf("%s-%s", addr.Currency, addr.Chain)
	fmt.Printf("%s %-30s → %s\n", symbol, label, addr.Address)

	if addr.AccountIdentifier != "" && addr.AccountIdentifier != addr.Address {
		fmt.Printf("%s   Account ID: %s\n", common.BoxDetailPrefix(isLast), addr.AccountIdentifier)
	}
}

// provisionMissing asks the ledger for an address on every listed currency and chain. Existing
// addresses are returned unchanged, so this only creates the missing ones.
func provisionMissing(ctx context.Context, svc *api.LedgerService, user common.UserInfo, currencies []models.Currency, existing int) int {
	created := 0
	for _, c := range currencies {
		for _, chain := range c.Chains {
			result, err := svc.GetDepositAddress(ctx, user.Id, c.Symbol, chain)
			if err != nil || !result.Success {
				zap.L().Warn("Failed to provision address",
					zap.String("user_id", user.Id),
					zap.String("currency", c.Symbol),
					zap.String("chain", chain),
					zap.Any("result", result),
					zap.Error(err))
				continue
			}
			created++
		}
	}
	return created - existing
}

func processUser(ctx context.Context, user common.UserInfo, dbService store.LedgerStore) (int, error) {
	addresses, err := dbService.GetAllUserAddresses(ctx, user.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to get addresses: %w", err)
	}
	if len(addresses) == 0 {
		return 0, nil
	}

	printUserHeader(user, len(addresses))
	for i, addr := range addresses {
		printAddress(addr, i == len(addresses)-1)
	}
	return len(addresses), nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	provisionFlag := flag.Bool("provision", false, "Create missing deposit addresses for every listed currency and chain")
	flag.Parse()

	logger.Info("Starting address query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	users, err := common.InitializeUsers(ctx, services.DbService, common.UserFilter{Email: *emailFlag}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	common.PrintHeader("DEPOSIT ADDRESSES REPORT", common.WideWidth)

	stats := reportStats{}
	for _, user := range users {
		stats.totalUsers++

		if *provisionFlag {
			existing, err := services.DbService.GetAllUserAddresses(ctx, user.Id)
			if err != nil {
				logger.Error("Failed to read addresses", zap.String("user_id", user.Id), zap.Error(err))
				continue
			}
			stats.provisioned += provisionMissing(ctx, services.Api, user, services.Currencies, len(existing))
		}

		count, err := processUser(ctx, user, services.DbService)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("username", user.Username),
				zap.Error(err))
			continue
		}
		if count > 0 {
			stats.usersWithAddresses++
			stats.totalAddresses += count
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d users with addresses (%d total addresses across %d users queried, %d provisioned)",
		stats.usersWithAddresses, stats.totalAddresses, stats.totalUsers, stats.provisioned)
	common.PrintFooter(summary, common.WideWidth)

	logger.Info("Address query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_addresses", stats.usersWithAddresses),
		zap.Int("total_addresses", stats.totalAddresses),
		zap.Int("provisioned", stats.provisioned))
}
