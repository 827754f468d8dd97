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
	"regexp"
	"strings"
	"time"

	"exchange-ledger-go/internal/common"
	"exchange-ledger-go/internal/config"
	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/server"

	"go.uber.org/zap"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type generationStats struct {
	successCount int
	failed       []string
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

func validateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(name) < 2 {
		return fmt.Errorf("username must be at least 2 characters")
	}
	return nil
}

// generateAddresses creates a deposit address for every listed currency and chain
func generateAddresses(ctx context.Context, services *common.Services, userId string) generationStats {
	stats := generationStats{failed: []string{}}

	for _, c := range services.Currencies {
		for _, chain := range c.Chains {
			label := fmt.Sprintf("%s-%s", c.Symbol, chain)
			result, err := services.Api.GetDepositAddress(ctx, userId, c.Symbol, chain)
			if err != nil || !result.Success {
				zap.L().Error("Failed to generate deposit address",
					zap.String("currency", c.Symbol),
					zap.String("chain", chain),
					zap.Any("result", result),
					zap.Error(err))
				fmt.Printf("✗ %s: failed to create address\n", label)
				stats.failed = append(stats.failed, label)
				continue
			}
			address := ""
			if addr, ok := result.Data.(*models.Address); ok {
				address = addr.Address
			}
			fmt.Printf("✓ %s: %s\n", label, address)
			stats.successCount++
		}
	}
	return stats
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	usernameFlag := flag.String("username", "", "Username (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	referralFlag := flag.String("referral", "", "Referral code of the inviting user (optional)")
	adminFlag := flag.Bool("admin", false, "Create an admin user")
	verifiedFlag := flag.Bool("verified", false, "Mark the user as verified")
	addressesFlag := flag.Bool("addresses", true, "Generate deposit addresses for every listed currency")
	tokenTTLFlag := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed API token")
	flag.Parse()

	if *usernameFlag == "" || *emailFlag == "" {
		zap.L().Fatal("Both flags are required: --username and --email")
	}
	if err := validateUsername(*usernameFlag); err != nil {
		zap.L().Fatal("Invalid username", zap.Error(err))
	}
	if err := validateEmail(*emailFlag); err != nil {
		zap.L().Fatal("Invalid email", zap.Error(err))
	}

	zap.L().Info("Starting user creation process",
		zap.String("username", *usernameFlag),
		zap.String("email", *emailFlag),
		zap.Bool("admin", *adminFlag))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	result, err := services.Api.RegisterUser(ctx, ledger.RegisterRequest{
		Username:     *usernameFlag,
		Email:        *emailFlag,
		ReferralCode: *referralFlag,
		IsAdmin:      *adminFlag,
		IsVerified:   *verifiedFlag,
	})
	if err != nil {
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}
	if !result.Success {
		zap.L().Fatal("User was not created", zap.String("code", result.Code), zap.String("message", result.Message))
	}
	user := result.Data.(*models.User)

	fmt.Println()
	common.PrintHeader("USER CREATED", common.DefaultWidth)
	common.PrintField("ID", user.Id)
	common.PrintField("Username", user.Username)
	common.PrintField("Email", user.Email)
	common.PrintField("Unique ID", user.UniqueId)
	common.PrintField("Referral code", user.ReferralCode)
	common.PrintField("Admin", user.IsAdmin)
	if cfg.HTTP.JWTSecret != "" {
		token, err := server.IssueToken(cfg.HTTP.JWTSecret, user.Id, user.IsAdmin, *tokenTTLFlag)
		if err != nil {
			zap.L().Error("Failed to issue token", zap.Error(err))
		} else {
			common.PrintField("API token", token)
		}
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("User created successfully", zap.String("id", user.Id))

	if !*addressesFlag || len(services.Currencies) == 0 {
		return
	}

	stats := generateAddresses(ctx, services, user.Id)

	fmt.Println()
	common.PrintHeader("ADDRESS GENERATION SUMMARY", common.DefaultWidth)
	common.PrintField("Successful", stats.successCount)
	common.PrintField("Failed", len(stats.failed))
	if len(stats.failed) > 0 {
		common.PrintField("Failed chains", strings.Join(stats.failed, ", "))
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	if len(stats.failed) > 0 {
		zap.L().Warn("User created but some addresses failed to generate",
			zap.String("user_id", user.Id),
			zap.Int("successful", stats.successCount),
			zap.Strings("failed", stats.failed))
		fmt.Println("You can retry with: go run ./cmd/addresses --provision --email " + user.Email)
	}
}
