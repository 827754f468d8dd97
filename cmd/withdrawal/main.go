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
	"strings"

	"exchange-ledger-go/internal/common"
	"exchange-ledger-go/internal/config"
	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type withdrawalRequest struct {
	email       string
	currency    string
	chain       string
	amount      decimal.Decimal
	destination string
	pin         string
}

func parseAndValidateFlags() (*withdrawalRequest, error) {
	emailFlag := flag.String("email", "", "User email (required)")
	assetFlag := flag.String("asset", "", "Currency and chain, e.g. USDT-TRC20 (required)")
	amountFlag := flag.String("amount", "", "Amount to withdraw, fee is charged on top (required)")
	destinationFlag := flag.String("destination", "", "Destination address (required)")
	pinFlag := flag.String("pin", "", "Withdrawal PIN, if the user has set one")
	flag.Parse()

	if *emailFlag == "" || *assetFlag == "" || *amountFlag == "" || *destinationFlag == "" {
		return nil, fmt.Errorf("all flags are required: --email, --asset, --amount, --destination")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	currency, chain, err := parseAsset(*assetFlag)
	if err != nil {
		return nil, err
	}

	return &withdrawalRequest{
		email:       *emailFlag,
		currency:    currency,
		chain:       chain,
		amount:      amount,
		destination: *destinationFlag,
		pin:         *pinFlag,
	}, nil
}

func parseAsset(assetStr string) (string, string, error) {
	parts := strings.SplitN(assetStr, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid asset format, expected CURRENCY-CHAIN (e.g. USDT-TRC20)")
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

func printWithdrawalSummary(user *models.User, req *withdrawalRequest, fee, spot decimal.Decimal) {
	common.PrintHeader("WITHDRAWAL REQUEST", common.DefaultWidth)
	common.PrintField("User", fmt.Sprintf("%s (%s)", user.Username, user.Email))
	common.PrintField("Asset", req.currency+" on "+req.chain)
	common.PrintField("Spot Balance", common.FormatAmount(spot, req.currency))
	common.PrintField("Amount", common.FormatAmount(req.amount, req.currency))
	common.PrintField("Fee", common.FormatAmount(fee, req.currency))
	common.PrintField("Total Reserved", common.FormatAmount(req.amount.Add(fee), req.currency))
	common.PrintField("Destination", req.destination)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()
}

func printFailure(result *models.OperationResult) {
	common.PrintHeader("WITHDRAWAL FAILED", common.DefaultWidth)
	common.PrintField("Code", result.Code)
	common.PrintField("Message", result.Message)
	common.PrintSeparator("=", common.DefaultWidth)
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	zap.L().Info("Starting withdrawal request",
		zap.String("email", req.email),
		zap.String("currency", req.currency),
		zap.String("chain", req.chain),
		zap.String("amount", req.amount.String()),
		zap.String("destination", req.destination))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()
	ctx = models.WithOrigin(ctx, &models.Origin{Source: "cli"})

	targetUser, err := services.DbService.GetUserByEmail(ctx, req.email)
	if err != nil {
		common.PrintHeader("WITHDRAWAL FAILED", common.DefaultWidth)
		fmt.Printf("Error: User not found for email %s\n", req.email)
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Fatal("User not found", zap.String("email", req.email), zap.Error(err))
	}

	spot, err := services.Api.GetBalance(ctx, targetUser.Id, req.currency, models.BucketSpot)
	if err != nil {
		zap.L().Fatal("Failed to read balance", zap.Error(err))
	}
	printWithdrawalSummary(targetUser, req, services.Ledger.WithdrawalFee(req.amount), spot)

	result, err := services.Api.RequestWithdrawal(ctx, ledger.WithdrawalRequest{
		UserId:   targetUser.Id,
		Currency: req.currency,
		Amount:   req.amount,
		Address:  req.destination,
		Chain:    req.chain,
		Pin:      req.pin,
	})
	if err != nil {
		zap.L().Fatal("Withdrawal request failed", zap.Error(err))
	}
	if !result.Success {
		printFailure(result)
		zap.L().Fatal("Withdrawal rejected", zap.String("code", result.Code), zap.String("message", result.Message))
	}

	fmt.Println("✅ " + result.Message)
	fmt.Printf("   Transaction ID: %s\n", result.Reference)
	fmt.Printf("   New spot balance: %s %s\n", result.NewBalance.String(), req.currency)
	fmt.Println("   The withdrawal is pending admin review: go run ./cmd/review")

	zap.L().Info("Withdrawal requested",
		zap.String("user_id", targetUser.Id),
		zap.String("transaction_id", result.Reference),
		zap.String("amount", req.amount.String()))
}
