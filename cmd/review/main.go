package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"exchange-ledger-go/internal/common"
	"exchange-ledger-go/internal/config"
	"exchange-ledger-go/internal/models"

	"go.uber.org/zap"
)

func printPending(records []models.TransactionRecord) {
	for i, r := range records {
		isLast := i == len(records)-1
		fmt.Printf("%s %s  %-10s %24s  fee %s\n",
			common.BoxPrefix(isLast), r.TransactionId, r.Type,
			common.FormatAmount(r.Amount, r.Currency), common.FormatAmount(r.Fee, r.Currency))
		detail := common.BoxDetailPrefix(isLast)
		if r.Address != "" {
			fmt.Printf("%s   %s → %s\n", detail, r.Chain, r.Address)
		}
		if r.BlockchainTxid != "" {
			fmt.Printf("%s   txid: %s\n", detail, common.ShortId(r.BlockchainTxid))
		}
		fmt.Printf("%s   created: %s\n", detail, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	adminFlag := flag.String("admin", "", "Email of the reviewing admin (required)")
	typeFlag := flag.String("type", "withdrawal", "Transaction type: deposit or withdrawal")
	actionFlag := flag.String("action", "list", "list, approve or reject")
	idFlag := flag.String("id", "", "Transaction id to approve or reject")
	txidFlag := flag.String("txid", "", "Blockchain txid for a withdrawal sent outside the custody provider")
	notesFlag := flag.String("notes", "", "Admin notes")
	flag.Parse()

	txType := models.TransactionType(strings.ToLower(*typeFlag))
	if txType != models.TransactionDeposit && txType != models.TransactionWithdrawal {
		logger.Fatal("Type must be deposit or withdrawal", zap.String("type", *typeFlag))
	}
	if *adminFlag == "" {
		logger.Fatal("The --admin flag is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	admins, err := common.InitializeUsers(ctx, services.DbService, common.UserFilter{Email: *adminFlag, AdminsOnly: true}, logger)
	if err != nil {
		logger.Fatal("Admin not found", zap.String("email", *adminFlag), zap.Error(err))
	}
	if len(admins) == 0 {
		logger.Fatal("User is not an admin", zap.String("email", *adminFlag))
	}
	admin := admins[0]
	ctx = models.WithOrigin(ctx, &models.Origin{ActorId: admin.Id, Source: "cli"})

	action := strings.ToLower(*actionFlag)
	if action == "list" {
		pending, err := services.Api.ListPending(ctx, txType)
		if err != nil {
			logger.Fatal("Failed to list pending transactions", zap.Error(err))
		}
		common.PrintHeader(fmt.Sprintf("PENDING %sS", strings.ToUpper(string(txType))), common.WideWidth)
		printPending(pending)
		common.PrintFooter(fmt.Sprintf("SUMMARY: %d pending", len(pending)), common.WideWidth)
		return
	}

	if *idFlag == "" {
		logger.Fatal("The --id flag is required to approve or reject")
	}

	var result *models.OperationResult
	switch {
	case action == "approve" && txType == models.TransactionDeposit:
		result, err = services.Api.ApproveDeposit(ctx, admin.Id, *idFlag, *notesFlag)
	case action == "reject" && txType == models.TransactionDeposit:
		result, err = services.Api.RejectDeposit(ctx, admin.Id, *idFlag, *notesFlag)
	case action == "approve":
		result, err = services.Api.ApproveWithdrawal(ctx, admin.Id, *idFlag, *txidFlag, *notesFlag)
	case action == "reject":
		result, err = services.Api.RejectWithdrawal(ctx, admin.Id, *idFlag, *notesFlag)
	default:
		logger.Fatal("Unknown action", zap.String("action", *actionFlag))
	}
	if err != nil {
		logger.Fatal("Review failed", zap.Error(err))
	}

	if !result.Success {
		common.PrintHeader("REVIEW FAILED", common.DefaultWidth)
		common.PrintField("Code", result.Code)
		common.PrintField("Message", result.Message)
		common.PrintSeparator("=", common.DefaultWidth)
		return
	}
	fmt.Println("✅ " + result.Message)
	logger.Info("Review completed",
		zap.String("transaction_id", *idFlag),
		zap.String("action", action),
		zap.String("type", string(txType)))
}
