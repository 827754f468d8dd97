package main

import (
	"context"
	"flag"
	"fmt"

	"exchange-ledger-go/internal/common"
	"exchange-ledger-go/internal/config"
	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/models"

	"go.uber.org/zap"
)

// ensureAdmin creates the bootstrap admin unless a user with that email already exists
func ensureAdmin(ctx context.Context, services *common.Services, username, email string) (*models.User, error) {
	if existing, err := services.DbService.GetUserByEmail(ctx, email); err == nil {
		zap.L().Info("Admin already exists", zap.String("id", existing.Id), zap.String("email", existing.Email))
		return existing, nil
	}

	result, err := services.Api.RegisterUser(ctx, ledger.RegisterRequest{
		Username:   username,
		Email:      email,
		IsAdmin:    true,
		IsVerified: true,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("admin was not created: %s", result.Message)
	}
	user := result.Data.(*models.User)
	zap.L().Info("Created admin", zap.String("id", user.Id), zap.String("email", user.Email))
	return user, nil
}

// printCustody lists the custody portfolio and the trading wallets of every listed currency
func printCustody(ctx context.Context, services *common.Services) error {
	portfolios, err := services.PrimeService.ListPortfolios(ctx)
	if err != nil {
		return err
	}
	common.PrintHeader("CUSTODY PORTFOLIOS", common.DefaultWidth)
	for i, p := range portfolios {
		fmt.Printf("%s %s (%s)\n", common.BoxPrefix(i == len(portfolios)-1), p.Name, p.Id)
	}

	wallets, err := services.PrimeService.ListWallets(ctx, common.CurrencySymbols(services.Currencies))
	if err != nil {
		return err
	}
	common.PrintHeader("CUSTODY WALLETS", common.DefaultWidth)
	for i, w := range wallets {
		fmt.Printf("%s %-8s %s (%s)\n", common.BoxPrefix(i == len(wallets)-1), w.Symbol, w.Name, w.Id)
	}
	common.PrintSeparator("=", common.DefaultWidth)
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	initFlag := flag.Bool("init", false, "Create the schema and the bootstrap admin")
	adminEmailFlag := flag.String("admin-email", "admin@example.com", "Email of the bootstrap admin")
	adminNameFlag := flag.String("admin-username", "admin", "Username of the bootstrap admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	// Opening the database applies the schema
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	zap.L().Info("Database ready",
		zap.String("path", cfg.Database.Path),
		zap.Int("currencies", len(services.Currencies)))

	if *initFlag {
		if _, err := ensureAdmin(ctx, services, *adminNameFlag, *adminEmailFlag); err != nil {
			zap.L().Fatal("Failed to create admin", zap.Error(err))
		}
	}

	if services.PrimeService == nil {
		zap.L().Info("Custody is disabled, set PRIME_ENABLED=true to inspect wallets")
		return
	}
	if err := printCustody(ctx, services); err != nil {
		zap.L().Fatal("Failed to read custody wallets", zap.Error(err))
	}
}
