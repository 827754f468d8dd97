package prime

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"exchange-ledger-go/internal/models"

	"github.com/coinbase-samples/prime-sdk-go/client"
	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/coinbase-samples/prime-sdk-go/model"
	"github.com/coinbase-samples/prime-sdk-go/portfolios"
	"github.com/coinbase-samples/prime-sdk-go/transactions"
	"github.com/coinbase-samples/prime-sdk-go/wallets"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const walletTypeTrading = "TRADING"

// Service is the custody adapter. It provisions deposit addresses, sends approved
// withdrawals and lists wallet activity for the deposit watcher.
type Service struct {
	portfoliosSvc   portfolios.PortfoliosService
	walletsSvc      wallets.WalletsService
	transactionsSvc transactions.TransactionsService
	portfolioId     string

	mu      sync.Mutex
	wallets map[string]string // currency -> custody wallet id
}

func NewService(creds *credentials.Credentials, portfolioId string) (*Service, error) {
	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	restClient := client.NewRestClient(creds, httpClient)

	return &Service{
		portfoliosSvc:   portfolios.NewPortfoliosService(restClient),
		walletsSvc:      wallets.NewWalletsService(restClient),
		transactionsSvc: transactions.NewTransactionsService(restClient),
		portfolioId:     portfolioId,
		wallets:         make(map[string]string),
	}, nil
}

// LoadCredentials builds SDK credentials from the custody config
func LoadCredentials(cfg models.PrimeConfig) (*credentials.Credentials, error) {
	if cfg.AccessKey == "" || cfg.Passphrase == "" || cfg.SigningKey == "" {
		return nil, fmt.Errorf("missing required Prime API credentials: PRIME_ACCESS_KEY, PRIME_PASSPHRASE, PRIME_SIGNING_KEY")
	}
	return &credentials.Credentials{
		AccessKey:  cfg.AccessKey,
		Passphrase: cfg.Passphrase,
		SigningKey: cfg.SigningKey,
	}, nil
}

func createCustomHttpClient() (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

// PortfolioId returns the configured portfolio, resolving the default one on first use
func (s *Service) PortfolioId(ctx context.Context) (string, error) {
	s.mu.Lock()
	id := s.portfolioId
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}

	p, err := s.FindDefaultPortfolio(ctx)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.portfolioId = p.Id
	s.mu.Unlock()
	zap.L().Info("Using default portfolio", zap.String("name", p.Name), zap.String("id", p.Id))
	return p.Id, nil
}

func (s *Service) ListPortfolios(ctx context.Context) ([]models.CustodyPortfolio, error) {
	response, err := s.portfoliosSvc.ListPortfolios(ctx, &portfolios.ListPortfoliosRequest{})
	if err != nil {
		return nil, fmt.Errorf("unable to list portfolios: %w", err)
	}

	portfolioList := make([]models.CustodyPortfolio, len(response.Portfolios))
	for i, p := range response.Portfolios {
		portfolioList[i] = models.CustodyPortfolio{
			Id:   p.Id,
			Name: p.Name,
		}
	}

	return portfolioList, nil
}

func (s *Service) FindDefaultPortfolio(ctx context.Context) (*models.CustodyPortfolio, error) {
	portfolioList, err := s.ListPortfolios(ctx)
	if err != nil {
		return nil, err
	}

	for _, portfolio := range portfolioList {
		if portfolio.Name == "Default Portfolio" {
			return &portfolio, nil
		}
	}

	return nil, fmt.Errorf("default portfolio not found")
}

// ListWallets returns the portfolio's trading wallets, optionally restricted to symbols
func (s *Service) ListWallets(ctx context.Context, symbols []string) ([]models.CustodyWallet, error) {
	portfolioId, err := s.PortfolioId(ctx)
	if err != nil {
		return nil, err
	}

	response, err := s.walletsSvc.ListWallets(ctx, &wallets.ListWalletsRequest{
		PortfolioId: portfolioId,
		Type:        walletTypeTrading,
		Symbols:     symbols,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list wallets: %w", err)
	}

	walletList := make([]models.CustodyWallet, len(response.Wallets))
	for i, w := range response.Wallets {
		walletList[i] = models.CustodyWallet{
			Id:     w.Id,
			Name:   w.Name,
			Symbol: w.Symbol,
			Type:   w.Type,
		}
	}

	return walletList, nil
}

// walletFor returns the trading wallet holding currency
func (s *Service) walletFor(ctx context.Context, currency string) (string, error) {
	currency = strings.ToUpper(currency)
	s.mu.Lock()
	id, ok := s.wallets[currency]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	list, err := s.ListWallets(ctx, []string{currency})
	if err != nil {
		return "", err
	}
	for _, w := range list {
		if strings.EqualFold(w.Symbol, currency) {
			s.mu.Lock()
			s.wallets[currency] = w.Id
			s.mu.Unlock()
			return w.Id, nil
		}
	}
	return "", fmt.Errorf("no %s trading wallet in portfolio", currency)
}

// ProvisionAddress creates a deposit address for the user on the currency's custody wallet
func (s *Service) ProvisionAddress(ctx context.Context, userId, currency, chain string) (*models.DepositAddress, error) {
	network, err := NetworkFor(chain)
	if err != nil {
		return nil, err
	}
	portfolioId, err := s.PortfolioId(ctx)
	if err != nil {
		return nil, err
	}
	walletId, err := s.walletFor(ctx, currency)
	if err != nil {
		return nil, err
	}

	response, err := s.walletsSvc.CreateWalletAddress(ctx, &wallets.CreateWalletAddressRequest{
		PortfolioId: portfolioId,
		WalletId:    walletId,
		NetworkId:   network.Id,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create wallet address: %w", err)
	}

	zap.L().Info("Provisioned deposit address",
		zap.String("user_id", userId),
		zap.String("currency", currency),
		zap.String("network", network.Id),
		zap.String("wallet_id", walletId))

	return &models.DepositAddress{
		Id:       response.AccountIdentifier,
		WalletId: walletId,
		Address:  response.Address,
		Network:  network.Id,
		Asset:    strings.ToUpper(currency),
	}, nil
}

// ExecutePayout sends an approved withdrawal to its destination. The idempotency key makes a
// retried payout for the same withdrawal a no-op on the custody side.
func (s *Service) ExecutePayout(ctx context.Context, req models.PayoutRequest) (*models.Withdrawal, error) {
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("payout for user %s has no idempotency key", req.UserId)
	}
	network, err := NetworkFor(req.Chain)
	if err != nil {
		return nil, err
	}
	portfolioId, err := s.PortfolioId(ctx)
	if err != nil {
		return nil, err
	}
	walletId, err := s.walletFor(ctx, req.Currency)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Creating withdrawal via Prime API",
		zap.String("portfolio_id", portfolioId),
		zap.String("wallet_id", walletId),
		zap.String("currency", req.Currency),
		zap.String("network", network.Id),
		zap.String("amount", req.Amount),
		zap.String("destination", req.Destination),
		zap.String("idempotency_key", req.IdempotencyKey))

	response, err := s.transactionsSvc.CreateWalletWithdrawal(ctx, &transactions.CreateWalletWithdrawalRequest{
		PortfolioId:     portfolioId,
		SourceWalletId:  walletId,
		Amount:          req.Amount,
		IdempotencyKey:  req.IdempotencyKey,
		Symbol:          strings.ToUpper(req.Currency),
		DestinationType: "DESTINATION_BLOCKCHAIN",
		BlockchainAddress: &model.BlockchainAddress{
			Address: req.Destination,
			Network: &model.NetworkDetails{Id: network.Id, Type: network.Type},
		},
	})
	if err != nil {
		zap.L().Error("Failed to create withdrawal",
			zap.String("wallet_id", walletId),
			zap.String("amount", req.Amount),
			zap.String("currency", req.Currency),
			zap.Error(err))
		return nil, fmt.Errorf("unable to create withdrawal: %w", err)
	}

	zap.L().Info("Withdrawal created successfully",
		zap.String("activity_id", response.ActivityId),
		zap.String("idempotency_key", req.IdempotencyKey))

	return &models.Withdrawal{
		ActivityId:     response.ActivityId,
		Asset:          strings.ToUpper(req.Currency),
		Amount:         req.Amount,
		Destination:    req.Destination,
		IdempotencyKey: req.IdempotencyKey,
	}, nil
}

// ListWalletTransactions returns deposits and withdrawals on a wallet since startTime
func (s *Service) ListWalletTransactions(ctx context.Context, walletId string, startTime time.Time) ([]models.PrimeTransaction, error) {
	portfolioId, err := s.PortfolioId(ctx)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("Making Prime API request",
		zap.String("portfolio_id", portfolioId),
		zap.String("wallet_id", walletId),
		zap.Time("start_time", startTime))

	response, err := s.transactionsSvc.ListWalletTransactions(ctx, &transactions.ListWalletTransactionsRequest{
		PortfolioId: portfolioId,
		WalletId:    walletId,
		Start:       startTime,
		Types:       []string{"DEPOSIT", "WITHDRAWAL"},
		Pagination: &model.PaginationParams{
			Limit: 500,
		},
	})
	if err != nil {
		zap.L().Error("Failed to list wallet transactions",
			zap.String("wallet_id", walletId),
			zap.Error(err))
		return nil, fmt.Errorf("unable to list wallet transactions: %w", err)
	}

	out := make([]models.PrimeTransaction, 0, len(response.Transactions))
	for _, tx := range response.Transactions {
		pt := models.PrimeTransaction{
			Id:             tx.Id,
			WalletId:       tx.WalletId,
			Type:           tx.Type,
			Status:         tx.Status,
			Symbol:         tx.Symbol,
			Amount:         tx.Amount,
			CreatedAt:      tx.Created,
			TransactionId:  tx.TransactionId,
			Network:        tx.Network,
			IdempotencyKey: tx.IdempotencyKey,
		}
		if tx.TransferTo != nil {
			pt.Address = tx.TransferTo.Address
			pt.AccountIdentifier = tx.TransferTo.AccountIdentifier
		}
		out = append(out, pt)
	}

	zap.L().Debug("Prime API response received",
		zap.String("wallet_id", walletId),
		zap.Int("count", len(out)))
	return out, nil
}
