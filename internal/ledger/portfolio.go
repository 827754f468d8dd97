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

package ledger

import (
	"context"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// GetPortfolio values every wallet of the user in the stable currency. A currency the oracle
// cannot price is reported with Priced=false and left out of the total.
func (s *Service) GetPortfolio(ctx context.Context, userId string) (*models.Portfolio, error) {
	wallets, err := s.store.GetWallets(ctx, userId)
	if err != nil {
		return nil, err
	}

	portfolio := &models.Portfolio{
		ReferenceCurrency: s.cfg.StableCurrency,
		TotalValue:        decimal.Zero,
		Holdings:          make([]models.PortfolioHolding, 0, len(wallets)),
	}
	for _, w := range wallets {
		holding := models.PortfolioHolding{
			Currency: w.Currency,
			Total:    w.Total(),
			Price:    decimal.Zero,
			Value:    decimal.Zero,
		}
		if w.Currency == s.cfg.StableCurrency {
			holding.Price = decimal.NewFromInt(1)
			holding.Priced = true
		} else if p, err := s.price(ctx, w.Currency+"/"+s.cfg.StableCurrency); err == nil {
			holding.Price = p
			holding.Priced = true
		}
		if holding.Priced {
			holding.Value = holding.Total.Mul(holding.Price)
			portfolio.TotalValue = portfolio.TotalValue.Add(holding.Value)
		}
		portfolio.Holdings = append(portfolio.Holdings, holding)
	}
	return portfolio, nil
}

// GetTransactionHistory returns the user's transactions newest first
func (s *Service) GetTransactionHistory(ctx context.Context, userId string, txType models.TransactionType, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.GetTransactionHistory(ctx, store.TransactionFilter{
		UserId: userId,
		Type:   txType,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Service) ListPendingTransactions(ctx context.Context, txType models.TransactionType) ([]models.Transaction, error) {
	return s.store.ListPendingTransactions(ctx, txType)
}

// ReconcileWallet checks that each bucket of the wallet equals the sum of its journal entries
func (s *Service) ReconcileWallet(ctx context.Context, userId, currency string) error {
	currency, err := s.currency(currency)
	if err != nil {
		return err
	}
	return s.store.ReconcileWallet(ctx, userId, currency)
}
