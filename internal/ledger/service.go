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

// Package ledger implements the exchange's money-moving operations over a store.LedgerStore.
// Every operation runs in exactly one unit of work: all wallet adjustments, audit rows and
// status changes it makes are committed together or not at all.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/oracle"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventSink receives a description of every committed ledger operation
type EventSink interface {
	Publish(ctx context.Context, event models.LedgerEvent) error
}

// PayoutExecutor sends an approved withdrawal to the chain
type PayoutExecutor interface {
	ExecutePayout(ctx context.Context, req models.PayoutRequest) (*models.Withdrawal, error)
}

// AddressProvisioner creates a deposit address with the custody provider
type AddressProvisioner interface {
	ProvisionAddress(ctx context.Context, userId, currency, chain string) (*models.DepositAddress, error)
}

type Service struct {
	store      store.LedgerStore
	oracle     oracle.PriceOracle
	cfg        models.LedgerConfig
	currencies models.CurrencyCatalog
	sink       EventSink
	payout     PayoutExecutor
	addresses  AddressProvisioner
	now        func() time.Time
}

type Option func(*Service)

func WithEventSink(sink EventSink) Option {
	return func(s *Service) { s.sink = sink }
}

func WithPayoutExecutor(p PayoutExecutor) Option {
	return func(s *Service) { s.payout = p }
}

func WithAddressProvisioner(p AddressProvisioner) Option {
	return func(s *Service) { s.addresses = p }
}

func WithCurrencies(catalog models.CurrencyCatalog) Option {
	return func(s *Service) { s.currencies = catalog }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// DefaultConfig returns the platform defaults used when a LedgerConfig field is left zero
func DefaultConfig() models.LedgerConfig {
	return models.LedgerConfig{
		StableCurrency:            "USDT",
		WithdrawalFeeRate:         decimal.RequireFromString("0.07"),
		MinDepositAmount:          decimal.NewFromInt(10),
		ReferralRewardAmount:      decimal.NewFromInt(80),
		ReferralDepositThreshold:  decimal.NewFromInt(90),
		ConversionPrecision:       8,
		DefaultSignalExpiryWindow: 24 * time.Hour,
	}
}

func NewService(ledgerStore store.LedgerStore, priceOracle oracle.PriceOracle, cfg models.LedgerConfig, opts ...Option) *Service {
	defaults := DefaultConfig()
	if cfg.StableCurrency == "" {
		cfg.StableCurrency = defaults.StableCurrency
	}
	cfg.StableCurrency = strings.ToUpper(cfg.StableCurrency)
	if cfg.WithdrawalFeeRate.IsNegative() {
		cfg.WithdrawalFeeRate = defaults.WithdrawalFeeRate
	}
	if cfg.ConversionPrecision <= 0 {
		cfg.ConversionPrecision = defaults.ConversionPrecision
	}
	if cfg.DefaultSignalExpiryWindow <= 0 {
		cfg.DefaultSignalExpiryWindow = defaults.DefaultSignalExpiryWindow
	}

	s := &Service{
		store:  ledgerStore,
		oracle: priceOracle,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Config() models.LedgerConfig {
	return s.cfg
}

func (s *Service) Store() store.LedgerStore {
	return s.store
}

// price asks the oracle for a pair and maps every failure to ErrRateUnavailable
func (s *Service) price(ctx context.Context, pair string) (decimal.Decimal, error) {
	if s.oracle == nil {
		return decimal.Zero, fmt.Errorf("%w: no price oracle configured", store.ErrRateUnavailable)
	}
	p, err := s.oracle.GetCurrentPrice(ctx, pair)
	if err != nil {
		zap.L().Warn("Price lookup failed", zap.String("pair", pair), zap.Error(err))
		return decimal.Zero, fmt.Errorf("%w: %s: %v", store.ErrRateUnavailable, pair, err)
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s price %s is not positive", store.ErrRateUnavailable, pair, p.String())
	}
	return p, nil
}

// currency normalises and validates a currency symbol against the catalog
func (s *Service) currency(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("%w: currency is required", store.ErrInvalidInput)
	}
	if _, ok := s.currencies.Lookup(symbol); !ok {
		return "", fmt.Errorf("%w: currency %s is not supported", store.ErrInvalidInput, symbol)
	}
	return symbol, nil
}

func requirePositive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", store.ErrInvalidInput, field)
	}
	return nil
}

// requireAdmin loads the acting user inside the unit of work and checks the admin flag
func requireAdmin(ctx context.Context, tx store.Tx, adminId string) (*models.User, error) {
	admin, err := tx.GetUserById(ctx, adminId)
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin {
		return nil, fmt.Errorf("%w: user %s is not an admin", store.ErrUnauthorized, adminId)
	}
	return admin, nil
}
