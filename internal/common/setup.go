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
	"errors"
	"fmt"
	"log"
	"strings"

	"exchange-ledger-go/internal/api"
	"exchange-ledger-go/internal/database"
	"exchange-ledger-go/internal/events"
	"exchange-ledger-go/internal/formance"
	"exchange-ledger-go/internal/ledger"
	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/oracle"
	"exchange-ledger-go/internal/prime"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Config       *models.Config
	DbService    *database.Service
	Currencies   []models.Currency
	Catalog      models.CurrencyCatalog
	Oracle       oracle.PriceOracle
	Events       *events.Fanout
	PrimeService *prime.Service
	Ledger       *ledger.Service
	Api          *api.LedgerService

	closers []func() error
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database and wires the ledger with its oracle, event sinks and,
// when enabled, the custody provider
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	currencies, err := LoadCurrencies(cfg.CurrenciesFile)
	if err != nil {
		return nil, err
	}
	catalog := models.NewCurrencyCatalog(currencies)

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s := &Services{
		Config:     cfg,
		DbService:  dbService,
		Currencies: currencies,
		Catalog:    catalog,
	}

	priceOracle, closeOracle, err := oracle.New(cfg.Oracle, catalog, cfg.Ledger.StableCurrency)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Oracle = priceOracle
	s.closers = append(s.closers, closeOracle)
	zap.L().Info("Price oracle ready", zap.String("provider", cfg.Oracle.Provider))

	s.Events = events.NewFanout().Add("log", events.LogSink{})
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafkaSink := events.NewKafkaSink(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		s.Events.Add("kafka", kafkaSink)
		s.closers = append(s.closers, kafkaSink.Close)
		zap.L().Info("Publishing ledger events to Kafka",
			zap.Strings("brokers", cfg.Events.KafkaBrokers),
			zap.String("topic", cfg.Events.KafkaTopic))
	}
	if cfg.Formance.StackURL != "" {
		journal, err := formance.NewJournal(ctx, cfg.Formance, catalog)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to initialize formance journal: %w", err)
		}
		s.Events.Add("formance", journal)
		zap.L().Info("Mirroring ledger events to Formance", zap.String("ledger", cfg.Formance.LedgerName))
	}

	opts := []ledger.Option{
		ledger.WithCurrencies(catalog),
		ledger.WithEventSink(s.Events),
	}

	if cfg.Prime.Enabled {
		zap.L().Info("Loading Prime API credentials")
		creds, err := prime.LoadCredentials(cfg.Prime)
		if err != nil {
			s.Close()
			return nil, err
		}
		primeService, err := prime.NewService(creds, cfg.Prime.PortfolioId)
		if err != nil {
			s.Close()
			return nil, err
		}
		portfolioId, err := primeService.PortfolioId(ctx)
		if err != nil {
			s.Close()
			return nil, err
		}
		zap.L().Info("Using custody portfolio", zap.String("id", portfolioId))

		s.PrimeService = primeService
		opts = append(opts,
			ledger.WithPayoutExecutor(primeService),
			ledger.WithAddressProvisioner(primeService))
	}

	s.Ledger = ledger.NewService(dbService, priceOracle, cfg.Ledger, opts...)
	s.Api = api.NewLedgerService(s.Ledger)
	return s, nil
}

// InitializeDatabaseOnly initializes just the database service without the oracle or custody
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	var errs []error
	for i := len(cs.closers) - 1; i >= 0; i-- {
		if err := cs.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		zap.L().Warn("Failed to close services", zap.Error(err))
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
