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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database       DatabaseConfig
	Ledger         LedgerConfig
	Sweep          SweepConfig
	Oracle         OracleConfig
	HTTP           HTTPConfig
	Events         EventsConfig
	Formance       FormanceConfig
	Prime          PrimeConfig
	Listener       ListenerConfig
	CurrenciesFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// LedgerConfig holds fee and limit settings for money movement
type LedgerConfig struct {
	StableCurrency            string
	WithdrawalFeeRate         decimal.Decimal
	MinDepositAmount          decimal.Decimal
	ReferralRewardAmount      decimal.Decimal
	ReferralDepositThreshold  decimal.Decimal
	ConversionPrecision       int32
	DefaultSignalExpiryWindow time.Duration
}

// SweepConfig holds order sweep scheduling settings
type SweepConfig struct {
	Enabled              bool
	OrderInterval        time.Duration
	SignalExpiryInterval time.Duration
}

// OracleConfig holds price oracle settings
type OracleConfig struct {
	Provider       string // "binance" or "static"
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	FallbackStatic bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	CacheTTL       time.Duration
}

// HTTPConfig holds API server settings
type HTTPConfig struct {
	Addr            string
	JWTSecret       string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// EventsConfig holds ledger event stream settings
type EventsConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
}

// FormanceConfig holds journal mirror settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// PrimeConfig holds custody settings
type PrimeConfig struct {
	Enabled     bool
	AccessKey   string
	Passphrase  string
	SigningKey  string
	PortfolioId string
}

// ListenerConfig holds deposit watcher settings
type ListenerConfig struct {
	LookbackWindow  time.Duration
	PollingInterval time.Duration
	CleanupInterval time.Duration
}
