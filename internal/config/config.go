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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"exchange-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	var errs loadErrors

	database := models.DatabaseConfig{
		Path:            getEnvString("DATABASE_PATH", "ledger.db"),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 1),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 1),
		ConnMaxLifetime: errs.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnMaxIdleTime: errs.duration("DB_CONN_MAX_IDLE_TIME", 30*time.Second),
		PingTimeout:     errs.duration("DB_PING_TIMEOUT", 5*time.Second),
		BusyTimeout:     errs.duration("DB_BUSY_TIMEOUT", 5*time.Second),
	}

	ledger := models.LedgerConfig{
		StableCurrency:            strings.ToUpper(getEnvString("LEDGER_STABLE_CURRENCY", "USDT")),
		WithdrawalFeeRate:         errs.decimal("LEDGER_WITHDRAWAL_FEE_RATE", "0.07"),
		MinDepositAmount:          errs.decimal("LEDGER_MIN_DEPOSIT", "10"),
		ReferralRewardAmount:      errs.decimal("LEDGER_REFERRAL_REWARD", "80"),
		ReferralDepositThreshold:  errs.decimal("LEDGER_REFERRAL_THRESHOLD", "90"),
		ConversionPrecision:       int32(getEnvInt("LEDGER_CONVERSION_PRECISION", 8)),
		DefaultSignalExpiryWindow: errs.duration("LEDGER_SIGNAL_EXPIRY", 24*time.Hour),
	}

	cfg := &models.Config{
		Database: database,
		Ledger:   ledger,
		Sweep: models.SweepConfig{
			Enabled:              getEnvBool("SWEEP_ENABLED", true),
			OrderInterval:        errs.duration("SWEEP_ORDER_INTERVAL", time.Minute),
			SignalExpiryInterval: errs.duration("SWEEP_SIGNAL_EXPIRY_INTERVAL", 5*time.Minute),
		},
		Oracle: models.OracleConfig{
			Provider:       getEnvString("ORACLE_PROVIDER", "static"),
			BaseURL:        getEnvString("ORACLE_BASE_URL", "https://api.binance.com"),
			Timeout:        errs.duration("ORACLE_TIMEOUT", 5*time.Second),
			RequestsPerSec: getEnvFloat("ORACLE_REQUESTS_PER_SEC", 10),
			Burst:          getEnvInt("ORACLE_BURST", 20),
			FallbackStatic: getEnvBool("ORACLE_FALLBACK_STATIC", true),
			RedisAddr:      getEnvString("REDIS_ADDR", ""),
			RedisPassword:  getEnvString("REDIS_PASSWORD", ""),
			RedisDB:        getEnvInt("REDIS_DB", 0),
			CacheTTL:       errs.duration("ORACLE_CACHE_TTL", 10*time.Second),
		},
		HTTP: models.HTTPConfig{
			Addr:            getEnvString("HTTP_ADDR", ":8080"),
			JWTSecret:       getEnvString("JWT_SECRET", ""),
			AllowedOrigins:  getEnvSlice("HTTP_ALLOWED_ORIGINS", []string{"*"}),
			ShutdownTimeout: errs.duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Events: models.EventsConfig{
			KafkaBrokers: getEnvSlice("KAFKA_BROKERS", nil),
			KafkaTopic:   getEnvString("KAFKA_TOPIC", "ledger-events"),
		},
		Formance: models.FormanceConfig{
			StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
			ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
			ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
			LedgerName:   getEnvString("FORMANCE_LEDGER_NAME", "exchange-ledger"),
		},
		Prime: models.PrimeConfig{
			Enabled:     getEnvBool("PRIME_ENABLED", false),
			AccessKey:   getEnvString("PRIME_ACCESS_KEY", ""),
			Passphrase:  getEnvString("PRIME_PASSPHRASE", ""),
			SigningKey:  getEnvString("PRIME_SIGNING_KEY", ""),
			PortfolioId: getEnvString("PRIME_PORTFOLIO_ID", ""),
		},
		Listener: models.ListenerConfig{
			LookbackWindow:  errs.duration("LISTENER_LOOKBACK_WINDOW", 6*time.Hour),
			PollingInterval: errs.duration("LISTENER_POLLING_INTERVAL", 30*time.Second),
			CleanupInterval: errs.duration("LISTENER_CLEANUP_INTERVAL", 15*time.Minute),
		},
		CurrenciesFile: getEnvString("CURRENCIES_FILE", "currencies.yaml"),
	}

	if len(errs) > 0 {
		return nil, errs[0]
	}
	if cfg.Ledger.WithdrawalFeeRate.IsNegative() || cfg.Ledger.WithdrawalFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("LEDGER_WITHDRAWAL_FEE_RATE must be in [0, 1), got %s", cfg.Ledger.WithdrawalFeeRate)
	}
	return cfg, nil
}

// loadErrors collects parse failures so Load can build the whole config in one pass
type loadErrors []error

func (e *loadErrors) duration(key string, defaultValue time.Duration) time.Duration {
	d, err := getEnvDuration(key, defaultValue)
	if err != nil {
		*e = append(*e, err)
	}
	return d
}

func (e *loadErrors) decimal(key, defaultValue string) decimal.Decimal {
	d, err := getEnvDecimal(key, defaultValue)
	if err != nil {
		*e = append(*e, err)
	}
	return d
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnvString(key, defaultValue)
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
	}
	return d, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvSlice splits a comma separated value, dropping empty entries
func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
