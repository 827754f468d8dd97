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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"exchange-ledger-go/internal/models"

	"gopkg.in/yaml.v2"
)

type CurrenciesConfig struct {
	Currencies []models.Currency `yaml:"currencies"`
}

func LoadCurrencies(currenciesFile string) ([]models.Currency, error) {
	var currenciesPath string
	if filepath.IsAbs(currenciesFile) {
		currenciesPath = currenciesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		currenciesPath = filepath.Join(wd, currenciesFile)
	}

	data, err := os.ReadFile(currenciesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", currenciesFile, err)
	}

	var config CurrenciesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", currenciesFile, err)
	}

	seen := make(map[string]bool, len(config.Currencies))
	for i, c := range config.Currencies {
		symbol := strings.ToUpper(strings.TrimSpace(c.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("currency at index %d missing symbol", i)
		}
		if seen[symbol] {
			return nil, fmt.Errorf("currency %s listed twice", symbol)
		}
		if c.Precision < 0 || c.Precision > 18 {
			return nil, fmt.Errorf("currency %s has invalid precision %d", symbol, c.Precision)
		}
		if c.Precision == 0 {
			config.Currencies[i].Precision = 8
		}
		config.Currencies[i].Symbol = symbol
		seen[symbol] = true
	}

	return config.Currencies, nil
}

// CurrencySymbols lists the symbols of currencies in file order
func CurrencySymbols(currencies []models.Currency) []string {
	symbols := make([]string, len(currencies))
	for i, c := range currencies {
		symbols[i] = c.Symbol
	}
	return symbols
}
