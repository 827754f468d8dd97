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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCurrencies(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "currencies.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write currencies file: %v", err)
	}
	return path
}

func TestLoadCurrencies(t *testing.T) {
	path := writeCurrencies(t, `
currencies:
  - symbol: usdt
    name: Tether
    precision: 6
    chains: [TRC20, ERC20]
    mock_price: "1"
  - symbol: BTC
    chains: [BTC]
    mock_price: "27000"
`)

	currencies, err := LoadCurrencies(path)
	if err != nil {
		t.Fatalf("LoadCurrencies failed: %v", err)
	}
	if len(currencies) != 2 {
		t.Fatalf("Expected 2 currencies, got %d", len(currencies))
	}
	if currencies[0].Symbol != "USDT" || currencies[0].Precision != 6 {
		t.Errorf("Unexpected first currency %+v", currencies[0])
	}
	if currencies[1].Precision != 8 {
		t.Errorf("Expected default precision 8, got %d", currencies[1].Precision)
	}
	if !currencies[0].SupportsChain("trc20") {
		t.Error("Expected USDT to support TRC20")
	}
	if got := strings.Join(CurrencySymbols(currencies), ","); got != "USDT,BTC" {
		t.Errorf("Expected USDT,BTC, got %s", got)
	}
}

func TestLoadCurrencies_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing symbol", "currencies:\n  - name: Nothing\n"},
		{"duplicate", "currencies:\n  - symbol: BTC\n  - symbol: btc\n"},
		{"bad precision", "currencies:\n  - symbol: BTC\n    precision: 40\n"},
		{"not yaml", "currencies: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCurrencies(writeCurrencies(t, tt.content)); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	if _, err := LoadCurrencies(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
