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
	"strings"

	"github.com/shopspring/decimal"
)

// Currency describes a listed currency and the chains it can move on
type Currency struct {
	Symbol    string   `yaml:"symbol"`
	Name      string   `yaml:"name"`
	Precision int32    `yaml:"precision"`
	Chains    []string `yaml:"chains"`
	MockPrice string   `yaml:"mock_price"` // price in the stable currency used by the static oracle
}

// SupportsChain reports whether chain is listed for the currency (case-insensitive)
func (c Currency) SupportsChain(chain string) bool {
	for _, ch := range c.Chains {
		if strings.EqualFold(ch, chain) {
			return true
		}
	}
	return false
}

// StaticPrice parses MockPrice; ok is false when it is missing or not positive
func (c Currency) StaticPrice() (decimal.Decimal, bool) {
	if c.MockPrice == "" {
		return decimal.Zero, false
	}
	p, err := decimal.NewFromString(c.MockPrice)
	if err != nil || !p.IsPositive() {
		return decimal.Zero, false
	}
	return p, true
}

// CurrencyCatalog indexes listed currencies by upper-case symbol
type CurrencyCatalog map[string]Currency

func NewCurrencyCatalog(currencies []Currency) CurrencyCatalog {
	catalog := make(CurrencyCatalog, len(currencies))
	for _, c := range currencies {
		c.Symbol = strings.ToUpper(c.Symbol)
		catalog[c.Symbol] = c
	}
	return catalog
}

// Lookup returns the currency for symbol. An empty catalog accepts every symbol.
func (c CurrencyCatalog) Lookup(symbol string) (Currency, bool) {
	symbol = strings.ToUpper(symbol)
	if len(c) == 0 {
		return Currency{Symbol: symbol, Precision: 8}, true
	}
	cur, ok := c[symbol]
	return cur, ok
}
