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

// WalletBalance represents a user's bucket balances for one currency
type WalletBalance struct {
	Currency string          `json:"currency"`
	Spot     decimal.Decimal `json:"spot"`
	Funding  decimal.Decimal `json:"funding"`
	Futures  decimal.Decimal `json:"futures"`
	Total    decimal.Decimal `json:"total"`
}

// TransactionRecord represents a transaction in the user's history
type TransactionRecord struct {
	TransactionId  string          `json:"transaction_id"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	Fee            decimal.Decimal `json:"fee"`
	FromWallet     string          `json:"from_wallet,omitempty"`
	ToWallet       string          `json:"to_wallet,omitempty"`
	Address        string          `json:"address,omitempty"`
	BlockchainTxid string          `json:"blockchain_txid,omitempty"`
	Chain          string          `json:"chain,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// OperationResult is the outcome of a ledger operation at the service boundary.
// Failures carry a display message and a machine readable code.
type OperationResult struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Code       string          `json:"code,omitempty"`
	Reference  string          `json:"reference,omitempty"`
	Currency   string          `json:"currency,omitempty"`
	Amount     decimal.Decimal `json:"amount,omitempty"`
	NewBalance decimal.Decimal `json:"new_balance,omitempty"`
	Data       any             `json:"data,omitempty"`
}

// Result codes carried by failed operations
const (
	CodeInsufficientFunds = "insufficient_funds"
	CodeRateUnavailable   = "rate_unavailable"
	CodeNotFound          = "not_found"
	CodeInvalidState      = "invalid_state"
	CodeDuplicatePosition = "duplicate_position"
	CodeDuplicate         = "duplicate"
	CodeInvalidInput      = "invalid_input"
	CodeConflict          = "conflict"
	CodeUnauthorized      = "unauthorized"
	CodeInternal          = "internal_error"
)

// PortfolioHolding is one currency valued in the reference currency
type PortfolioHolding struct {
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
	Priced   bool            `json:"priced"`
}

// Portfolio is the valuation of all of a user's wallets
type Portfolio struct {
	ReferenceCurrency string             `json:"reference_currency"`
	TotalValue        decimal.Decimal    `json:"total_value"`
	Holdings          []PortfolioHolding `json:"holdings"`
}

// SweepReport summarises one pass over the open orders
type SweepReport struct {
	Checked int `json:"checked"`
	Filled  int `json:"filled"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
