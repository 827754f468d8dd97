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
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bucket is one of the three balance partitions of a wallet
type Bucket string

const (
	BucketSpot    Bucket = "spot"
	BucketFunding Bucket = "funding"
	BucketFutures Bucket = "futures"
)

// Buckets lists every wallet bucket in storage order
var Buckets = []Bucket{BucketSpot, BucketFunding, BucketFutures}

// ParseBucket validates a bucket name
func ParseBucket(s string) (Bucket, error) {
	switch Bucket(strings.ToLower(strings.TrimSpace(s))) {
	case BucketSpot:
		return BucketSpot, nil
	case BucketFunding:
		return BucketFunding, nil
	case BucketFutures:
		return BucketFutures, nil
	}
	return "", fmt.Errorf("unknown wallet bucket %q", s)
}

// Wallet tags used in transaction from/to columns besides the buckets
const (
	WalletExternal = "external"
	WalletSystem   = "system"
)

// User represents an exchange account holder
type User struct {
	Id                string    `db:"id" json:"id"`
	Username          string    `db:"username" json:"username"`
	Email             string    `db:"email" json:"email"`
	UniqueId          string    `db:"unique_id" json:"unique_id"`
	ReferralCode      string    `db:"referral_code" json:"referral_code"`
	ReferredBy        string    `db:"referred_by" json:"referred_by"`
	IsAdmin           bool      `db:"is_admin" json:"is_admin"`
	IsVerified        bool      `db:"is_verified" json:"is_verified"`
	WithdrawalPinHash string    `db:"withdrawal_pin_hash" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Address represents a user's deposit address for a currency and chain
type Address struct {
	Id                string    `db:"id" json:"id"`
	UserId            string    `db:"user_id" json:"user_id"`
	Currency          string    `db:"currency" json:"currency"`
	Chain             string    `db:"chain" json:"chain"`
	Address           string    `db:"address" json:"address"`
	WalletId          string    `db:"wallet_id" json:"wallet_id"`
	AccountIdentifier string    `db:"account_identifier" json:"account_identifier"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Wallet is the per-user, per-currency balance record (hot data)
type Wallet struct {
	Id        string          `db:"id" json:"id"`
	UserId    string          `db:"user_id" json:"user_id"`
	Currency  string          `db:"currency" json:"currency"`
	Spot      decimal.Decimal `db:"spot_balance" json:"spot_balance"`
	Funding   decimal.Decimal `db:"funding_balance" json:"funding_balance"`
	Futures   decimal.Decimal `db:"futures_balance" json:"futures_balance"`
	Version   int64           `db:"version" json:"version"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Balance returns the balance held in a bucket
func (w *Wallet) Balance(b Bucket) decimal.Decimal {
	switch b {
	case BucketSpot:
		return w.Spot
	case BucketFunding:
		return w.Funding
	case BucketFutures:
		return w.Futures
	}
	return decimal.Zero
}

// SetBalance overwrites a bucket balance
func (w *Wallet) SetBalance(b Bucket, v decimal.Decimal) {
	switch b {
	case BucketSpot:
		w.Spot = v
	case BucketFunding:
		w.Funding = v
	case BucketFutures:
		w.Futures = v
	}
}

// Total sums all three buckets
func (w *Wallet) Total() decimal.Decimal {
	return w.Spot.Add(w.Funding).Add(w.Futures)
}

type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionTransfer   TransactionType = "transfer"
	TransactionConvert    TransactionType = "convert"
	TransactionPay        TransactionType = "pay"
	TransactionTrade      TransactionType = "trade"
	TransactionReferral   TransactionType = "referral"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Custody progress of a withdrawal payout. A withdrawal in ChainSubmitting has a payout in flight
// and cannot be failed.
const (
	ChainSubmitting = "submitting"
	ChainSubmitted  = "submitted"
	ChainConfirmed  = "confirmed"
	ChainFailed     = "failed"
)

// Transaction is the audit record of a balance-affecting event (cold data)
type Transaction struct {
	Id             string            `db:"id" json:"id"`
	TransactionId  string            `db:"transaction_id" json:"transaction_id"`
	UserId         string            `db:"user_id" json:"user_id"`
	Type           TransactionType   `db:"transaction_type" json:"transaction_type"`
	Status         TransactionStatus `db:"status" json:"status"`
	Currency       string            `db:"currency" json:"currency"`
	Amount         decimal.Decimal   `db:"amount" json:"amount"`
	Fee            decimal.Decimal   `db:"fee" json:"fee"`
	FromWallet     string            `db:"from_wallet" json:"from_wallet"`
	ToWallet       string            `db:"to_wallet" json:"to_wallet"`
	Address        string            `db:"address" json:"address"`
	BlockchainTxid string            `db:"blockchain_txid" json:"blockchain_txid"`
	Chain          string            `db:"chain" json:"chain"`
	ChainStatus    string            `db:"chain_status" json:"chain_status"`
	Notes          string            `db:"notes" json:"notes"`
	AdminNotes     string            `db:"admin_notes" json:"admin_notes"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

type OrderType string

const (
	OrderLimit     OrderType = "limit"
	OrderStop      OrderType = "stop"
	OrderStopLimit OrderType = "stop-limit"
)

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderFilled   OrderStatus = "filled"
	OrderCanceled OrderStatus = "canceled"
)

// Order is a resting instruction to trade at a trigger price
type Order struct {
	Id           string          `db:"id" json:"id"`
	UserId       string          `db:"user_id" json:"user_id"`
	CurrencyPair string          `db:"currency_pair" json:"currency_pair"`
	Type         OrderType       `db:"order_type" json:"order_type"`
	Side         OrderSide       `db:"side" json:"side"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	FilledAmount decimal.Decimal `db:"filled_amount" json:"filled_amount"`
	Status       OrderStatus     `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Unfilled returns amount minus filled_amount
func (o *Order) Unfilled() decimal.Decimal {
	return o.Amount.Sub(o.FilledAmount)
}

type SignalResult string

const (
	ResultProfit SignalResult = "profit"
	ResultLoss   SignalResult = "loss"
)

// TradeSignal is an admin-authored directional call on a pair
type TradeSignal struct {
	Id               string              `db:"id" json:"id"`
	AdminId          string              `db:"admin_id" json:"admin_id"`
	CurrencyPair     string              `db:"currency_pair" json:"currency_pair"`
	SignalType       OrderSide           `db:"signal_type" json:"signal_type"`
	EntryPrice       decimal.Decimal     `db:"entry_price" json:"entry_price"`
	TargetPrice      decimal.Decimal     `db:"target_price" json:"target_price"`
	StopLoss         decimal.Decimal     `db:"stop_loss" json:"stop_loss"`
	Leverage         int                 `db:"leverage" json:"leverage"`
	Description      string              `db:"description" json:"description"`
	ExpiryTime       time.Time           `db:"expiry_time" json:"expiry_time"`
	IsActive         bool                `db:"is_active" json:"is_active"`
	Result           SignalResult        `db:"result" json:"result"`
	ProfitPercentage decimal.NullDecimal `db:"profit_percentage" json:"profit_percentage"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	ResolvedAt       *time.Time          `db:"resolved_at" json:"resolved_at"`
}

// Resolved reports whether the signal has a terminal result
func (s *TradeSignal) Resolved() bool {
	return s.Result != ""
}

type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// TradePosition is a user's stake against a signal
type TradePosition struct {
	Id                   string              `db:"id" json:"id"`
	UserId               string              `db:"user_id" json:"user_id"`
	SignalId             string              `db:"signal_id" json:"signal_id"`
	Amount               decimal.Decimal     `db:"amount" json:"amount"`
	EntryPrice           decimal.Decimal     `db:"entry_price" json:"entry_price"`
	Status               PositionStatus      `db:"status" json:"status"`
	ClosePrice           decimal.NullDecimal `db:"close_price" json:"close_price"`
	ProfitLoss           decimal.NullDecimal `db:"profit_loss" json:"profit_loss"`
	ProfitLossPercentage decimal.NullDecimal `db:"profit_loss_percentage" json:"profit_loss_percentage"`
	CreatedAt            time.Time           `db:"created_at" json:"created_at"`
	ClosedAt             *time.Time          `db:"closed_at" json:"closed_at"`
}

// ReferralReward records a paid referral bonus
type ReferralReward struct {
	Id            string          `db:"id" json:"id"`
	ReferrerId    string          `db:"referrer_id" json:"referrer_id"`
	ReferredId    string          `db:"referred_id" json:"referred_id"`
	Currency      string          `db:"currency" json:"currency"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	TransactionId string          `db:"transaction_id" json:"transaction_id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// JournalEntry is one bucket movement; the sum per account equals the bucket balance
type JournalEntry struct {
	Id            string          `db:"id" json:"id"`
	TransactionId string          `db:"transaction_id" json:"transaction_id"`
	AccountType   string          `db:"account_type" json:"account_type"`
	AccountId     string          `db:"account_id" json:"account_id"`
	DebitAmount   decimal.Decimal `db:"debit_amount" json:"debit_amount"`
	CreditAmount  decimal.Decimal `db:"credit_amount" json:"credit_amount"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// SplitPair splits "BASE/QUOTE" into its currencies
func SplitPair(pair string) (base, quote string, err error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(pair)), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid currency pair %q, expected BASE/QUOTE", pair)
	}
	return parts[0], parts[1], nil
}
