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

// BalanceDelta is a signed movement of one wallet bucket
type BalanceDelta struct {
	UserId   string          `json:"user_id"`
	Currency string          `json:"currency"`
	Bucket   Bucket          `json:"bucket"`
	Amount   decimal.Decimal `json:"amount"`
}

// LedgerEvent describes a committed ledger operation and the bucket movements it made
type LedgerEvent struct {
	Id         string            `json:"id"`
	Kind       string            `json:"kind"`
	Reference  string            `json:"reference"`
	UserId     string            `json:"user_id"`
	Deltas     []BalanceDelta    `json:"deltas"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
