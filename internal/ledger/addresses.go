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

package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"go.uber.org/zap"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// GetDepositAddress returns the user's address for currency/chain, creating it on first request.
// Addresses come from the custody provider when one is configured.
func (s *Service) GetDepositAddress(ctx context.Context, userId, currency, chain string) (*models.Address, error) {
	currency, err := s.currency(currency)
	if err != nil {
		return nil, err
	}
	chain = strings.ToUpper(strings.TrimSpace(chain))
	if chain == "" {
		return nil, fmt.Errorf("%w: chain is required", store.ErrInvalidInput)
	}
	if cur, _ := s.currencies.Lookup(currency); len(cur.Chains) > 0 && !cur.SupportsChain(chain) {
		return nil, fmt.Errorf("%w: %s is not available on %s", store.ErrInvalidInput, currency, chain)
	}

	existing, err := s.store.GetAddress(ctx, userId, currency, chain)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if _, err := s.store.GetUserById(ctx, userId); err != nil {
		return nil, err
	}

	params := store.StoreAddressParams{UserId: userId, Currency: currency, Chain: chain}
	if s.addresses != nil {
		addr, err := s.addresses.ProvisionAddress(ctx, userId, currency, chain)
		if err != nil {
			zap.L().Error("Failed to provision deposit address",
				zap.String("user_id", userId),
				zap.String("currency", currency),
				zap.String("chain", chain),
				zap.Error(err))
			return nil, fmt.Errorf("unable to provision deposit address: %w", err)
		}
		params.Address = addr.Address
		params.WalletId = addr.WalletId
		params.AccountIdentifier = addr.Id
	} else {
		params.Address = DeriveAddress(userId, currency, chain)
	}

	return s.store.StoreAddress(ctx, params)
}

// DeriveAddress builds a stable placeholder address in the chain's format for deployments
// without a custody provider
func DeriveAddress(userId, currency, chain string) string {
	sum := sha256.Sum256([]byte(userId + "|" + strings.ToUpper(currency) + "|" + strings.ToUpper(chain)))
	switch strings.ToUpper(chain) {
	case "TRC20":
		return "T" + base58(sum[:], 33)
	case "ERC20", "BEP20":
		return "0x" + hex.EncodeToString(sum[:20])
	default:
		return hex.EncodeToString(sum[:])[:42]
	}
}

func base58(b []byte, n int) string {
	num := new(big.Int).SetBytes(b)
	radix := big.NewInt(int64(len(base58Alphabet)))
	mod := new(big.Int)
	out := make([]byte, 0, n)
	for len(out) < n {
		num.DivMod(num, radix, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	return string(out)
}
