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
	"errors"
	"strings"
	"testing"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

var validTrc20 = "T" + strings.Repeat("R", 33)

type fakePayout struct {
	requests []models.PayoutRequest
	err      error
	inFlight func(req models.PayoutRequest)
}

func (f *fakePayout) ExecutePayout(ctx context.Context, req models.PayoutRequest) (*models.Withdrawal, error) {
	f.requests = append(f.requests, req)
	if hook := f.inFlight; hook != nil {
		f.inFlight = nil
		hook(req)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Withdrawal{ActivityId: "activity-" + req.IdempotencyKey[:8]}, nil
}

func submitDeposit(t *testing.T, env *testEnv, userId, amount, txid string) *models.Transaction {
	t.Helper()
	txn, err := env.ledger.SubmitDeposit(context.Background(), DepositRequest{
		UserId:         userId,
		Currency:       "USDT",
		Amount:         decimal.RequireFromString(amount),
		Chain:          "TRC20",
		BlockchainTxid: txid,
	})
	if err != nil {
		t.Fatalf("SubmitDeposit failed: %v", err)
	}
	return txn
}

func TestApproveDeposit_CreditsSpotOnce(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	admin := env.admin(t)
	u := env.user(t, "alice")

	pending := submitDeposit(t, env, u.Id, "100", "chain-tx-1")
	if pending.Status != models.StatusPending {
		t.Fatalf("Expected pending deposit, got %s", pending.Status)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "0")

	approved, err := env.ledger.ApproveDeposit(ctx, admin.Id, pending.TransactionId, "looks good")
	if err != nil {
		t.Fatalf("ApproveDeposit failed: %v", err)
	}
	if approved.Status != models.StatusCompleted {
		t.Errorf("Expected completed, got %s", approved.Status)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "100")

	_, err = env.ledger.ApproveDeposit(ctx, admin.Id, pending.TransactionId, "")
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState on second approval, got %v", err)
	}
	_, err = env.ledger.RejectDeposit(ctx, admin.Id, pending.TransactionId, "")
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState on reject after approval, got %v", err)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "100")

	kinds := env.sink.kinds()
	if len(kinds) != 1 || kinds[0] != EventDepositApproved {
		t.Errorf("Expected one %s event, got %v", EventDepositApproved, kinds)
	}
}

func TestSubmitDeposit_Validation(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	u := env.user(t, "alice")
	submitDeposit(t, env, u.Id, "25", "dup-tx")

	tests := []struct {
		name    string
		req     DepositRequest
		wantErr error
	}{
		{"below minimum", DepositRequest{UserId: u.Id, Currency: "USDT", Amount: decimal.NewFromInt(9), Chain: "TRC20", BlockchainTxid: "a"}, store.ErrInvalidInput},
		{"missing txid", DepositRequest{UserId: u.Id, Currency: "USDT", Amount: decimal.NewFromInt(10), Chain: "TRC20"}, store.ErrInvalidInput},
		{"unsupported chain", DepositRequest{UserId: u.Id, Currency: "BTC", Amount: decimal.NewFromInt(10), Chain: "TRC20", BlockchainTxid: "b"}, store.ErrInvalidInput},
		{"unknown user", DepositRequest{UserId: "ghost", Currency: "USDT", Amount: decimal.NewFromInt(10), Chain: "TRC20", BlockchainTxid: "c"}, store.ErrNotFound},
		{"duplicate txid", DepositRequest{UserId: u.Id, Currency: "USDT", Amount: decimal.NewFromInt(10), Chain: "TRC20", BlockchainTxid: "dup-tx"}, store.ErrDuplicateTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ledger.SubmitDeposit(ctx, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReviewDeposit_RequiresAdmin(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	u := env.user(t, "alice")
	pending := submitDeposit(t, env, u.Id, "50", "tx-admin")

	_, err := env.ledger.ApproveDeposit(ctx, u.Id, pending.TransactionId, "")
	if !errors.Is(err, store.ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "0")
}

func TestRejectDeposit_NoBalanceChange(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	admin := env.admin(t)
	u := env.user(t, "alice")
	pending := submitDeposit(t, env, u.Id, "50", "tx-reject")

	rejected, err := env.ledger.RejectDeposit(ctx, admin.Id, pending.TransactionId, "no funds seen")
	if err != nil {
		t.Fatalf("RejectDeposit failed: %v", err)
	}
	if rejected.Status != models.StatusFailed {
		t.Errorf("Expected failed, got %s", rejected.Status)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "0")

	_, err = env.ledger.ApproveDeposit(ctx, admin.Id, "missing-id", "")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown transaction, got %v", err)
	}
}

func TestRejectWithdrawal_RefundsAmountAndFee(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	admin := env.admin(t)
	u := env.user(t, "alice")
	env.fund(t, u.Id, "USDT", "50", models.BucketSpot)
	if err := env.ledger.SetWithdrawalPin(ctx, u.Id, "1234"); err != nil {
		t.Fatalf("SetWithdrawalPin failed: %v", err)
	}

	pending, err := env.ledger.RequestWithdrawal(ctx, WithdrawalRequest{
		UserId:   u.Id,
		Currency: "USDT",
		Amount:   decimal.NewFromInt(20),
		Address:  validTrc20,
		Chain:    "TRC20",
		Pin:      "1234",
	})
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}
	if !pending.Fee.Equal(decimal.RequireFromString("1.4")) {
		t.Errorf("Expected fee 1.4, got %s", pending.Fee)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "28.6")

	// deposit review cannot touch a withdrawal
	if _, err := env.ledger.ApproveDeposit(ctx, admin.Id, pending.TransactionId, ""); !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState for wrong type, got %v", err)
	}

	rejected, err := env.ledger.RejectWithdrawal(ctx, admin.Id, pending.TransactionId, "bad address")
	if err != nil {
		t.Fatalf("RejectWithdrawal failed: %v", err)
	}
	if rejected.Status != models.StatusFailed {
		t.Errorf("Expected failed, got %s", rejected.Status)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "50")

	_, err = env.ledger.RejectWithdrawal(ctx, admin.Id, pending.TransactionId, "")
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState on second reject, got %v", err)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "50")

	if err := env.ledger.ReconcileWallet(ctx, u.Id, "USDT"); err != nil {
		t.Errorf("Expected wallet to reconcile, got %v", err)
	}
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	env, cleanup := setupLedger(t)
	defer cleanup()
	ctx := context.Background()

	withPin := env.user(t, "alice")
	noPin := env.user(t, "bob")
	env.fund(t, withPin.Id, "USDT", "100", models.BucketSpot)
	env.fund(t, noPin.Id, "USDT", "100", models.BucketSpot)
	if err := env.ledger.SetWithdrawalPin(ctx, withPin.Id, "987654"); err != nil {
		t.Fatalf("SetWithdrawalPin failed: %v", err)
	}

	base := WithdrawalRequest{UserId: withPin.Id, Currency: "USDT", Amount: decimal.NewFromInt(10), Address: validTrc20, Chain: "TRC20", Pin: "987654"}
	tests := []struct {
		name    string
		mutate  func(r *WithdrawalRequest)
		wantErr error
	}{
		{"bad trc20 address", func(r *WithdrawalRequest) { r.Address = "TSHORT" }, store.ErrInvalidInput},
		{"bad erc20 address", func(r *WithdrawalRequest) { r.Chain = "ERC20"; r.Address = "0x123" }, store.ErrInvalidInput},
		{"wrong pin", func(r *WithdrawalRequest) { r.Pin = "111111" }, store.ErrUnauthorized},
		{"pin not set", func(r *WithdrawalRequest) { r.UserId = noPin.Id }, store.ErrInvalidState},
		{"amount plus fee exceeds balance", func(r *WithdrawalRequest) { r.Amount = decimal.NewFromInt(94) }, store.ErrInsufficientFunds},
		{"zero amount", func(r *WithdrawalRequest) { r.Amount = decimal.Zero }, store.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := env.ledger.RequestWithdrawal(ctx, req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	env.expectBalance(t, withPin.Id, "USDT", models.BucketSpot, "100")
	env.expectBalance(t, noPin.Id, "USDT", models.BucketSpot, "100")
}

func TestApproveWithdrawal_Payout(t *testing.T) {
	payout := &fakePayout{}
	env, cleanup := setupLedger(t, WithPayoutExecutor(payout))
	defer cleanup()
	ctx := context.Background()

	admin := env.admin(t)
	u := env.user(t, "alice")
	env.fund(t, u.Id, "USDT", "100", models.BucketSpot)
	if err := env.ledger.SetWithdrawalPin(ctx, u.Id, "1234"); err != nil {
		t.Fatalf("SetWithdrawalPin failed: %v", err)
	}
	req := WithdrawalRequest{UserId: u.Id, Currency: "USDT", Amount: decimal.NewFromInt(10), Address: validTrc20, Chain: "TRC20", Pin: "1234"}

	first, err := env.ledger.RequestWithdrawal(ctx, req)
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}

	payout.err = errors.New("custody unavailable")
	if _, err := env.ledger.ApproveWithdrawal(ctx, admin.Id, first.TransactionId, "", ""); err == nil {
		t.Fatal("Expected approval to fail when payout fails")
	}
	still, err := env.ledger.Store().GetTransaction(ctx, first.TransactionId)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if still.Status != models.StatusPending {
		t.Errorf("Expected withdrawal to stay pending, got %s", still.Status)
	}

	payout.err = nil
	approved, err := env.ledger.ApproveWithdrawal(ctx, admin.Id, first.TransactionId, "", "sent")
	if err != nil {
		t.Fatalf("ApproveWithdrawal failed: %v", err)
	}
	if approved.Status != models.StatusCompleted {
		t.Errorf("Expected completed, got %s", approved.Status)
	}
	if approved.BlockchainTxid != "activity-"+first.TransactionId[:8] {
		t.Errorf("Expected payout activity id as txid, got %q", approved.BlockchainTxid)
	}
	if approved.ChainStatus != "submitted" {
		t.Errorf("Expected chain status submitted, got %q", approved.ChainStatus)
	}
	for _, r := range payout.requests {
		if r.IdempotencyKey != first.TransactionId {
			t.Errorf("Expected idempotency key %s, got %s", first.TransactionId, r.IdempotencyKey)
		}
		if r.Amount != "10" || r.Destination != validTrc20 {
			t.Errorf("Unexpected payout request %+v", r)
		}
	}

	// a manually supplied txid skips the payout
	second, err := env.ledger.RequestWithdrawal(ctx, req)
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}
	calls := len(payout.requests)
	approved, err = env.ledger.ApproveWithdrawal(ctx, admin.Id, second.TransactionId, "manual-hash", "")
	if err != nil {
		t.Fatalf("ApproveWithdrawal failed: %v", err)
	}
	if len(payout.requests) != calls {
		t.Errorf("Expected no payout call for a manual txid")
	}
	if approved.BlockchainTxid != "manual-hash" {
		t.Errorf("Expected manual-hash, got %q", approved.BlockchainTxid)
	}

	// 100 - 2 * (10 + 0.7)
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "78.6")
}

func TestApproveWithdrawal_NoRefundWhilePayoutInFlight(t *testing.T) {
	payout := &fakePayout{}
	env, cleanup := setupLedger(t, WithPayoutExecutor(payout))
	defer cleanup()
	ctx := context.Background()

	admin := env.admin(t)
	u := env.user(t, "alice")
	env.fund(t, u.Id, "USDT", "50", models.BucketSpot)
	if err := env.ledger.SetWithdrawalPin(ctx, u.Id, "1234"); err != nil {
		t.Fatalf("SetWithdrawalPin failed: %v", err)
	}
	req := WithdrawalRequest{UserId: u.Id, Currency: "USDT", Amount: decimal.NewFromInt(20), Address: validTrc20, Chain: "TRC20", Pin: "1234"}
	w, err := env.ledger.RequestWithdrawal(ctx, req)
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}

	var rejectErr, approveErr error
	payout.inFlight = func(r models.PayoutRequest) {
		_, rejectErr = env.ledger.RejectWithdrawal(ctx, admin.Id, r.IdempotencyKey, "changed my mind")
		_, approveErr = env.ledger.ApproveWithdrawal(ctx, admin.Id, r.IdempotencyKey, "", "")
	}

	approved, err := env.ledger.ApproveWithdrawal(ctx, admin.Id, w.TransactionId, "", "")
	if err != nil {
		t.Fatalf("ApproveWithdrawal failed: %v", err)
	}
	if !errors.Is(rejectErr, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState rejecting during payout, got %v", rejectErr)
	}
	if !errors.Is(approveErr, store.ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState approving during payout, got %v", approveErr)
	}
	if len(payout.requests) != 1 {
		t.Errorf("Expected 1 payout, got %d", len(payout.requests))
	}
	if approved.Status != models.StatusCompleted || approved.ChainStatus != models.ChainSubmitted {
		t.Errorf("Expected completed/submitted, got %s/%s", approved.Status, approved.ChainStatus)
	}

	// 50 - (20 + 1.4), nothing refunded
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "28.6")
	if err := env.ledger.ReconcileWallet(ctx, u.Id, "USDT"); err != nil {
		t.Errorf("Expected wallet to reconcile, got %v", err)
	}

	// a failed payout releases the row so it can still be rejected
	w, err = env.ledger.RequestWithdrawal(ctx, WithdrawalRequest{UserId: u.Id, Currency: "USDT", Amount: decimal.NewFromInt(10), Address: validTrc20, Chain: "TRC20", Pin: "1234"})
	if err != nil {
		t.Fatalf("RequestWithdrawal failed: %v", err)
	}
	payout.err = errors.New("custody unavailable")
	if _, err := env.ledger.ApproveWithdrawal(ctx, admin.Id, w.TransactionId, "", ""); err == nil {
		t.Fatal("Expected approval to fail when payout fails")
	}
	released, err := env.ledger.Store().GetTransaction(ctx, w.TransactionId)
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if released.ChainStatus != "" {
		t.Errorf("Expected payout claim to be released, got %q", released.ChainStatus)
	}
	if _, err := env.ledger.RejectWithdrawal(ctx, admin.Id, w.TransactionId, ""); err != nil {
		t.Fatalf("RejectWithdrawal failed: %v", err)
	}
	env.expectBalance(t, u.Id, "USDT", models.BucketSpot, "28.6")
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		chain   string
		address string
		valid   bool
	}{
		{"TRC20", validTrc20, true},
		{"trc20", validTrc20, true},
		{"TRC20", "T" + strings.Repeat("R", 32), false},
		{"ERC20", "0x" + strings.Repeat("aB", 20), true},
		{"BEP20", "0x" + strings.Repeat("0", 40), true},
		{"ERC20", "0x" + strings.Repeat("g", 40), false},
		{"BTC", strings.Repeat("b", 30), true},
		{"BTC", strings.Repeat("b", 29), false},
	}

	for _, tt := range tests {
		err := ValidateAddress(tt.chain, tt.address)
		if tt.valid && err != nil {
			t.Errorf("Expected %s %s to be valid, got %v", tt.chain, tt.address, err)
		}
		if !tt.valid && !errors.Is(err, store.ErrInvalidInput) {
			t.Errorf("Expected %s %s to be invalid, got %v", tt.chain, tt.address, err)
		}
	}
}
