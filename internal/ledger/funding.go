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
	"fmt"
	"regexp"
	"strings"

	"exchange-ledger-go/internal/models"
	"exchange-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const minGenericAddressLength = 30

var (
	trc20Address = regexp.MustCompile(`^T[A-Za-z0-9]{33}$`)
	erc20Address = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// ValidateAddress checks a withdrawal destination against the chain's address format
func ValidateAddress(chain, address string) error {
	address = strings.TrimSpace(address)
	switch strings.ToUpper(chain) {
	case "TRC20":
		if !trc20Address.MatchString(address) {
			return fmt.Errorf("%w: invalid TRC20 address", store.ErrInvalidInput)
		}
	case "ERC20", "BEP20":
		if !erc20Address.MatchString(address) {
			return fmt.Errorf("%w: invalid %s address", store.ErrInvalidInput, strings.ToUpper(chain))
		}
	default:
		if len(address) < minGenericAddressLength {
			return fmt.Errorf("%w: address is too short", store.ErrInvalidInput)
		}
	}
	return nil
}

type DepositRequest struct {
	UserId         string
	Currency       string
	Amount         decimal.Decimal
	Chain          string
	BlockchainTxid string
	Address        string
	Notes          string
}

// SubmitDeposit records a pending deposit. Funds are credited only on admin approval.
func (s *Service) SubmitDeposit(ctx context.Context, req DepositRequest) (*models.Transaction, error) {
	currency, err := s.currency(req.Currency)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("amount", req.Amount); err != nil {
		return nil, err
	}
	if req.Amount.LessThan(s.cfg.MinDepositAmount) {
		return nil, fmt.Errorf("%w: minimum deposit is %s %s", store.ErrInvalidInput, s.cfg.MinDepositAmount.String(), currency)
	}
	txid := strings.TrimSpace(req.BlockchainTxid)
	if txid == "" {
		return nil, fmt.Errorf("%w: blockchain transaction id is required", store.ErrInvalidInput)
	}
	if cur, _ := s.currencies.Lookup(currency); req.Chain != "" && len(cur.Chains) > 0 && !cur.SupportsChain(req.Chain) {
		return nil, fmt.Errorf("%w: %s is not available on %s", store.ErrInvalidInput, currency, req.Chain)
	}

	notes := req.Notes
	if notes == "" {
		notes = fmt.Sprintf("Deposit of %s %s via %s", req.Amount.String(), currency, req.Chain)
	}

	var txn *models.Transaction
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUserById(ctx, req.UserId); err != nil {
			return err
		}
		txn = &models.Transaction{
			UserId:         req.UserId,
			Type:           models.TransactionDeposit,
			Status:         models.StatusPending,
			Currency:       currency,
			Amount:         req.Amount,
			Fee:            decimal.Zero,
			FromWallet:     models.WalletExternal,
			ToWallet:       string(models.BucketSpot),
			Address:        req.Address,
			BlockchainTxid: txid,
			Chain:          req.Chain,
			Notes:          notes,
		}
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Deposit submitted",
		zap.String("transaction_id", txn.TransactionId),
		zap.String("user_id", req.UserId),
		zap.String("currency", currency),
		zap.String("amount", req.Amount.String()),
		zap.String("blockchain_txid", txid))
	return txn, nil
}

// ApproveDeposit completes a pending deposit and credits the user's spot wallet, then pays a
// referral reward if the deposit made the user eligible.
func (s *Service) ApproveDeposit(ctx context.Context, adminId, transactionId, adminNotes string) (*models.Transaction, error) {
	var txn *models.Transaction
	var reward *models.Transaction
	var deltas []models.BalanceDelta
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := requireAdmin(ctx, tx, adminId); err != nil {
			return err
		}
		var err error
		txn, err = tx.ReviewTransaction(ctx, store.ReviewParams{
			TransactionId: transactionId,
			Type:          models.TransactionDeposit,
			NewStatus:     models.StatusCompleted,
			AdminNotes:    adminNotes,
		})
		if err != nil {
			return err
		}
		if _, err := tx.Credit(ctx, txn.UserId, txn.Currency, txn.Amount, models.BucketSpot); err != nil {
			return err
		}
		if reward, err = s.applyReferralReward(ctx, tx, txn.UserId); err != nil {
			return err
		}
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Deposit approved",
		zap.String("transaction_id", txn.TransactionId),
		zap.String("user_id", txn.UserId),
		zap.String("currency", txn.Currency),
		zap.String("amount", txn.Amount.String()),
		zap.Bool("referral_paid", reward != nil))

	metadata := map[string]string{"admin_id": adminId}
	if reward != nil {
		metadata["referral_transaction_id"] = reward.TransactionId
	}
	s.publish(ctx, EventDepositApproved, txn.TransactionId, txn.UserId, deltas, metadata)
	return txn, nil
}

// RejectDeposit fails a pending deposit without touching any balance
func (s *Service) RejectDeposit(ctx context.Context, adminId, transactionId, adminNotes string) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := requireAdmin(ctx, tx, adminId); err != nil {
			return err
		}
		var err error
		txn, err = tx.ReviewTransaction(ctx, store.ReviewParams{
			TransactionId: transactionId,
			Type:          models.TransactionDeposit,
			NewStatus:     models.StatusFailed,
			AdminNotes:    adminNotes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("Deposit rejected", zap.String("transaction_id", txn.TransactionId), zap.String("user_id", txn.UserId))
	return txn, nil
}

type WithdrawalRequest struct {
	UserId   string
	Currency string
	Amount   decimal.Decimal
	Address  string
	Chain    string
	Pin      string
}

// WithdrawalFee returns the fee charged on top of a withdrawal amount
func (s *Service) WithdrawalFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.cfg.WithdrawalFeeRate).Round(s.cfg.ConversionPrecision)
}

// RequestWithdrawal reserves amount plus fee from spot and records a pending withdrawal
func (s *Service) RequestWithdrawal(ctx context.Context, req WithdrawalRequest) (*models.Transaction, error) {
	currency, err := s.currency(req.Currency)
	if err != nil {
		return nil, err
	}
	if err := requirePositive("amount", req.Amount); err != nil {
		return nil, err
	}
	if err := ValidateAddress(req.Chain, req.Address); err != nil {
		return nil, err
	}
	if cur, _ := s.currencies.Lookup(currency); req.Chain != "" && len(cur.Chains) > 0 && !cur.SupportsChain(req.Chain) {
		return nil, fmt.Errorf("%w: %s is not available on %s", store.ErrInvalidInput, currency, req.Chain)
	}

	fee := s.WithdrawalFee(req.Amount)
	total := req.Amount.Add(fee)

	var txn *models.Transaction
	var deltas []models.BalanceDelta
	err = s.store.WithinTx(ctx, func(tx store.Tx) error {
		user, err := tx.GetUserById(ctx, req.UserId)
		if err != nil {
			return err
		}
		if err := checkPin(user, req.Pin); err != nil {
			return err
		}
		if _, err := tx.Debit(ctx, user.Id, currency, total, models.BucketSpot); err != nil {
			return err
		}
		txn = &models.Transaction{
			UserId:     user.Id,
			Type:       models.TransactionWithdrawal,
			Status:     models.StatusPending,
			Currency:   currency,
			Amount:     req.Amount,
			Fee:        fee,
			FromWallet: string(models.BucketSpot),
			ToWallet:   models.WalletExternal,
			Address:    strings.TrimSpace(req.Address),
			Chain:      req.Chain,
			Notes:      fmt.Sprintf("Withdrawal of %s %s to %s", req.Amount.String(), currency, strings.TrimSpace(req.Address)),
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal requested",
		zap.String("transaction_id", txn.TransactionId),
		zap.String("user_id", req.UserId),
		zap.String("currency", currency),
		zap.String("amount", req.Amount.String()),
		zap.String("fee", fee.String()))

	s.publish(ctx, EventWithdrawalReserved, txn.TransactionId, req.UserId, deltas, map[string]string{"fee": fee.String()})
	return txn, nil
}

// ApproveWithdrawal completes a pending withdrawal. When a payout executor is configured and no
// blockchain txid is supplied, the row is first claimed so it cannot be rejected while the funds
// are sent. The payout is keyed by the transaction id so a retried approval never pays twice.
func (s *Service) ApproveWithdrawal(ctx context.Context, adminId, transactionId, blockchainTxid, adminNotes string) (*models.Transaction, error) {
	if blockchainTxid != "" || s.payout == nil {
		return s.completeWithdrawal(ctx, adminId, transactionId, blockchainTxid, "", adminNotes)
	}

	var pending *models.Transaction
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := requireAdmin(ctx, tx, adminId); err != nil {
			return err
		}
		var err error
		if pending, err = tx.GetTransaction(ctx, transactionId); err != nil {
			return err
		}
		if pending.Type != models.TransactionWithdrawal {
			return fmt.Errorf("%w: transaction %s is a %s, not a withdrawal", store.ErrInvalidState, transactionId, pending.Type)
		}
		if pending.Status != models.StatusPending {
			return fmt.Errorf("%w: withdrawal %s is already %s", store.ErrInvalidState, transactionId, pending.Status)
		}
		return tx.ClaimPayout(ctx, transactionId)
	})
	if err != nil {
		return nil, err
	}

	withdrawal, err := s.payout.ExecutePayout(ctx, models.PayoutRequest{
		IdempotencyKey: pending.TransactionId,
		UserId:         pending.UserId,
		Currency:       pending.Currency,
		Chain:          pending.Chain,
		Amount:         pending.Amount.String(),
		Destination:    pending.Address,
	})
	if err != nil {
		zap.L().Error("Payout failed, withdrawal stays pending",
			zap.String("transaction_id", transactionId),
			zap.Error(err))
		if rerr := s.store.WithinTx(ctx, func(tx store.Tx) error {
			return tx.ReleasePayout(ctx, transactionId)
		}); rerr != nil {
			zap.L().Error("Failed to release payout claim", zap.String("transaction_id", transactionId), zap.Error(rerr))
		}
		return nil, fmt.Errorf("payout failed: %w", err)
	}

	txn, err := s.completeWithdrawal(ctx, adminId, transactionId, withdrawal.ActivityId, models.ChainSubmitted, adminNotes)
	if err != nil {
		// the funds left custody; the row keeps its claim so it can only be completed
		zap.L().Error("Payout sent but withdrawal was not completed",
			zap.String("transaction_id", transactionId),
			zap.String("activity_id", withdrawal.ActivityId),
			zap.Error(err))
		return nil, err
	}
	return txn, nil
}

func (s *Service) completeWithdrawal(ctx context.Context, adminId, transactionId, blockchainTxid, chainStatus, adminNotes string) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := requireAdmin(ctx, tx, adminId); err != nil {
			return err
		}
		var err error
		txn, err = tx.ReviewTransaction(ctx, store.ReviewParams{
			TransactionId:  transactionId,
			Type:           models.TransactionWithdrawal,
			NewStatus:      models.StatusCompleted,
			BlockchainTxid: blockchainTxid,
			AdminNotes:     adminNotes,
		})
		if err != nil {
			return err
		}
		if chainStatus != "" {
			if err := tx.SetChainStatus(ctx, transactionId, chainStatus); err != nil {
				return err
			}
			txn.ChainStatus = chainStatus
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal approved",
		zap.String("transaction_id", txn.TransactionId),
		zap.String("user_id", txn.UserId),
		zap.String("blockchain_txid", txn.BlockchainTxid))
	return txn, nil
}

// RejectWithdrawal fails a pending withdrawal and returns amount plus fee to spot
func (s *Service) RejectWithdrawal(ctx context.Context, adminId, transactionId, adminNotes string) (*models.Transaction, error) {
	var txn *models.Transaction
	var deltas []models.BalanceDelta
	err := s.store.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := requireAdmin(ctx, tx, adminId); err != nil {
			return err
		}
		var err error
		txn, err = tx.ReviewTransaction(ctx, store.ReviewParams{
			TransactionId: transactionId,
			Type:          models.TransactionWithdrawal,
			NewStatus:     models.StatusFailed,
			AdminNotes:    adminNotes,
		})
		if err != nil {
			return err
		}
		refund := txn.Amount.Add(txn.Fee)
		if _, err := tx.Credit(ctx, txn.UserId, txn.Currency, refund, models.BucketSpot); err != nil {
			return err
		}
		deltas = tx.Deltas()
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal rejected and refunded",
		zap.String("transaction_id", txn.TransactionId),
		zap.String("user_id", txn.UserId),
		zap.String("refund", txn.Amount.Add(txn.Fee).String()))

	s.publish(ctx, EventWithdrawalRejected, txn.TransactionId, txn.UserId, deltas, map[string]string{"admin_id": adminId})
	return txn, nil
}
