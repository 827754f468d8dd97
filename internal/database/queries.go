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

package database

const (
	// User queries
	userColumns = `id, username, email, unique_id, referral_code, referred_by, is_admin, is_verified,
		withdrawal_pin_hash, created_at, updated_at`

	queryInsertUser = `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetUsers = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at`

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ?`

	queryGetUserByEmail = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = ?`

	queryGetUserByUniqueId = `
		SELECT ` + userColumns + `
		FROM users
		WHERE unique_id = ?`

	queryGetUserByReferralCode = `
		SELECT ` + userColumns + `
		FROM users
		WHERE referral_code = ?`

	queryUpdateWithdrawalPin = `
		UPDATE users SET withdrawal_pin_hash = ?, updated_at = ? WHERE id = ?`

	queryUpdateUserVerified = `
		UPDATE users SET is_verified = ?, updated_at = ? WHERE id = ?`

	// Address queries
	addressColumns = `id, user_id, currency, chain, address, wallet_id, account_identifier, created_at`

	queryInsertAddress = `
		INSERT INTO addresses (` + addressColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetAddress = `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = ? AND currency = ? AND chain = ?`

	queryGetAllUserAddresses = `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = ?
		ORDER BY currency, created_at DESC`

	queryFindUserByAddress = `
		SELECT u.id, u.username, u.email, u.unique_id, u.referral_code, u.referred_by, u.is_admin,
		       u.is_verified, u.withdrawal_pin_hash, u.created_at, u.updated_at,
		       a.id, a.user_id, a.currency, a.chain, a.address, a.wallet_id, a.account_identifier, a.created_at
		FROM users u
		JOIN addresses a ON u.id = a.user_id
		WHERE LOWER(a.address) = LOWER(?)`

	// Wallet queries
	walletColumns = `id, user_id, currency, spot_balance, funding_balance, futures_balance, version,
		created_at, updated_at`

	queryGetWallet = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = ? AND currency = ?`

	queryGetWallets = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = ?
		ORDER BY currency`

	queryInsertWallet = `
		INSERT INTO wallets (` + walletColumns + `)
		VALUES (?, ?, ?, '0', '0', '0', 1, ?, ?)`

	queryUpdateWallet = `
		UPDATE wallets
		SET spot_balance = ?, funding_balance = ?, futures_balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetJournalForAccount = `
		SELECT debit_amount, credit_amount
		FROM journal_entries
		WHERE account_type = ? AND account_id = ?`

	// Transaction queries
	transactionColumns = `id, transaction_id, user_id, transaction_type, status, currency, amount, fee,
		from_wallet, to_wallet, address, blockchain_txid, chain, chain_status, notes, admin_notes,
		created_at, updated_at`

	queryInsertTransaction = `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransaction = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE transaction_id = ?`

	queryGetTransactionByBlockchainTxid = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE blockchain_txid = ?
		LIMIT 1`

	queryGetTransactionHistory = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = ?
		  AND (? = '' OR currency = ?)
		  AND (? = '' OR transaction_type = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryListPendingTransactions = `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = 'pending' AND (? = '' OR transaction_type = ?)
		ORDER BY created_at`

	queryReviewTransaction = `
		UPDATE transactions
		SET status = ?,
		    blockchain_txid = CASE WHEN ? = '' THEN blockchain_txid ELSE ? END,
		    admin_notes = ?,
		    updated_at = ?
		WHERE transaction_id = ? AND status = 'pending'
		  AND NOT (? = 'failed' AND chain_status = 'submitting')`

	queryClaimPayout = `
		UPDATE transactions SET chain_status = 'submitting', updated_at = ?
		WHERE transaction_id = ? AND transaction_type = 'withdrawal' AND status = 'pending' AND chain_status = ''`

	queryReleasePayout = `
		UPDATE transactions SET chain_status = '', updated_at = ?
		WHERE transaction_id = ? AND status = 'pending' AND chain_status = 'submitting'`

	querySetChainStatus = `
		UPDATE transactions SET chain_status = ?, updated_at = ? WHERE transaction_id = ?`

	querySumCompletedDeposits = `
		SELECT amount
		FROM transactions
		WHERE user_id = ? AND currency = ? AND transaction_type = 'deposit' AND status = 'completed'`

	// Order queries
	orderColumns = `id, user_id, currency_pair, order_type, side, price, amount, filled_amount, status,
		created_at, updated_at`

	queryInsertOrder = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetOrder = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = ?`

	queryListOpenOrders = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'open'
		ORDER BY created_at`

	queryListUserOrders = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = ? AND (? = '' OR status = ?)
		ORDER BY created_at DESC`

	querySetOrderStatus = `
		UPDATE orders
		SET status = ?, filled_amount = ?, updated_at = ?
		WHERE id = ? AND status = 'open'`

	// Signal queries
	signalColumns = `id, admin_id, currency_pair, signal_type, entry_price, target_price, stop_loss, leverage,
		description, expiry_time, is_active, result, profit_percentage, created_at, resolved_at`

	queryInsertSignal = `
		INSERT INTO trade_signals (` + signalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetSignal = `
		SELECT ` + signalColumns + `
		FROM trade_signals
		WHERE id = ?`

	queryListSignals = `
		SELECT ` + signalColumns + `
		FROM trade_signals
		WHERE (? = 0 OR is_active = 1)
		ORDER BY created_at DESC`

	queryListExpiredSignals = `
		SELECT ` + signalColumns + `
		FROM trade_signals
		WHERE is_active = 1 AND result = '' AND expiry_time <= ?`

	queryDeactivateSignal = `
		UPDATE trade_signals SET is_active = 0 WHERE id = ? AND is_active = 1 AND result = ''`

	queryResolveSignal = `
		UPDATE trade_signals
		SET is_active = 0, result = ?, profit_percentage = ?, resolved_at = ?
		WHERE id = ? AND result = ''`

	// Position queries
	positionColumns = `id, user_id, signal_id, amount, entry_price, status, close_price, profit_loss,
		profit_loss_percentage, created_at, closed_at`

	queryInsertPosition = `
		INSERT INTO trade_positions (` + positionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetPosition = `
		SELECT ` + positionColumns + `
		FROM trade_positions
		WHERE id = ?`

	queryHasOpenPosition = `
		SELECT COUNT(1) FROM trade_positions WHERE user_id = ? AND signal_id = ? AND status = 'open'`

	queryListOpenPositionsForSignal = `
		SELECT ` + positionColumns + `
		FROM trade_positions
		WHERE signal_id = ? AND status = 'open'
		ORDER BY created_at`

	queryListUserPositions = `
		SELECT ` + positionColumns + `
		FROM trade_positions
		WHERE user_id = ? AND (? = '' OR status = ?)
		ORDER BY created_at DESC`

	queryClosePosition = `
		UPDATE trade_positions
		SET status = 'closed', close_price = ?, profit_loss = ?, profit_loss_percentage = ?, closed_at = ?
		WHERE id = ? AND status = 'open'`

	// Referral queries
	queryHasReferralReward = `
		SELECT COUNT(1) FROM referral_rewards WHERE referred_id = ?`

	queryInsertReferralReward = `
		INSERT INTO referral_rewards (id, referrer_id, referred_id, currency, amount, transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
)
