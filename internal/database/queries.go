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
	queryInsertUser = `
		INSERT INTO users (id, wallet_address, created_at) VALUES (?, ?, ?)`

	queryGetUsers = `
		SELECT id, wallet_address, created_at
		FROM users
		ORDER BY created_at, id`

	queryGetUserById = `
		SELECT id, wallet_address, created_at
		FROM users
		WHERE id = ?`

	queryUpsertUserPolicy = `
		INSERT INTO user_policies (user_id, exclude_from_reports, note, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			exclude_from_reports = excluded.exclude_from_reports,
			note = excluded.note,
			updated_at = excluded.updated_at`

	queryGetUserPolicy = `
		SELECT user_id, exclude_from_reports, note, updated_at
		FROM user_policies
		WHERE user_id = ?`

	// Balance queries
	queryEnsureBalance = `
		INSERT OR IGNORE INTO balances (user_id, points, forge_staked, updated_at)
		VALUES (?, 0, 0, ?)`

	queryGetBalance = `
		SELECT user_id, points, forge_staked, updated_at
		FROM balances
		WHERE user_id = ?`

	queryUpdatePoints = `
		UPDATE balances SET points = ?, updated_at = ?
		WHERE user_id = ? AND points = ?`

	queryUpdateForgeStaked = `
		UPDATE balances SET forge_staked = ?, updated_at = ?
		WHERE user_id = ? AND forge_staked = ?`

	queryInsertBalanceEntry = `
		INSERT INTO balance_entries (
			id, user_id, asset, kind, change, balance_before, balance_after, reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetBalanceHistory = `
		SELECT id, user_id, asset, kind, change, balance_before, balance_after, reference, created_at
		FROM balance_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryReconcileBalance = `
		SELECT COALESCE(SUM(change), 0)
		FROM balance_entries
		WHERE user_id = ? AND asset = ?`

	queryListBalanceReports = `
		SELECT u.id, u.wallet_address, COALESCE(b.points, 0), COALESCE(b.forge_staked, 0)
		FROM users u
		LEFT JOIN balances b ON b.user_id = u.id
		LEFT JOIN user_policies p ON p.user_id = u.id
		WHERE ? OR COALESCE(p.exclude_from_reports, 0) = 0
		ORDER BY COALESCE(b.points, 0) DESC, u.id`

	// Idempotency ledger queries
	queryInsertLedgerEntry = `
		INSERT INTO ledger_entries (signature, kind, status, reference_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetLedgerEntry = `
		SELECT signature, kind, status, reference_id, created_at, updated_at
		FROM ledger_entries
		WHERE signature = ?`

	queryResolveLedgerEntry = `
		UPDATE ledger_entries SET status = ?, updated_at = ?
		WHERE signature = ? AND status = 'PENDING'`

	// Deposit queries
	queryInsertDeposit = `
		INSERT INTO deposits (
			id, signature, sender, token_address, amount, user_id, asset, credited, status, reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'PENDING', '', ?, ?)`

	queryGetDepositBySignature = `
		SELECT id, signature, sender, token_address, amount, user_id, asset, credited, status, reason, created_at, updated_at
		FROM deposits
		WHERE signature = ?`

	queryResolveDeposit = `
		UPDATE deposits SET status = ?, reason = ?, updated_at = ?
		WHERE signature = ? AND status = 'PENDING'`

	queryListUnboundPresaleDeposits = `
		SELECT d.id, d.signature, d.sender, d.token_address, d.amount, d.user_id, d.asset, d.credited,
		       d.status, d.reason, d.created_at, d.updated_at
		FROM deposits d
		WHERE d.asset = 'presale' AND d.status = 'SUCCEEDED'
		  AND NOT EXISTS (
			SELECT 1 FROM presale_entry_intents i WHERE i.payment_signature = d.signature
		  )
		ORDER BY d.created_at, d.rowid`

	// Withdrawal queries
	withdrawalColumns = `id, user_id, amount, destination, processing, processed, error, tx_signature,
		payout_reference, claimed_at, created_at, updated_at`

	queryInsertWithdrawal = `
		INSERT INTO withdrawal_requests (id, user_id, amount, destination, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetWithdrawal = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE id = ?`

	queryGetOutstandingWithdrawal = `
		SELECT id FROM withdrawal_requests WHERE user_id = ? AND processed = 0`

	queryListUnclaimedWithdrawals = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE processing = 0 AND processed = 0
		ORDER BY created_at, rowid
		LIMIT ?`

	queryListFlaggedWithdrawals = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE processed = 0 AND error IS NOT NULL
		ORDER BY created_at, rowid`

	queryListUserWithdrawals = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawal_requests
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`

	queryClaimWithdrawal = `
		UPDATE withdrawal_requests
		SET processing = 1, claimed_at = ?, updated_at = ?
		WHERE id = ? AND processing = 0 AND processed = 0`

	querySetWithdrawalError = `
		UPDATE withdrawal_requests
		SET error = ?,
			processing = CASE WHEN ? THEN 0 ELSE processing END,
			claimed_at = CASE WHEN ? THEN NULL ELSE claimed_at END,
			updated_at = ?
		WHERE id = ? AND processed = 0`

	querySetPayoutReference = `
		UPDATE withdrawal_requests SET payout_reference = ?, updated_at = ?
		WHERE id = ? AND processed = 0`

	queryCompleteWithdrawal = `
		UPDATE withdrawal_requests
		SET processed = 1, tx_signature = ?, error = NULL, updated_at = ?
		WHERE id = ? AND processing = 1 AND processed = 0`

	queryResetStaleWithdrawals = `
		UPDATE withdrawal_requests
		SET processing = 0, claimed_at = NULL, updated_at = ?
		WHERE processing = 1 AND processed = 0
		  AND error IS NULL AND payout_reference IS NULL
		  AND claimed_at < ?`

	queryResolveWithdrawal = `
		UPDATE withdrawal_requests
		SET error = NULL, processing = 0, claimed_at = NULL, updated_at = ?
		WHERE id = ? AND processed = 0`

	// Allowlist queries
	queryInsertProject = `
		INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)`

	queryGetProject = `
		SELECT id, name, created_at FROM projects WHERE id = ?`

	queryInsertAllowlist = `
		INSERT INTO allowlists (id, project_id, name) VALUES (?, ?, ?)`

	queryInsertAllowlistEntry = `
		INSERT INTO allowlist_entries (id, allowlist_id, user_id, role, wallet_address)
		VALUES (?, ?, ?, ?, ?)`

	queryFindHeldEntry = `
		SELECT e.id
		FROM allowlist_entries e
		JOIN allowlists a ON a.id = e.allowlist_id
		WHERE e.user_id = ? AND a.project_id = ? AND (? IS NULL OR e.role = ?)
		ORDER BY e.id
		LIMIT 1`

	queryListEntriesByOwner = `
		SELECT id, allowlist_id, user_id, role, wallet_address
		FROM allowlist_entries
		WHERE user_id = ?
		ORDER BY id`

	queryReassignEntry = `
		UPDATE allowlist_entries
		SET user_id = ?, wallet_address = (SELECT NULLIF(wallet_address, '') FROM users WHERE id = ?)
		WHERE id = ? AND user_id = ?`

	// Marketplace queries
	marketplaceColumns = `id, project_id, role_id, trade_type, points_cost, created_by_user_id,
		listed, processed, created_at, updated_at`

	queryInsertMarketplaceRecord = `
		INSERT INTO marketplace_records (
			id, project_id, role_id, trade_type, points_cost, created_by_user_id, listed, processed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 1, 0, ?, ?)`

	queryGetMarketplaceRecord = `
		SELECT ` + marketplaceColumns + `
		FROM marketplace_records
		WHERE id = ?`

	queryFindOpenSell = `
		SELECT id FROM marketplace_records
		WHERE created_by_user_id = ? AND project_id = ? AND COALESCE(role_id, '') = COALESCE(?, '')
		  AND trade_type = 'SELL' AND listed = 1 AND processed = 0`

	queryFloorPrice = `
		SELECT ` + marketplaceColumns + `
		FROM marketplace_records
		WHERE project_id = ? AND COALESCE(role_id, '') = COALESCE(?, '')
		  AND trade_type = 'SELL' AND listed = 1 AND processed = 0
		ORDER BY points_cost ASC, created_at ASC, rowid ASC
		LIMIT 1`

	queryBestBid = `
		SELECT ` + marketplaceColumns + `
		FROM marketplace_records
		WHERE project_id = ? AND COALESCE(role_id, '') = COALESCE(?, '')
		  AND trade_type = 'BUY' AND listed = 1 AND processed = 0
		ORDER BY points_cost DESC, created_at ASC, rowid ASC
		LIMIT 1`

	queryCrossingBids = `
		SELECT ` + marketplaceColumns + `
		FROM marketplace_records
		WHERE project_id = ? AND COALESCE(role_id, '') = COALESCE(?, '')
		  AND trade_type = 'BUY' AND listed = 1 AND processed = 0
		  AND created_by_user_id != ? AND points_cost >= ?
		ORDER BY points_cost DESC, created_at ASC, rowid ASC
		LIMIT ?`

	queryCrossingAsks = `
		SELECT ` + marketplaceColumns + `
		FROM marketplace_records
		WHERE project_id = ? AND COALESCE(role_id, '') = COALESCE(?, '')
		  AND trade_type = 'SELL' AND listed = 1 AND processed = 0
		  AND created_by_user_id != ? AND points_cost <= ?
		ORDER BY points_cost ASC, created_at ASC, rowid ASC
		LIMIT ?`

	queryDelistMarketplaceRecord = `
		UPDATE marketplace_records SET listed = 0, updated_at = ?
		WHERE id = ? AND listed = 1 AND processed = 0`

	queryCloseMatchedRecords = `
		UPDATE marketplace_records SET processed = 1, listed = 0, updated_at = ?
		WHERE id IN (?, ?) AND listed = 1 AND processed = 0`

	queryInsertMarketplaceActivity = `
		INSERT INTO marketplace_activities (
			id, marketplace_record_id, counterpart_record_id, action, price, project_id, role_id,
			buyer_user_id, seller_user_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListMarketplaceActivity = `
		SELECT id, marketplace_record_id, counterpart_record_id, action, price, project_id, role_id,
			buyer_user_id, seller_user_id, created_at
		FROM marketplace_activities
		WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`

	// Presale queries
	queryInsertPresale = `
		INSERT INTO presales (id, name, supply, max_supply_per_user, price_per_entry, active, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)`

	queryGetPresale = `
		SELECT id, name, supply, max_supply_per_user, price_per_entry, active, created_at
		FROM presales
		WHERE id = ?`

	queryPresaleReserved = `
		SELECT COALESCE(SUM(entry_amount), 0)
		FROM presale_entry_intents
		WHERE presale_id = ? AND status IN ('PENDING', 'CONFIRMED')`

	queryPresaleUserReserved = `
		SELECT COALESCE(SUM(entry_amount), 0)
		FROM presale_entry_intents
		WHERE presale_id = ? AND user_id = ? AND status IN ('PENDING', 'CONFIRMED')`

	intentColumns = `id, presale_id, user_id, wallet_address, entry_amount, status, payment_signature, created_at, updated_at`

	queryInsertPresaleIntent = `
		INSERT INTO presale_entry_intents (
			id, presale_id, user_id, wallet_address, entry_amount, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 'PENDING', ?, ?)`

	queryGetPresaleIntent = `
		SELECT ` + intentColumns + `
		FROM presale_entry_intents
		WHERE id = ?`

	queryFindIntentBySignature = `
		SELECT id FROM presale_entry_intents WHERE payment_signature = ?`

	queryConfirmPresaleIntent = `
		UPDATE presale_entry_intents
		SET status = 'CONFIRMED', payment_signature = ?, updated_at = ?
		WHERE id = ? AND status = 'PENDING'`

	queryCancelPresaleIntent = `
		UPDATE presale_entry_intents
		SET status = 'CANCELLED', updated_at = ?
		WHERE id = ? AND status = 'PENDING'`

	queryExpirePresaleIntents = `
		UPDATE presale_entry_intents
		SET status = 'EXPIRED', updated_at = ?
		WHERE status = 'PENDING' AND created_at < ?`
)
