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

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// balanceChange describes one mutation applied by adjustBalance.
type balanceChange struct {
	UserId    string
	Asset     string
	Kind      string
	Delta     int64
	Reference string
}

// adjustBalance applies a signed change to one balance column inside tx and
// writes the matching audit row. A change that would leave the balance
// negative fails with ErrInsufficientBalance before anything is written.
func adjustBalance(ctx context.Context, tx *sql.Tx, change balanceChange) (int64, error) {
	var updateQuery string
	switch change.Asset {
	case models.AssetPoints:
		updateQuery = queryUpdatePoints
	case models.AssetForgeStake:
		updateQuery = queryUpdateForgeStaked
	default:
		return 0, fmt.Errorf("%w: asset %q has no balance column", store.ErrInvalidInput, change.Asset)
	}

	ts := now()
	if _, err := tx.ExecContext(ctx, queryEnsureBalance, change.UserId, ts); err != nil {
		return 0, fmt.Errorf("failed to create balance row: %w", err)
	}

	balance, err := getBalance(ctx, tx, change.UserId)
	if err != nil {
		return 0, err
	}

	before := balance.Points
	if change.Asset == models.AssetForgeStake {
		before = balance.ForgeStaked
	}
	after := before + change.Delta
	if after < 0 {
		return 0, fmt.Errorf("%w: user %s has %d %s, needs %d",
			store.ErrInsufficientBalance, change.UserId, before, change.Asset, -change.Delta)
	}

	result, err := tx.ExecContext(ctx, updateQuery, after, ts, change.UserId, before)
	if err != nil {
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}
	if err := checkAffected(result, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)); err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx, queryInsertBalanceEntry,
		uuid.New().String(), change.UserId, change.Asset, change.Kind,
		change.Delta, before, after, change.Reference, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to insert balance entry: %w", err)
	}

	zap.L().Debug("Balance adjusted",
		zap.String("user_id", change.UserId),
		zap.String("asset", change.Asset),
		zap.String("kind", change.Kind),
		zap.Int64("before", before),
		zap.Int64("after", after))
	return after, nil
}

// getBalance reads a balance row; a user without one has a zero balance.
func getBalance(ctx context.Context, q queryer, userId string) (*models.Balance, error) {
	balance := models.Balance{UserId: userId}
	err := q.QueryRowContext(ctx, queryGetBalance, userId).
		Scan(&balance.UserId, &balance.Points, &balance.ForgeStaked, &balance.UpdatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &balance, nil
}

func (s *Service) GetBalance(ctx context.Context, userId string) (*models.Balance, error) {
	if _, err := getUser(ctx, s.db, userId); err != nil {
		return nil, err
	}
	return getBalance(ctx, s.db, userId)
}

// GetBalanceHistory returns paginated balance entries for a user, newest first
func (s *Service) GetBalanceHistory(ctx context.Context, userId string, limit, offset int) ([]models.BalanceEntry, error) {
	zap.L().Debug("Getting balance history",
		zap.String("user_id", userId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetBalanceHistory, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history: %w", err)
	}
	defer closeRows(rows)

	var entries []models.BalanceEntry
	for rows.Next() {
		var e models.BalanceEntry
		err := rows.Scan(&e.Id, &e.UserId, &e.Asset, &e.Kind, &e.Change,
			&e.BalanceBefore, &e.BalanceAfter, &e.Reference, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance entry rows: %w", err)
	}
	return entries, nil
}

// ReconcileBalance verifies that both live balances match the sum of their entries
func (s *Service) ReconcileBalance(ctx context.Context, userId string) error {
	balance, err := s.GetBalance(ctx, userId)
	if err != nil {
		return err
	}

	for _, asset := range []string{models.AssetPoints, models.AssetForgeStake} {
		current := balance.Points
		if asset == models.AssetForgeStake {
			current = balance.ForgeStaked
		}

		var calculated int64
		if err := s.db.QueryRowContext(ctx, queryReconcileBalance, userId, asset).Scan(&calculated); err != nil {
			return fmt.Errorf("failed to calculate balance from entries: %w", err)
		}

		if current != calculated {
			zap.L().Error("Balance reconciliation failed",
				zap.String("user_id", userId),
				zap.String("asset", asset),
				zap.Int64("current_balance", current),
				zap.Int64("calculated_balance", calculated))
			return fmt.Errorf("%w: %s current=%d calculated=%d", store.ErrReconciliationMismatch, asset, current, calculated)
		}
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.Int64("points", balance.Points),
		zap.Int64("forge_staked", balance.ForgeStaked))
	return nil
}

// ListBalanceReports lists every user's balance. Users whose policy excludes
// them from reports are skipped unless includeExcluded is set.
func (s *Service) ListBalanceReports(ctx context.Context, includeExcluded bool) ([]models.BalanceReport, error) {
	rows, err := s.db.QueryContext(ctx, queryListBalanceReports, includeExcluded)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer closeRows(rows)

	var reports []models.BalanceReport
	for rows.Next() {
		var r models.BalanceReport
		if err := rows.Scan(&r.UserId, &r.WalletAddress, &r.Points, &r.ForgeStaked); err != nil {
			return nil, fmt.Errorf("failed to scan balance report: %w", err)
		}
		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance report rows: %w", err)
	}
	return reports, nil
}
