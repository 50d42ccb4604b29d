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
	"time"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanWithdrawal(row interface{ Scan(...any) error }) (*models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest
	err := row.Scan(&w.Id, &w.UserId, &w.Amount, &w.Destination, &w.Processing, &w.Processed,
		&w.Error, &w.TxSignature, &w.PayoutRef, &w.ClaimedAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func getWithdrawal(ctx context.Context, q queryer, id string) (*models.WithdrawalRequest, error) {
	w, err := scanWithdrawal(q.QueryRowContext(ctx, queryGetWithdrawal, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: withdrawal %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

func (s *Service) listWithdrawals(ctx context.Context, query string, args ...any) ([]models.WithdrawalRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer closeRows(rows)

	var withdrawals []models.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal rows: %w", err)
	}
	return withdrawals, nil
}

// checkNoOutstandingWithdrawal returns ErrWithdrawalOutstanding while the user
// has an unprocessed request. Its captured amount must stay spendable by the
// payout alone.
func checkNoOutstandingWithdrawal(ctx context.Context, q queryer, userId string) error {
	var outstandingId string
	err := q.QueryRowContext(ctx, queryGetOutstandingWithdrawal, userId).Scan(&outstandingId)
	if err == nil {
		return fmt.Errorf("%w: request %s", store.ErrWithdrawalOutstanding, outstandingId)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check outstanding withdrawal: %w", err)
	}
	return nil
}

// CreateWithdrawal captures the user's whole points balance into a new request.
// Only one request per user may be unprocessed; the partial unique index on
// withdrawal_requests(user_id) backs the in-transaction check.
func (s *Service) CreateWithdrawal(ctx context.Context, userId, destination string) (*models.WithdrawalRequest, error) {
	var request *models.WithdrawalRequest

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, userId); err != nil {
			return err
		}

		if err := checkNoOutstandingWithdrawal(ctx, tx, userId); err != nil {
			return err
		}

		balance, err := getBalance(ctx, tx, userId)
		if err != nil {
			return err
		}
		if balance.Points <= 0 {
			return store.ErrZeroBalance
		}

		ts := now()
		id := uuid.New().String()
		if _, err := tx.ExecContext(ctx, queryInsertWithdrawal, id, userId, balance.Points, destination, ts, ts); err != nil {
			if isUniqueViolation(err) {
				return store.ErrWithdrawalOutstanding
			}
			return fmt.Errorf("failed to insert withdrawal: %w", err)
		}

		request, err = getWithdrawal(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Withdrawal requested",
		zap.String("withdrawal_id", request.Id),
		zap.String("user_id", userId),
		zap.Int64("amount", request.Amount))
	return request, nil
}

func (s *Service) GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	return getWithdrawal(ctx, s.db, id)
}

func (s *Service) ListUnclaimedWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error) {
	return s.listWithdrawals(ctx, queryListUnclaimedWithdrawals, limit)
}

func (s *Service) ListFlaggedWithdrawals(ctx context.Context) ([]models.WithdrawalRequest, error) {
	return s.listWithdrawals(ctx, queryListFlaggedWithdrawals)
}

func (s *Service) ListUserWithdrawals(ctx context.Context, userId string) ([]models.WithdrawalRequest, error) {
	return s.listWithdrawals(ctx, queryListUserWithdrawals, userId)
}

// MarkWithdrawalProcessing claims a request with a single conditional update.
// Of any number of concurrent callers exactly one gets the request back.
func (s *Service) MarkWithdrawalProcessing(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	ts := now()
	result, err := s.db.ExecContext(ctx, queryClaimWithdrawal, ts, ts, id)
	if err != nil {
		return nil, fmt.Errorf("failed to claim withdrawal: %w", err)
	}

	if err := checkAffected(result, store.ErrAlreadyClaimed); err != nil {
		if !errors.Is(err, store.ErrAlreadyClaimed) {
			return nil, err
		}
		current, getErr := getWithdrawal(ctx, s.db, id)
		if getErr != nil {
			return nil, getErr
		}
		if current.Processed {
			return nil, fmt.Errorf("%w: withdrawal %s", store.ErrAlreadyProcessed, id)
		}
		return nil, fmt.Errorf("%w: withdrawal %s", store.ErrAlreadyClaimed, id)
	}

	zap.L().Info("Withdrawal claimed", zap.String("withdrawal_id", id))
	return getWithdrawal(ctx, s.db, id)
}

// SetWithdrawalError records an operator-visible error. With releaseClaim the
// request becomes claimable again; otherwise it stays claimed until resolved.
func (s *Service) SetWithdrawalError(ctx context.Context, id, message string, releaseClaim bool) error {
	result, err := s.db.ExecContext(ctx, querySetWithdrawalError, message, releaseClaim, releaseClaim, now(), id)
	if err != nil {
		return fmt.Errorf("failed to record withdrawal error: %w", err)
	}
	if err := checkAffected(result, store.ErrAlreadyProcessed); err != nil {
		if _, getErr := getWithdrawal(ctx, s.db, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: withdrawal %s", err, id)
	}

	zap.L().Warn("Withdrawal flagged",
		zap.String("withdrawal_id", id),
		zap.String("error", message),
		zap.Bool("released", releaseClaim))
	return nil
}

func (s *Service) SetPayoutReference(ctx context.Context, id, reference string) error {
	result, err := s.db.ExecContext(ctx, querySetPayoutReference, reference, now(), id)
	if err != nil {
		return fmt.Errorf("failed to record payout reference: %w", err)
	}
	if err := checkAffected(result, store.ErrAlreadyProcessed); err != nil {
		if _, getErr := getWithdrawal(ctx, s.db, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: withdrawal %s", err, id)
	}
	return nil
}

// CompleteWithdrawal finalizes a claimed request once its payout is confirmed
// on-chain. It records the signature in the idempotency ledger and debits the
// captured amount from the live balance, never below zero. A redelivered
// confirmation with the same signature is a no-op reported through replayed.
// A request that is not claimed, or whose claim was released, is rejected with
// ErrNotClaimed and must be claimed again first.
func (s *Service) CompleteWithdrawal(ctx context.Context, id, signature string) (*models.WithdrawalRequest, bool, error) {
	if signature == "" {
		return nil, false, fmt.Errorf("%w: signature is required", store.ErrInvalidInput)
	}

	var request *models.WithdrawalRequest
	var replayed bool
	var debited int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getWithdrawal(ctx, tx, id)
		if err != nil {
			return err
		}

		if current.Processed {
			if current.TxSignature != nil && *current.TxSignature == signature {
				request, replayed = current, true
				return nil
			}
			return fmt.Errorf("%w: withdrawal %s already completed with another signature", store.ErrSignatureConflict, id)
		}
		if !current.Processing {
			return fmt.Errorf("%w: withdrawal %s", store.ErrNotClaimed, id)
		}

		if entry, err := getLedgerEntry(ctx, tx, signature); err == nil {
			return fmt.Errorf("%w: %s is recorded as %s %s",
				store.ErrSignatureConflict, signature, entry.Kind, entry.ReferenceId)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		ts := now()
		result, err := tx.ExecContext(ctx, queryCompleteWithdrawal, signature, ts, id)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", store.ErrSignatureConflict, signature)
			}
			return fmt.Errorf("failed to complete withdrawal: %w", err)
		}
		if err := checkAffected(result, store.ErrConcurrentModification); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, queryInsertLedgerEntry,
			signature, models.LedgerKindWithdrawal, models.StatusSucceeded, id, ts, ts); err != nil {
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}

		balance, err := getBalance(ctx, tx, current.UserId)
		if err != nil {
			return err
		}
		debited = min(current.Amount, balance.Points)
		if debited > 0 {
			_, err := adjustBalance(ctx, tx, balanceChange{
				UserId:    current.UserId,
				Asset:     models.AssetPoints,
				Kind:      models.EntryWithdrawal,
				Delta:     -debited,
				Reference: signature,
			})
			if err != nil {
				return err
			}
		}

		request, err = getWithdrawal(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if replayed {
		zap.L().Info("Withdrawal confirmation replayed",
			zap.String("withdrawal_id", id),
			zap.String("signature", signature))
	} else {
		zap.L().Info("Withdrawal completed",
			zap.String("withdrawal_id", id),
			zap.String("user_id", request.UserId),
			zap.String("signature", signature),
			zap.Int64("captured", request.Amount),
			zap.Int64("debited", debited))
	}
	return request, replayed, nil
}

// ResetStaleWithdrawals releases claims taken before claimedBefore that never
// reached the payout sender and carry no error.
func (s *Service) ResetStaleWithdrawals(ctx context.Context, claimedBefore time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryResetStaleWithdrawals, now(), claimedBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale withdrawals: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if count > 0 {
		zap.L().Warn("Released stale withdrawal claims",
			zap.Int64("count", count),
			zap.Time("claimed_before", claimedBefore))
	}
	return count, nil
}

// ResolveWithdrawal clears a flagged error and makes the request claimable again.
func (s *Service) ResolveWithdrawal(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, queryResolveWithdrawal, now(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve withdrawal: %w", err)
	}
	if err := checkAffected(result, store.ErrAlreadyProcessed); err != nil {
		if _, getErr := getWithdrawal(ctx, s.db, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: withdrawal %s", err, id)
	}

	zap.L().Info("Withdrawal resolved by operator", zap.String("withdrawal_id", id))
	return nil
}
