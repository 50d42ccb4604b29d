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

func (s *Service) GetLedgerEntry(ctx context.Context, signature string) (*models.LedgerEntry, error) {
	return getLedgerEntry(ctx, s.db, signature)
}

func getLedgerEntry(ctx context.Context, q queryer, signature string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := q.QueryRowContext(ctx, queryGetLedgerEntry, signature).
		Scan(&e.Signature, &e.Kind, &e.Status, &e.ReferenceId, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: ledger entry %s", store.ErrNotFound, signature)
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return &e, nil
}

func (s *Service) GetDepositBySignature(ctx context.Context, signature string) (*models.DepositRecord, error) {
	return getDeposit(ctx, s.db, signature)
}

func scanDeposit(row interface{ Scan(...any) error }) (*models.DepositRecord, error) {
	var d models.DepositRecord
	err := row.Scan(&d.Id, &d.Signature, &d.Sender, &d.TokenAddress, &d.Amount, &d.UserId,
		&d.Asset, &d.Credited, &d.Status, &d.Reason, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func getDeposit(ctx context.Context, q queryer, signature string) (*models.DepositRecord, error) {
	d, err := scanDeposit(q.QueryRowContext(ctx, queryGetDepositBySignature, signature))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: deposit %s", store.ErrNotFound, signature)
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return d, nil
}

// ListUnboundPresaleDeposits returns settled presale-token deposits that no
// intent was confirmed with, typically payments that arrived after their
// intent expired or was cancelled. They need a manual refund.
func (s *Service) ListUnboundPresaleDeposits(ctx context.Context) ([]models.DepositRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryListUnboundPresaleDeposits)
	if err != nil {
		return nil, fmt.Errorf("failed to list unbound presale deposits: %w", err)
	}
	defer closeRows(rows)

	var deposits []models.DepositRecord
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposit rows: %w", err)
	}
	return deposits, nil
}

// ReserveDeposit durably records the signature as PENDING. When the signature
// was already seen the existing record is returned and created is false.
func (s *Service) ReserveDeposit(ctx context.Context, params store.ReserveDepositParams) (*models.DepositRecord, bool, error) {
	if params.Signature == "" {
		return nil, false, fmt.Errorf("%w: signature is required", store.ErrInvalidInput)
	}

	var record *models.DepositRecord
	var created bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getDeposit(ctx, tx, params.Signature)
		if err == nil {
			record = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		// The same signature may not fund a deposit after paying a withdrawal.
		if entry, err := getLedgerEntry(ctx, tx, params.Signature); err == nil {
			return fmt.Errorf("%w: %s is recorded as %s %s",
				store.ErrSignatureConflict, params.Signature, entry.Kind, entry.ReferenceId)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		ts := now()
		id := uuid.New().String()
		if _, err := tx.ExecContext(ctx, queryInsertLedgerEntry,
			params.Signature, models.LedgerKindDeposit, models.StatusPending, id, ts, ts); err != nil {
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}

		if _, err := tx.ExecContext(ctx, queryInsertDeposit,
			id, params.Signature, params.Sender, params.TokenAddress, params.Amount.String(),
			params.UserId, params.Asset, params.Credited, ts, ts); err != nil {
			return fmt.Errorf("failed to insert deposit: %w", err)
		}

		record, err = getDeposit(ctx, tx, params.Signature)
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		zap.L().Info("Deposit reserved",
			zap.String("signature", params.Signature),
			zap.String("user_id", params.UserId),
			zap.String("asset", params.Asset),
			zap.String("amount", params.Amount.String()))
	}
	return record, created, nil
}

// FailDeposit moves a PENDING deposit to FAILED. A deposit that already reached
// a terminal state is returned unchanged.
func (s *Service) FailDeposit(ctx context.Context, signature, reason string) (*models.DepositRecord, error) {
	var record *models.DepositRecord

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := resolveDeposit(ctx, tx, signature, models.StatusFailed, reason); err != nil {
			return err
		}
		var err error
		record, err = getDeposit(ctx, tx, signature)
		return err
	})
	if err != nil {
		return nil, err
	}

	if record.Status == models.StatusFailed && record.Reason == reason {
		zap.L().Warn("Deposit failed",
			zap.String("signature", signature),
			zap.String("user_id", record.UserId),
			zap.String("reason", reason))
	}
	return record, nil
}

// ApplyDeposit moves a PENDING deposit to SUCCEEDED and credits the reserved
// amount in the same transaction. applied is false when another caller
// already resolved the deposit.
func (s *Service) ApplyDeposit(ctx context.Context, signature string) (*models.DepositRecord, bool, error) {
	var record *models.DepositRecord
	var applied bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getDeposit(ctx, tx, signature)
		if err != nil {
			return err
		}
		if current.Status != models.StatusPending {
			record = current
			return nil
		}

		if _, err := getUser(ctx, tx, current.UserId); err != nil {
			if !errors.Is(err, store.ErrUserNotFound) {
				return err
			}
			if err := resolveDeposit(ctx, tx, signature, models.StatusFailed, "user not found"); err != nil {
				return err
			}
			record, err = getDeposit(ctx, tx, signature)
			return err
		}

		if err := resolveDeposit(ctx, tx, signature, models.StatusSucceeded, ""); err != nil {
			return err
		}

		if current.Credited > 0 && current.Asset != models.AssetPresale {
			_, err := adjustBalance(ctx, tx, balanceChange{
				UserId:    current.UserId,
				Asset:     current.Asset,
				Kind:      models.EntryDeposit,
				Delta:     current.Credited,
				Reference: signature,
			})
			if err != nil {
				return err
			}
		}

		record, err = getDeposit(ctx, tx, signature)
		if err != nil {
			return err
		}
		applied = record.Status == models.StatusSucceeded
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if applied {
		zap.L().Info("Deposit applied",
			zap.String("signature", signature),
			zap.String("user_id", record.UserId),
			zap.String("asset", record.Asset),
			zap.Int64("credited", record.Credited))
	}
	return record, applied, nil
}

// resolveDeposit moves both the deposit and its ledger entry out of PENDING.
// Rows already resolved are left untouched.
func resolveDeposit(ctx context.Context, tx *sql.Tx, signature, status, reason string) error {
	ts := now()
	result, err := tx.ExecContext(ctx, queryResolveDeposit, status, reason, ts, signature)
	if err != nil {
		return fmt.Errorf("failed to update deposit status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := getDeposit(ctx, tx, signature); err != nil {
			return err
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx, queryResolveLedgerEntry, status, ts, signature); err != nil {
		return fmt.Errorf("failed to update ledger entry status: %w", err)
	}
	return nil
}
